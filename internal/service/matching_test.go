package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sakif/blood-connect/internal/apperror"
	"github.com/sakif/blood-connect/internal/events"
	"github.com/sakif/blood-connect/internal/metrics"
	"github.com/sakif/blood-connect/internal/model"
	"github.com/sakif/blood-connect/internal/repository"
)

// matchFixture registers people through the real registration workflow so
// the matching tests start from the same state production would.
type matchFixture struct {
	store    repository.Store
	reg      *RegistrationService
	matching *MatchingService
	pub      *fakePublisher
}

func newMatchFixture(t *testing.T) *matchFixture {
	t.Helper()
	store := newTestStore(t)
	pub := &fakePublisher{}
	return &matchFixture{
		store:    store,
		reg:      newTestRegistrationService(t, store, pub),
		matching: NewMatchingService(store, pub, discardLogger()),
		pub:      pub,
	}
}

func (f *matchFixture) donor(t *testing.T, email string, bt model.BloodType, city string) *model.DonorWithUser {
	t.Helper()
	in := validDonor(email)
	in.BloodType = bt
	in.City = city
	d, err := f.reg.RegisterDonor(context.Background(), in)
	if err != nil {
		t.Fatalf("RegisterDonor(%s) error = %v", email, err)
	}
	return d
}

func (f *matchFixture) patient(t *testing.T, email string, bt model.BloodType, city string) *model.PatientWithUser {
	t.Helper()
	in := validPatient(email)
	in.BloodType = bt
	in.City = city
	p, err := f.reg.RegisterPatient(context.Background(), in)
	if err != nil {
		t.Fatalf("RegisterPatient(%s) error = %v", email, err)
	}
	return p
}

// =========================================================================
// ListEligibleDonors TESTS
// =========================================================================

func TestListEligibleDonors_ExactBloodTypeAndCity(t *testing.T) {
	f := newMatchFixture(t)
	want := f.donor(t, "match@x.com", model.BloodAPos, "Metropolis")
	f.donor(t, "universal@x.com", model.BloodONeg, "Metropolis") // compatible, but not equal
	f.donor(t, "elsewhere@x.com", model.BloodAPos, "Gotham")
	f.donor(t, "lowercase@x.com", model.BloodAPos, "metropolis") // city match is case-sensitive

	got, err := f.matching.ListEligibleDonors(context.Background(), model.BloodAPos, "Metropolis")
	if err != nil {
		t.Fatalf("ListEligibleDonors() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != want.ID {
		t.Fatalf("eligible = %+v, want only %s", got, want.ID)
	}
	if got[0].User.Email != "match@x.com" {
		t.Errorf("donor user not joined: %+v", got[0].User)
	}
}

func TestListEligibleDonors_EmptyIsNotAnError(t *testing.T) {
	f := newMatchFixture(t)

	got, err := f.matching.ListEligibleDonors(context.Background(), model.BloodABNeg, "Metropolis")
	if err != nil {
		t.Fatalf("ListEligibleDonors() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want an empty non-nil slice", got)
	}
}

func TestListEligibleDonors_Validation(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()

	_, err := f.matching.ListEligibleDonors(ctx, "Z+", "Metropolis")
	if field, _ := validationDetails(t, err); field != "bloodType" {
		t.Errorf("field = %q, want bloodType", field)
	}

	_, err = f.matching.ListEligibleDonors(ctx, model.BloodOPos, "  ")
	if field, _ := validationDetails(t, err); field != "city" {
		t.Errorf("field = %q, want city", field)
	}
}

// =========================================================================
// CreateMatch TESTS
// =========================================================================

func TestCreateMatch_Postconditions(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()
	d := f.donor(t, "d@x.com", model.BloodBPos, "Metropolis")
	p := f.patient(t, "p@x.com", model.BloodBPos, "Metropolis")

	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	f.matching.now = func() time.Time { return fixed }
	created := testutil.ToFloat64(metrics.MatchesTotal.WithLabelValues("created"))

	m, err := f.matching.CreateMatch(ctx, d.ID, p.ID)
	if err != nil {
		t.Fatalf("CreateMatch() error = %v", err)
	}
	if m.Status != model.MatchCompleted {
		t.Errorf("match status = %q, want completed", m.Status)
	}
	if !m.MatchDate.Equal(fixed) {
		t.Errorf("matchDate = %v, want %v", m.MatchDate, fixed)
	}

	donor, err := f.store.Donors().GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("Donors().GetByID() error = %v", err)
	}
	if donor.IsAvailable {
		t.Error("donor should be unavailable after a match")
	}
	if donor.LastDonation == nil || !donor.LastDonation.Equal(fixed) {
		t.Errorf("lastDonation = %v, want %v", donor.LastDonation, fixed)
	}

	patient, err := f.store.Patients().GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("Patients().GetByID() error = %v", err)
	}
	if patient.RequestStatus != model.RequestFulfilled {
		t.Errorf("patient status = %q, want fulfilled", patient.RequestStatus)
	}

	matches, err := f.matching.ListMatches(ctx)
	if err != nil {
		t.Fatalf("ListMatches() error = %v", err)
	}
	if len(matches) != 1 || matches[0].ID != m.ID {
		t.Fatalf("matches = %+v, want the new match", matches)
	}
	if matches[0].Donor.User.Email != "d@x.com" || matches[0].Patient.User.Email != "p@x.com" {
		t.Errorf("match participants not joined: %+v", matches[0])
	}

	if delta := testutil.ToFloat64(metrics.MatchesTotal.WithLabelValues("created")) - created; delta != 1 {
		t.Errorf("matches_total{created} grew by %v, want 1", delta)
	}
	subjects := f.pub.published()
	if subjects[len(subjects)-1] != events.SubjectMatchCreated {
		t.Errorf("last event = %q, want %q", subjects[len(subjects)-1], events.SubjectMatchCreated)
	}
}

func TestCreateMatch_UnknownParticipants(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()
	d := f.donor(t, "d@x.com", model.BloodBPos, "Metropolis")

	rejected := testutil.ToFloat64(metrics.MatchesTotal.WithLabelValues("rejected"))
	failed := testutil.ToFloat64(metrics.MatchesTotal.WithLabelValues("failed"))

	_, err := f.matching.CreateMatch(ctx, d.ID, "no-such-patient")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("CreateMatch() error = %v, want ErrNotFound", err)
	}

	// An unknown id is the caller's mistake, not a failed match.
	if got := testutil.ToFloat64(metrics.MatchesTotal.WithLabelValues("rejected")) - rejected; got != 1 {
		t.Errorf("rejected matches delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.MatchesTotal.WithLabelValues("failed")) - failed; got != 0 {
		t.Errorf("failed matches delta = %v, want 0", got)
	}

	// The donor was not touched.
	donor, err := f.store.Donors().GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !donor.IsAvailable {
		t.Error("a failed match must leave the donor available")
	}
}

func TestCreateMatch_RequiresBothIDs(t *testing.T) {
	f := newMatchFixture(t)

	_, err := f.matching.CreateMatch(context.Background(), "", "p1")
	if field, _ := validationDetails(t, err); field != "donorId" {
		t.Errorf("field = %q, want donorId", field)
	}
	_, err = f.matching.CreateMatch(context.Background(), "d1", " ")
	if field, _ := validationDetails(t, err); field != "patientId" {
		t.Errorf("field = %q, want patientId", field)
	}
}

// When the last of the three writes fails, the first two are undone.
func TestCreateMatch_RollsBackOnFailure(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()
	d := f.donor(t, "d@x.com", model.BloodBPos, "Metropolis")
	p := f.patient(t, "p@x.com", model.BloodBPos, "Metropolis")

	failing := NewMatchingService(&failingStore{Store: f.store, failPatientUpdate: true}, f.pub, discardLogger())
	failed := testutil.ToFloat64(metrics.MatchesTotal.WithLabelValues("failed"))

	_, err := failing.CreateMatch(ctx, d.ID, p.ID)
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("CreateMatch() error = %v, want the patient update failure", err)
	}

	matches, err := f.store.Matches().ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("matches = %d, want 0 after rollback", len(matches))
	}
	donor, err := f.store.Donors().GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !donor.IsAvailable || donor.LastDonation != nil {
		t.Errorf("donor should be untouched after rollback: %+v", donor.Donor)
	}
	if delta := testutil.ToFloat64(metrics.MatchesTotal.WithLabelValues("failed")) - failed; delta != 1 {
		t.Errorf("matches_total{failed} grew by %v, want 1", delta)
	}
}

// Donor registers, patient registers, search finds the donor, the match is
// confirmed, and the same search then comes back empty.
func TestMatching_MetropolisScenario(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()

	d := f.donor(t, "a@x.com", model.BloodOPos, "Metropolis")
	if !d.IsAvailable {
		t.Fatal("registered donor should be available")
	}
	p := f.patient(t, "patient@x.com", model.BloodOPos, "Metropolis")

	found, err := f.matching.ListEligibleDonors(ctx, model.BloodOPos, "Metropolis")
	if err != nil {
		t.Fatalf("ListEligibleDonors() error = %v", err)
	}
	if len(found) != 1 || found[0].ID != d.ID {
		t.Fatalf("eligible = %+v, want exactly donor %s", found, d.ID)
	}

	if _, err := f.matching.CreateMatch(ctx, d.ID, p.ID); err != nil {
		t.Fatalf("CreateMatch() error = %v", err)
	}

	donor, err := f.store.Donors().GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if donor.IsAvailable {
		t.Error("donor should be unavailable after the match")
	}

	again, err := f.matching.ListEligibleDonors(ctx, model.BloodOPos, "Metropolis")
	if err != nil {
		t.Fatalf("second ListEligibleDonors() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second search = %+v, want empty", again)
	}
}

// CreateMatch does not lock the donor. Two matches of the same donor to two
// different patients, issued at the same time, both succeed.
func TestCreateMatch_ConcurrentMatchesOnOneDonorBothSucceed(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()
	d := f.donor(t, "d@x.com", model.BloodAPos, "Metropolis")
	p1 := f.patient(t, "p1@x.com", model.BloodAPos, "Metropolis")
	p2 := f.patient(t, "p2@x.com", model.BloodAPos, "Metropolis")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, p := range []*model.PatientWithUser{p1, p2} {
		i, p := i, p
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.matching.CreateMatch(ctx, d.ID, p.ID)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("CreateMatch #%d error = %v, want success", i+1, err)
		}
	}

	matches, err := f.matching.ListMatches(ctx)
	if err != nil {
		t.Fatalf("ListMatches() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2 (the donor is double-booked)", len(matches))
	}
	for _, m := range matches {
		if m.DonorID != d.ID {
			t.Errorf("match %s has donor %s, want %s", m.ID, m.DonorID, d.ID)
		}
	}
	for _, id := range []string{p1.ID, p2.ID} {
		p, err := f.store.Patients().GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID(%s) error = %v", id, err)
		}
		if p.RequestStatus != model.RequestFulfilled {
			t.Errorf("patient %s status = %q, want fulfilled", id, p.RequestStatus)
		}
	}
}

// =========================================================================
// MarkPatientMatched TESTS
// =========================================================================

func TestMarkPatientMatched(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()
	p := f.patient(t, "p@x.com", model.BloodAPos, "Metropolis")

	if err := f.matching.MarkPatientMatched(ctx, p.ID); err != nil {
		t.Fatalf("MarkPatientMatched() error = %v", err)
	}
	got, err := f.store.Patients().GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.RequestStatus != model.RequestMatched {
		t.Errorf("status = %q, want matched", got.RequestStatus)
	}

	// matched is not pending any more, so a second call is refused.
	err = f.matching.MarkPatientMatched(ctx, p.ID)
	if field, _ := validationDetails(t, err); field != "requestStatus" {
		t.Errorf("field = %q, want requestStatus", field)
	}

	if err := f.matching.MarkPatientMatched(ctx, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown patient error = %v, want ErrNotFound", err)
	}
}
