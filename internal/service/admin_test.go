package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/sakif/blood-connect/internal/apperror"
	"github.com/sakif/blood-connect/internal/events"
	"github.com/sakif/blood-connect/internal/export"
	"github.com/sakif/blood-connect/internal/model"
	"github.com/xuri/excelize/v2"
)

func TestParsePartnerKind(t *testing.T) {
	for in, want := range map[string]model.PartnerKind{"ngo": model.PartnerNgo, "Hospital": model.PartnerHospital} {
		got, err := ParsePartnerKind(in)
		if err != nil || got != want {
			t.Errorf("ParsePartnerKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParsePartnerKind("clinic"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ParsePartnerKind(clinic) error = %v, want ErrNotFound", err)
	}
}

// Approving one application changes that record's status and nothing else.
func TestSetRegistrationStatus_ApproveTouchesOnlyStatus(t *testing.T) {
	store := newTestStore(t)
	pub := &fakePublisher{}
	reg := newTestRegistrationService(t, store, pub)
	admin := NewAdminService(store, pub, discardLogger())
	ctx := context.Background()

	target, err := reg.RegisterNgo(ctx, validNgo())
	if err != nil {
		t.Fatalf("RegisterNgo() error = %v", err)
	}
	other := validNgo()
	other.Name = "Second Chance"
	if _, err := reg.RegisterNgo(ctx, other); err != nil {
		t.Fatalf("RegisterNgo() error = %v", err)
	}

	if err := admin.SetRegistrationStatus(ctx, model.PartnerNgo, target.ID, model.RegistrationApproved); err != nil {
		t.Fatalf("SetRegistrationStatus() error = %v", err)
	}

	all, err := admin.ListNgoRegistrations(ctx)
	if err != nil {
		t.Fatalf("ListNgoRegistrations() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("registrations = %d, want 2", len(all))
	}

	approved := 0
	for _, r := range all {
		if r.Status != model.RegistrationApproved {
			continue
		}
		approved++
		if r.ID != target.ID {
			t.Errorf("approved id = %s, want %s", r.ID, target.ID)
		}
		want := *target
		want.Status = model.RegistrationApproved
		if r.Name != want.Name || r.PanNumber != want.PanNumber || r.CollaborationPlan != want.CollaborationPlan ||
			r.ContactPersonEmail != want.ContactPersonEmail || r.RegistrationType != want.RegistrationType {
			t.Errorf("approved record changed beyond status:\n got %+v\nwant %+v", r, want)
		}
	}
	if approved != 1 {
		t.Errorf("approved records = %d, want 1", approved)
	}

	if subjects := pub.published(); subjects[len(subjects)-1] != events.SubjectPartnerStatusChanged {
		t.Errorf("last event = %q, want %q", subjects[len(subjects)-1], events.SubjectPartnerStatusChanged)
	}
}

func TestSetRegistrationStatus_AnyTransitionIsAllowed(t *testing.T) {
	store := newTestStore(t)
	reg := newTestRegistrationService(t, store, &fakePublisher{})
	admin := NewAdminService(store, &fakePublisher{}, discardLogger())
	ctx := context.Background()

	h, err := reg.RegisterHospital(ctx, validHospital())
	if err != nil {
		t.Fatalf("RegisterHospital() error = %v", err)
	}

	for _, status := range []model.RegistrationStatus{
		model.RegistrationRejected, model.RegistrationApproved, model.RegistrationPending,
	} {
		if err := admin.SetRegistrationStatus(ctx, model.PartnerHospital, h.ID, status); err != nil {
			t.Fatalf("SetRegistrationStatus(%s) error = %v", status, err)
		}
		got, err := store.Partners().GetHospital(ctx, h.ID)
		if err != nil {
			t.Fatalf("GetHospital() error = %v", err)
		}
		if got.Status != status {
			t.Errorf("status = %q, want %q", got.Status, status)
		}
	}
}

func TestSetRegistrationStatus_Errors(t *testing.T) {
	store := newTestStore(t)
	admin := NewAdminService(store, &fakePublisher{}, discardLogger())
	ctx := context.Background()

	err := admin.SetRegistrationStatus(ctx, model.PartnerNgo, "some-id", "archived")
	if field, _ := validationDetails(t, err); field != "status" {
		t.Errorf("field = %q, want status", field)
	}

	err = admin.SetRegistrationStatus(ctx, model.PartnerNgo, "missing", model.RegistrationApproved)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown id error = %v, want ErrNotFound", err)
	}

	err = admin.SetRegistrationStatus(ctx, "clinic", "some-id", model.RegistrationApproved)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown kind error = %v, want ErrNotFound", err)
	}
}

func TestDashboard_CountsEverything(t *testing.T) {
	store := newTestStore(t)
	pub := &fakePublisher{}
	reg := newTestRegistrationService(t, store, pub)
	matching := NewMatchingService(store, pub, discardLogger())
	admin := NewAdminService(store, pub, discardLogger())
	ctx := context.Background()

	d1, err := reg.RegisterDonor(ctx, validDonor("d1@x.com"))
	if err != nil {
		t.Fatalf("RegisterDonor() error = %v", err)
	}
	if _, err := reg.RegisterDonor(ctx, validDonor("d2@x.com")); err != nil {
		t.Fatalf("RegisterDonor() error = %v", err)
	}
	p1, err := reg.RegisterPatient(ctx, validPatient("p1@x.com"))
	if err != nil {
		t.Fatalf("RegisterPatient() error = %v", err)
	}
	if _, err := reg.RegisterPatient(ctx, validPatient("p2@x.com")); err != nil {
		t.Fatalf("RegisterPatient() error = %v", err)
	}
	if _, err := matching.CreateMatch(ctx, d1.ID, p1.ID); err != nil {
		t.Fatalf("CreateMatch() error = %v", err)
	}
	ngo, err := reg.RegisterNgo(ctx, validNgo())
	if err != nil {
		t.Fatalf("RegisterNgo() error = %v", err)
	}
	if err := admin.SetRegistrationStatus(ctx, model.PartnerNgo, ngo.ID, model.RegistrationRejected); err != nil {
		t.Fatalf("SetRegistrationStatus() error = %v", err)
	}
	if _, err := reg.RegisterHospital(ctx, validHospital()); err != nil {
		t.Fatalf("RegisterHospital() error = %v", err)
	}

	dash, err := admin.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}

	st := dash.Stats
	if st.TotalDonors != 2 || st.AvailableDonors != 1 {
		t.Errorf("donors = %d (available %d), want 2 (available 1)", st.TotalDonors, st.AvailableDonors)
	}
	if st.TotalPatients != 2 ||
		st.PatientsByStatus[model.RequestFulfilled] != 1 ||
		st.PatientsByStatus[model.RequestPending] != 1 {
		t.Errorf("patients = %d by status %v", st.TotalPatients, st.PatientsByStatus)
	}
	if st.TotalMatches != 1 || len(dash.Matches) != 1 {
		t.Errorf("matches = %d", st.TotalMatches)
	}
	if st.NgoByStatus[model.RegistrationRejected] != 1 || len(dash.NgoRegistrations) != 1 {
		t.Errorf("ngo by status = %v", st.NgoByStatus)
	}
	if st.HospitalByStatus[model.RegistrationPending] != 1 || len(dash.HospitalRegistrations) != 1 {
		t.Errorf("hospital by status = %v", st.HospitalByStatus)
	}
}

func TestDashboard_CanceledContext(t *testing.T) {
	admin := NewAdminService(newTestStore(t), &fakePublisher{}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := admin.Dashboard(ctx); err == nil {
		t.Fatal("Dashboard() with a canceled context should fail")
	}
}

func TestExportRegistrations_Hospital(t *testing.T) {
	store := newTestStore(t)
	reg := newTestRegistrationService(t, store, &fakePublisher{})
	admin := NewAdminService(store, &fakePublisher{}, discardLogger())
	ctx := context.Background()

	h, err := reg.RegisterHospital(ctx, validHospital())
	if err != nil {
		t.Fatalf("RegisterHospital() error = %v", err)
	}

	data, name, err := admin.ExportRegistrations(ctx, model.PartnerHospital)
	if err != nil {
		t.Fatalf("ExportRegistrations() error = %v", err)
	}
	if name != "hospital-registrations.xlsx" {
		t.Errorf("file name = %q", name)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(export.HospitalSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[1][0] != h.ID || rows[1][1] != "City General" {
		t.Errorf("data row = %v", rows[1])
	}
}

func TestExportRegistrations_UnknownKind(t *testing.T) {
	admin := NewAdminService(newTestStore(t), &fakePublisher{}, discardLogger())

	if _, _, err := admin.ExportRegistrations(context.Background(), "clinic"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
