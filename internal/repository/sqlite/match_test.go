package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/blood-connect/internal/apperror"
	"github.com/sakif/blood-connect/internal/model"
)

func TestMatchCreate(t *testing.T) {
	db := newTestDB(t)
	donor := createTestDonor(t, db, "md@example.com", model.BloodAPos, "Metropolis")
	patient := createTestPatient(t, db, "mp@example.com", model.BloodAPos, "Metropolis")

	match := &model.DonationMatch{DonorID: donor.ID, PatientID: patient.ID, Status: model.MatchCompleted}
	if err := db.Matches().Create(context.Background(), match); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if match.ID == "" {
		t.Error("Create() did not set match.ID")
	}
	if match.MatchDate.IsZero() {
		t.Error("Create() did not default match.MatchDate")
	}
}

func TestMatchCreate_UnknownParticipants(t *testing.T) {
	db := newTestDB(t)
	donor := createTestDonor(t, db, "real@example.com", model.BloodAPos, "Metropolis")
	patient := createTestPatient(t, db, "realp@example.com", model.BloodAPos, "Metropolis")

	tests := []struct {
		name      string
		donorID   string
		patientID string
	}{
		{"unknown donor", "ghost-donor", patient.ID},
		{"unknown patient", donor.ID, "ghost-patient"},
		// A patient ID is not a donor ID even though both are user IDs.
		{"patient used as donor", patient.ID, patient.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.Matches().Create(context.Background(), &model.DonationMatch{
				DonorID:   tt.donorID,
				PatientID: tt.patientID,
				Status:    model.MatchCompleted,
			})
			if !errors.Is(err, apperror.ErrNotFound) {
				t.Errorf("Create() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestMatchListAll_IncludesParticipants(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	donor := createTestDonor(t, db, "ld@example.com", model.BloodOPos, "Metropolis")
	first := createTestPatient(t, db, "lp1@example.com", model.BloodOPos, "Metropolis")
	second := createTestPatient(t, db, "lp2@example.com", model.BloodOPos, "Metropolis")

	for _, p := range []*model.Patient{first, second} {
		if err := db.Matches().Create(ctx, &model.DonationMatch{DonorID: donor.ID, PatientID: p.ID, Status: model.MatchCompleted}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := db.Matches().ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListAll() returned %d matches, want 2", len(got))
	}
	// Newest first.
	if got[0].PatientID != second.ID {
		t.Errorf("ListAll()[0].PatientID = %q, want %q", got[0].PatientID, second.ID)
	}
	if got[0].Donor.User.Email != "ld@example.com" {
		t.Errorf("Donor.User.Email = %q, want %q", got[0].Donor.User.Email, "ld@example.com")
	}
	if got[0].Patient.User.Email != "lp2@example.com" {
		t.Errorf("Patient.User.Email = %q, want %q", got[0].Patient.User.Email, "lp2@example.com")
	}
	if got[1].Status != model.MatchCompleted {
		t.Errorf("Status = %q, want %q", got[1].Status, model.MatchCompleted)
	}
}
