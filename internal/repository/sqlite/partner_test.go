package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/blood-connect/internal/apperror"
	"github.com/sakif/blood-connect/internal/model"
)

func newTestNgo(name string) *model.NgoRegistration {
	cert := "12A/2020/001"
	return &model.NgoRegistration{
		Name:                  name,
		RegistrationType:      model.NgoTrust,
		RegistrationNumber:    "REG-001",
		ContactPersonName:     "Asha Rao",
		ContactPersonEmail:    "asha@example.org",
		ContactPersonPhone:    "9876543210",
		Address:               "12 Park Street",
		City:                  "Kolkata",
		State:                 "West Bengal",
		Pincode:               "700016",
		Certificate12A:        &cert,
		PanNumber:             "ABCDE1234F",
		ActivitiesDescription: "Blood donation camps every month",
		CollaborationPlan:     "Co-host quarterly drives",
		// Callers cannot pick their own status.
		Status: model.RegistrationApproved,
	}
}

func newTestHospital(name string) *model.HospitalRegistration {
	return &model.HospitalRegistration{
		Name:                 name,
		ContactPersonName:    "Dr. Mehta",
		ContactPersonEmail:   "mehta@example.org",
		ContactPersonPhone:   "9123456780",
		Address:              "4 Ring Road",
		City:                 "Delhi",
		State:                "Delhi",
		Pincode:              "110001",
		CollaborationDetails: "Share blood bank inventory weekly",
	}
}

// =========================================================================
// NGO TESTS
// =========================================================================

func TestCreateNgo_AlwaysPending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	reg := newTestNgo("Helping Hands")

	if err := db.Partners().CreateNgo(ctx, reg); err != nil {
		t.Fatalf("CreateNgo() error = %v", err)
	}
	if reg.Status != model.RegistrationPending {
		t.Errorf("Status = %q, want pending", reg.Status)
	}

	found, err := db.Partners().GetNgo(ctx, reg.ID)
	if err != nil {
		t.Fatalf("GetNgo() error = %v", err)
	}
	if found.Certificate12A == nil || *found.Certificate12A != "12A/2020/001" {
		t.Errorf("Certificate12A = %v, want 12A/2020/001", found.Certificate12A)
	}
	if found.Certificate80G != nil {
		t.Errorf("Certificate80G = %q, want nil", *found.Certificate80G)
	}
}

func TestSetNgoStatus_OnlyTouchesTarget(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	first := newTestNgo("First")
	second := newTestNgo("Second")
	for _, r := range []*model.NgoRegistration{first, second} {
		if err := db.Partners().CreateNgo(ctx, r); err != nil {
			t.Fatalf("CreateNgo() error = %v", err)
		}
	}

	if err := db.Partners().SetNgoStatus(ctx, first.ID, model.RegistrationApproved); err != nil {
		t.Fatalf("SetNgoStatus() error = %v", err)
	}

	got, err := db.Partners().ListNgo(ctx)
	if err != nil {
		t.Fatalf("ListNgo() error = %v", err)
	}
	statuses := map[string]model.RegistrationStatus{}
	for _, r := range got {
		statuses[r.ID] = r.Status
	}
	if statuses[first.ID] != model.RegistrationApproved {
		t.Errorf("first status = %q, want approved", statuses[first.ID])
	}
	if statuses[second.ID] != model.RegistrationPending {
		t.Errorf("second status = %q, want pending", statuses[second.ID])
	}
}

func TestSetNgoStatus_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Partners().SetNgoStatus(context.Background(), "ghost", model.RegistrationRejected)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("SetNgoStatus() error = %v, want ErrNotFound", err)
	}
}

func TestListNgo_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	older := newTestNgo("Older")
	newer := newTestNgo("Newer")
	_ = db.Partners().CreateNgo(ctx, older)
	_ = db.Partners().CreateNgo(ctx, newer)

	got, err := db.Partners().ListNgo(ctx)
	if err != nil {
		t.Fatalf("ListNgo() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != newer.ID {
		t.Errorf("ListNgo() order = %v, want newest first", got)
	}
}

// =========================================================================
// HOSPITAL TESTS
// =========================================================================

func TestCreateHospital_OptionalFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	reg := newTestHospital("City Hospital")
	bank := "BB-42"
	reg.BloodBankRegistrationNumber = &bank

	if err := db.Partners().CreateHospital(ctx, reg); err != nil {
		t.Fatalf("CreateHospital() error = %v", err)
	}

	found, err := db.Partners().GetHospital(ctx, reg.ID)
	if err != nil {
		t.Fatalf("GetHospital() error = %v", err)
	}
	if found.RegistrationNumber != nil {
		t.Errorf("RegistrationNumber = %q, want nil", *found.RegistrationNumber)
	}
	if found.BloodBankRegistrationNumber == nil || *found.BloodBankRegistrationNumber != bank {
		t.Errorf("BloodBankRegistrationNumber = %v, want %q", found.BloodBankRegistrationNumber, bank)
	}
	if found.Status != model.RegistrationPending {
		t.Errorf("Status = %q, want pending", found.Status)
	}
}

func TestSetHospitalStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	reg := newTestHospital("Rejectable")
	if err := db.Partners().CreateHospital(ctx, reg); err != nil {
		t.Fatalf("CreateHospital() error = %v", err)
	}

	if err := db.Partners().SetHospitalStatus(ctx, reg.ID, model.RegistrationRejected); err != nil {
		t.Fatalf("SetHospitalStatus() error = %v", err)
	}
	found, _ := db.Partners().GetHospital(ctx, reg.ID)
	if found.Status != model.RegistrationRejected {
		t.Errorf("Status = %q, want rejected", found.Status)
	}

	// Reviews are not one-way: a rejected application can be approved later.
	if err := db.Partners().SetHospitalStatus(ctx, reg.ID, model.RegistrationApproved); err != nil {
		t.Fatalf("SetHospitalStatus() second change error = %v", err)
	}
}

func TestGetHospital_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Partners().GetHospital(context.Background(), "ghost")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetHospital() error = %v, want ErrNotFound", err)
	}
}
