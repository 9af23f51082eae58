package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/blood-connect/internal/apperror"
	"github.com/sakif/blood-connect/internal/model"
	"github.com/sakif/blood-connect/internal/repository"
)

// compile-time check that *PartnerDB implements repository.PartnerRepository
var _ repository.PartnerRepository = (*PartnerDB)(nil)

// PartnerDB handles the two partner application tables.
//
// NGO and hospital applications share a lifecycle (pending, approved,
// rejected) but not a shape, so each gets its own table and its own methods.
// Nothing here touches users, donors, or patients.
type PartnerDB struct {
	q querier
}

const ngoColumns = `id, name, registration_type, registration_number,
	contact_person_name, contact_person_email, contact_person_phone,
	address, city, state, pincode, certificate_12a, certificate_80g,
	pan_number, activities_description, collaboration_plan, status, created_at`

func ngoDest(n *model.NgoRegistration) []any {
	return []any{
		&n.ID, &n.Name, &n.RegistrationType, &n.RegistrationNumber,
		&n.ContactPersonName, &n.ContactPersonEmail, &n.ContactPersonPhone,
		&n.Address, &n.City, &n.State, &n.Pincode, &n.Certificate12A, &n.Certificate80G,
		&n.PanNumber, &n.ActivitiesDescription, &n.CollaborationPlan, &n.Status, &n.CreatedAt,
	}
}

const hospitalColumns = `id, name, registration_number,
	contact_person_name, contact_person_email, contact_person_phone,
	address, city, state, pincode, blood_bank_registration_number,
	collaboration_details, specific_requirements, status, created_at`

func hospitalDest(h *model.HospitalRegistration) []any {
	return []any{
		&h.ID, &h.Name, &h.RegistrationNumber,
		&h.ContactPersonName, &h.ContactPersonEmail, &h.ContactPersonPhone,
		&h.Address, &h.City, &h.State, &h.Pincode, &h.BloodBankRegistrationNumber,
		&h.CollaborationDetails, &h.SpecificRequirements, &h.Status, &h.CreatedAt,
	}
}

// =========================================================================
// NGO
// =========================================================================

// CreateNgo stores a new application. Status is always forced to pending.
func (r *PartnerDB) CreateNgo(ctx context.Context, reg *model.NgoRegistration) error {
	reg.ID = xid.New().String()
	reg.Status = model.RegistrationPending
	reg.CreatedAt = time.Now().UTC()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO ngo_registrations (`+ngoColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reg.ID, reg.Name, reg.RegistrationType, reg.RegistrationNumber,
		reg.ContactPersonName, reg.ContactPersonEmail, reg.ContactPersonPhone,
		reg.Address, reg.City, reg.State, reg.Pincode,
		optionalString(reg.Certificate12A), optionalString(reg.Certificate80G),
		reg.PanNumber, reg.ActivitiesDescription, reg.CollaborationPlan, reg.Status, reg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting ngo registration: %w", err)
	}
	return nil
}

func (r *PartnerDB) GetNgo(ctx context.Context, id string) (*model.NgoRegistration, error) {
	var n model.NgoRegistration
	err := r.q.QueryRowContext(ctx,
		`SELECT `+ngoColumns+` FROM ngo_registrations WHERE id = ?`, id,
	).Scan(ngoDest(&n)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("ngo registration", id)
		}
		return nil, fmt.Errorf("sqlite: getting ngo registration %s: %w", id, err)
	}
	return &n, nil
}

// ListNgo returns all applications regardless of status, newest first.
func (r *PartnerDB) ListNgo(ctx context.Context) ([]model.NgoRegistration, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+ngoColumns+` FROM ngo_registrations ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ngo registrations: %w", err)
	}
	defer rows.Close()

	regs := []model.NgoRegistration{}
	for rows.Next() {
		var n model.NgoRegistration
		if err := rows.Scan(ngoDest(&n)...); err != nil {
			return nil, fmt.Errorf("sqlite: scanning ngo registration: %w", err)
		}
		regs = append(regs, n)
	}
	return regs, rows.Err()
}

func (r *PartnerDB) SetNgoStatus(ctx context.Context, id string, status model.RegistrationStatus) error {
	return r.setStatus(ctx, "ngo_registrations", "ngo registration", id, status)
}

// =========================================================================
// HOSPITAL
// =========================================================================

// CreateHospital stores a new application. Status is always forced to pending.
func (r *PartnerDB) CreateHospital(ctx context.Context, reg *model.HospitalRegistration) error {
	reg.ID = xid.New().String()
	reg.Status = model.RegistrationPending
	reg.CreatedAt = time.Now().UTC()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO hospital_registrations (`+hospitalColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reg.ID, reg.Name, optionalString(reg.RegistrationNumber),
		reg.ContactPersonName, reg.ContactPersonEmail, reg.ContactPersonPhone,
		reg.Address, reg.City, reg.State, reg.Pincode,
		optionalString(reg.BloodBankRegistrationNumber),
		reg.CollaborationDetails, optionalString(reg.SpecificRequirements),
		reg.Status, reg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting hospital registration: %w", err)
	}
	return nil
}

func (r *PartnerDB) GetHospital(ctx context.Context, id string) (*model.HospitalRegistration, error) {
	var h model.HospitalRegistration
	err := r.q.QueryRowContext(ctx,
		`SELECT `+hospitalColumns+` FROM hospital_registrations WHERE id = ?`, id,
	).Scan(hospitalDest(&h)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("hospital registration", id)
		}
		return nil, fmt.Errorf("sqlite: getting hospital registration %s: %w", id, err)
	}
	return &h, nil
}

// ListHospital returns all applications regardless of status, newest first.
func (r *PartnerDB) ListHospital(ctx context.Context) ([]model.HospitalRegistration, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+hospitalColumns+` FROM hospital_registrations ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing hospital registrations: %w", err)
	}
	defer rows.Close()

	regs := []model.HospitalRegistration{}
	for rows.Next() {
		var h model.HospitalRegistration
		if err := rows.Scan(hospitalDest(&h)...); err != nil {
			return nil, fmt.Errorf("sqlite: scanning hospital registration: %w", err)
		}
		regs = append(regs, h)
	}
	return regs, rows.Err()
}

func (r *PartnerDB) SetHospitalStatus(ctx context.Context, id string, status model.RegistrationStatus) error {
	return r.setStatus(ctx, "hospital_registrations", "hospital registration", id, status)
}

// setStatus updates exactly one row. table is always one of our two constants,
// never user input, so building the statement with Sprintf is safe.
func (r *PartnerDB) setStatus(ctx context.Context, table, resource, id string, status model.RegistrationStatus) error {
	res, err := r.q.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET status = ? WHERE id = ?`, table), status, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating %s %s: %w", resource, id, err)
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: checking %s %s update: %w", resource, id, err)
	}
	if !ok {
		return apperror.NotFound(resource, id)
	}
	return nil
}
