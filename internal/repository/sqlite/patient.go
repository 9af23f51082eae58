package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/blood-connect/internal/apperror"
	"github.com/sakif/blood-connect/internal/model"
	"github.com/sakif/blood-connect/internal/repository"
)

// compile-time check that *PatientDB implements repository.PatientRepository
var _ repository.PatientRepository = (*PatientDB)(nil)

// PatientDB handles persistence for the patients table.
type PatientDB struct {
	q querier
}

const patientColumns = `p.id, p.blood_type, p.urgency, p.request_status, p.requested_date, p.requestor_role, p.organization_name`

var patientSelect = `SELECT ` + patientColumns + `, ` + userColumns("u") + `
	FROM patients p JOIN users u ON u.id = p.id`

func patientDest(p *model.PatientWithUser) []any {
	return append([]any{
		&p.ID, &p.BloodType, &p.Urgency, &p.RequestStatus,
		&p.RequestedDate, &p.RequestorRole, &p.OrganizationName,
	}, userDest(&p.User)...)
}

// optionalString maps a nil pointer to SQL NULL.
func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Create inserts the patient extension for an existing user.
// An empty RequestStatus defaults to pending and an empty RequestorRole to patient.
func (r *PatientDB) Create(ctx context.Context, patient *model.Patient) error {
	if patient.RequestStatus == "" {
		patient.RequestStatus = model.RequestPending
	}
	if patient.RequestorRole == "" {
		patient.RequestorRole = model.RequestorPatient
	}
	patient.RequestedDate = patient.RequestedDate.UTC()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO patients (id, blood_type, urgency, request_status, requested_date, requestor_role, organization_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		patient.ID,
		patient.BloodType,
		patient.Urgency,
		patient.RequestStatus,
		patient.RequestedDate,
		patient.RequestorRole,
		optionalString(patient.OrganizationName),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("patient", patient.ID)
		}
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", patient.ID)
		}
		return fmt.Errorf("sqlite: inserting patient %s: %w", patient.ID, err)
	}
	return nil
}

// GetByID returns the patient joined with its user.
func (r *PatientDB) GetByID(ctx context.Context, id string) (*model.PatientWithUser, error) {
	var p model.PatientWithUser
	err := r.q.QueryRowContext(ctx, patientSelect+` WHERE p.id = ?`, id).Scan(patientDest(&p)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("patient", id)
		}
		return nil, fmt.Errorf("sqlite: getting patient %s: %w", id, err)
	}
	return &p, nil
}

// UpdateStatus overwrites the request status. Transition rules live in the service.
func (r *PatientDB) UpdateStatus(ctx context.Context, id string, status model.RequestStatus) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE patients SET request_status = ? WHERE id = ?`, status, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating patient %s status: %w", id, err)
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: checking patient %s update: %w", id, err)
	}
	if !ok {
		return apperror.NotFound("patient", id)
	}
	return nil
}

// ListAll returns every patient, newest request first.
func (r *PatientDB) ListAll(ctx context.Context) ([]model.PatientWithUser, error) {
	rows, err := r.q.QueryContext(ctx, patientSelect+` ORDER BY p.requested_date DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing patients: %w", err)
	}
	defer rows.Close()

	patients := []model.PatientWithUser{}
	for rows.Next() {
		var p model.PatientWithUser
		if err := rows.Scan(patientDest(&p)...); err != nil {
			return nil, fmt.Errorf("sqlite: scanning patient row: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating patient rows: %w", err)
	}
	return patients, nil
}
