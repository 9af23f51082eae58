package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/blood-connect/internal/apperror"
	"github.com/sakif/blood-connect/internal/model"
	"github.com/sakif/blood-connect/internal/repository"
)

// compile-time check that *DonorDB implements repository.DonorRepository
var _ repository.DonorRepository = (*DonorDB)(nil)

// DonorDB handles persistence for the donors table.
type DonorDB struct {
	q querier
}

const donorColumns = `d.id, d.blood_type, d.is_available, d.last_donation`

// donorSelect joins each donor with its user. Every donor query starts from here.
var donorSelect = `SELECT ` + donorColumns + `, ` + userColumns("u") + `
	FROM donors d JOIN users u ON u.id = d.id`

func donorDest(d *model.DonorWithUser) []any {
	return append([]any{&d.ID, &d.BloodType, &d.IsAvailable, &d.LastDonation}, userDest(&d.User)...)
}

// optionalTime maps a nil pointer to SQL NULL.
func optionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// Create inserts the donor extension for an existing user.
func (r *DonorDB) Create(ctx context.Context, donor *model.Donor) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO donors (id, blood_type, is_available, last_donation) VALUES (?, ?, ?, ?)`,
		donor.ID,
		donor.BloodType,
		donor.IsAvailable,
		optionalTime(donor.LastDonation),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("donor", donor.ID)
		}
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", donor.ID)
		}
		return fmt.Errorf("sqlite: inserting donor %s: %w", donor.ID, err)
	}
	return nil
}

// GetByID returns the donor joined with its user.
func (r *DonorDB) GetByID(ctx context.Context, id string) (*model.DonorWithUser, error) {
	var d model.DonorWithUser
	err := r.q.QueryRowContext(ctx, donorSelect+` WHERE d.id = ?`, id).Scan(donorDest(&d)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("donor", id)
		}
		return nil, fmt.Errorf("sqlite: getting donor %s: %w", id, err)
	}
	return &d, nil
}

// ListAvailable returns available donors of exactly bloodType in exactly city.
//
// Matching is exact on both columns: "Metropolis" does not match "metropolis",
// and A+ does not match O-. No compatibility table is applied. Results come back
// in registration order so repeated calls are stable.
func (r *DonorDB) ListAvailable(ctx context.Context, bloodType model.BloodType, city string) ([]model.DonorWithUser, error) {
	return r.list(ctx,
		donorSelect+` WHERE d.blood_type = ? AND u.city = ? AND d.is_available = 1
		 ORDER BY u.created_at ASC, d.id ASC`,
		bloodType, city,
	)
}

// ListAll returns every donor, newest registration first.
func (r *DonorDB) ListAll(ctx context.Context) ([]model.DonorWithUser, error) {
	return r.list(ctx, donorSelect+` ORDER BY u.created_at DESC, d.id DESC`)
}

func (r *DonorDB) list(ctx context.Context, query string, args ...any) ([]model.DonorWithUser, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing donors: %w", err)
	}
	defer rows.Close()

	donors := []model.DonorWithUser{}
	for rows.Next() {
		var d model.DonorWithUser
		if err := rows.Scan(donorDest(&d)...); err != nil {
			return nil, fmt.Errorf("sqlite: scanning donor row: %w", err)
		}
		donors = append(donors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating donor rows: %w", err)
	}
	return donors, nil
}

// SetAvailability flips a donor's availability.
// Marking a donor unavailable records at as their last donation; marking them
// available again clears it.
func (r *DonorDB) SetAvailability(ctx context.Context, id string, available bool, at time.Time) error {
	var lastDonation any
	if !available {
		lastDonation = at.UTC()
	}

	res, err := r.q.ExecContext(ctx,
		`UPDATE donors SET is_available = ?, last_donation = ? WHERE id = ?`,
		available, lastDonation, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating donor %s availability: %w", id, err)
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return fmt.Errorf("sqlite: checking donor %s update: %w", id, err)
	}
	if !ok {
		return apperror.NotFound("donor", id)
	}
	return nil
}
