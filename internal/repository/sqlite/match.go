package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/blood-connect/internal/apperror"
	"github.com/sakif/blood-connect/internal/model"
	"github.com/sakif/blood-connect/internal/repository"
)

// compile-time check that *MatchDB implements repository.MatchRepository
var _ repository.MatchRepository = (*MatchDB)(nil)

// MatchDB handles persistence for the donation_matches table.
type MatchDB struct {
	q querier
}

// Create inserts a match. ID and CreatedAt are generated here; MatchDate
// defaults to CreatedAt when the caller leaves it zero.
//
// The foreign keys on donor_id and patient_id are the existence check: an
// unknown ID makes SQLite refuse the row, and we report it as not found.
func (r *MatchDB) Create(ctx context.Context, match *model.DonationMatch) error {
	match.ID = xid.New().String()
	match.CreatedAt = time.Now().UTC()
	if match.MatchDate.IsZero() {
		match.MatchDate = match.CreatedAt
	}
	match.MatchDate = match.MatchDate.UTC()
	if match.Status == "" {
		match.Status = model.MatchPending
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO donation_matches (id, donor_id, patient_id, match_date, donation_date, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		match.ID,
		match.DonorID,
		match.PatientID,
		match.MatchDate,
		optionalTime(match.DonationDate),
		match.Status,
		match.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("donor or patient", match.DonorID+"/"+match.PatientID)
		}
		return fmt.Errorf("sqlite: inserting match: %w", err)
	}
	return nil
}

// ListAll returns every match with both participants, newest first.
//
// One query with four joins instead of N+1 lookups. The pool has a single
// connection, so issuing a second query while rows are still open would block.
func (r *MatchDB) ListAll(ctx context.Context) ([]model.MatchDetails, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT m.id, m.donor_id, m.patient_id, m.match_date, m.donation_date, m.status, m.created_at,
		       `+donorColumns+`, `+userColumns("du")+`,
		       `+patientColumns+`, `+userColumns("pu")+`
		FROM donation_matches m
		JOIN donors d    ON d.id = m.donor_id
		JOIN users du    ON du.id = d.id
		JOIN patients p  ON p.id = m.patient_id
		JOIN users pu    ON pu.id = p.id
		ORDER BY m.created_at DESC, m.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing matches: %w", err)
	}
	defer rows.Close()

	matches := []model.MatchDetails{}
	for rows.Next() {
		var m model.MatchDetails
		dest := []any{
			&m.ID, &m.DonorID, &m.PatientID, &m.MatchDate, &m.DonationDate, &m.Status, &m.CreatedAt,
		}
		dest = append(dest, donorDest(&m.Donor)...)
		dest = append(dest, patientDest(&m.Patient)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("sqlite: scanning match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating match rows: %w", err)
	}
	return matches, nil
}
