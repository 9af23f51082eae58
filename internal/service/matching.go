package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/blood-connect/internal/apperror"
	"github.com/sakif/blood-connect/internal/events"
	"github.com/sakif/blood-connect/internal/metrics"
	"github.com/sakif/blood-connect/internal/model"
	"github.com/sakif/blood-connect/internal/repository"
)

// MatchingService finds donors for a request and records the pairing.
type MatchingService struct {
	store  repository.Store
	events events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewMatchingService creates a MatchingService.
func NewMatchingService(store repository.Store, publisher events.Publisher, logger *slog.Logger) *MatchingService {
	return &MatchingService{
		store:  store,
		events: publisher,
		logger: logger,
		now:    time.Now,
	}
}

// ListEligibleDonors returns the available donors with exactly this blood
// type in exactly this city.
//
// ELIGIBILITY IS THREE EQUALITIES:
//   - donor.blood_type == bloodType   (no cross-compatibility: an O- donor is not offered to A+)
//   - user.city        == city        (case-sensitive, no geography)
//   - donor.is_available
//
// No ranking is applied. An empty result is a normal answer, not an error.
func (s *MatchingService) ListEligibleDonors(ctx context.Context, bloodType model.BloodType, city string) ([]model.DonorWithUser, error) {
	if !bloodType.Valid() {
		return nil, apperror.ValidationFailed("bloodType", "please select a valid blood type")
	}
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, apperror.ValidationFailed("city", "city is required")
	}

	donors, err := s.store.Donors().ListAvailable(ctx, bloodType, city)
	if err != nil {
		s.logger.Error("failed to list eligible donors",
			slog.String("bloodType", string(bloodType)),
			slog.String("city", city),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing eligible donors: %w", err)
	}
	return donors, nil
}

// CreateMatch pairs a donor with a patient.
//
// THREE WRITES, ONE UNIT:
//  1. insert the match, already in status completed
//  2. mark the donor unavailable and stamp last_donation
//  3. mark the patient's request fulfilled
//
// All three run in one transaction. If any step fails nothing is kept.
//
// The donor's availability is NOT re-checked here. Two requests that match
// the same donor to two patients at the same moment both succeed; the
// coordinator sees both matches on the dashboard.
func (s *MatchingService) CreateMatch(ctx context.Context, donorID, patientID string) (*model.DonationMatch, error) {
	donorID = strings.TrimSpace(donorID)
	patientID = strings.TrimSpace(patientID)
	if donorID == "" {
		return nil, apperror.ValidationFailed("donorId", "donorId is required")
	}
	if patientID == "" {
		return nil, apperror.ValidationFailed("patientId", "patientId is required")
	}

	now := s.now().UTC()
	match := &model.DonationMatch{
		DonorID:   donorID,
		PatientID: patientID,
		MatchDate: now,
		Status:    model.MatchCompleted,
	}

	err := s.store.InTx(ctx, func(tx repository.Store) error {
		if err := tx.Matches().Create(ctx, match); err != nil {
			return err
		}
		if err := tx.Donors().SetAvailability(ctx, donorID, false, now); err != nil {
			return err
		}
		return tx.Patients().UpdateStatus(ctx, patientID, model.RequestFulfilled)
	})
	if err != nil {
		result := "failed"
		if isClientError(err) {
			result = "rejected"
		}
		metrics.MatchesTotal.WithLabelValues(result).Inc()
		logFailure(s.logger, "match failed", err,
			slog.String("donorId", donorID),
			slog.String("patientId", patientID),
		)
		return nil, fmt.Errorf("creating match: %w", err)
	}

	s.logger.Info("match created",
		slog.String("id", match.ID),
		slog.String("donorId", donorID),
		slog.String("patientId", patientID),
	)
	metrics.MatchesTotal.WithLabelValues("created").Inc()
	publish(ctx, s.events, s.logger, events.SubjectMatchCreated, match)

	return match, nil
}

// MarkPatientMatched moves a pending request to matched.
//
// The patient flow goes straight from pending to fulfilled; this is the
// coordinator's manual "a donor has been found" marker and only applies to
// requests that are still pending.
func (s *MatchingService) MarkPatientMatched(ctx context.Context, patientID string) error {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return apperror.ValidationFailed("id", "patient ID is required")
	}

	err := s.store.InTx(ctx, func(tx repository.Store) error {
		p, err := tx.Patients().GetByID(ctx, patientID)
		if err != nil {
			return err
		}
		if p.RequestStatus != model.RequestPending {
			return apperror.ValidationFailed("requestStatus",
				fmt.Sprintf("only pending requests can be marked matched (current: %s)", p.RequestStatus))
		}
		return tx.Patients().UpdateStatus(ctx, patientID, model.RequestMatched)
	})
	if err != nil {
		logFailure(s.logger, "failed to mark patient matched", err, slog.String("patientId", patientID))
		return fmt.Errorf("marking patient matched: %w", err)
	}

	s.logger.Info("patient marked matched", slog.String("patientId", patientID))
	return nil
}

// ListMatches returns every match with both participants, newest first.
func (s *MatchingService) ListMatches(ctx context.Context) ([]model.MatchDetails, error) {
	matches, err := s.store.Matches().ListAll(ctx)
	if err != nil {
		s.logger.Error("failed to list matches", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	return matches, nil
}
