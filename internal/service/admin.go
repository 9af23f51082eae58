package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/blood-connect/internal/apperror"
	"github.com/sakif/blood-connect/internal/events"
	"github.com/sakif/blood-connect/internal/export"
	"github.com/sakif/blood-connect/internal/metrics"
	"github.com/sakif/blood-connect/internal/model"
	"github.com/sakif/blood-connect/internal/repository"
	"golang.org/x/sync/errgroup"
)

// Dashboard is everything the admin console shows on its first screen.
type Dashboard struct {
	Donors                []model.DonorWithUser        `json:"donors"`
	Patients              []model.PatientWithUser      `json:"patients"`
	Matches               []model.MatchDetails         `json:"matches"`
	NgoRegistrations      []model.NgoRegistration      `json:"ngoRegistrations"`
	HospitalRegistrations []model.HospitalRegistration `json:"hospitalRegistrations"`
	Stats                 DashboardStats               `json:"stats"`
}

// DashboardStats are counts derived from the lists in Dashboard.
type DashboardStats struct {
	TotalDonors      int                              `json:"totalDonors"`
	AvailableDonors  int                              `json:"availableDonors"`
	TotalPatients    int                              `json:"totalPatients"`
	PatientsByStatus map[model.RequestStatus]int      `json:"patientsByStatus"`
	TotalMatches     int                              `json:"totalMatches"`
	NgoByStatus      map[model.RegistrationStatus]int `json:"ngoByStatus"`
	HospitalByStatus map[model.RegistrationStatus]int `json:"hospitalByStatus"`
}

// AdminService backs the admin console: the dashboard and partner review.
type AdminService struct {
	store  repository.Store
	events events.Publisher
	logger *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(store repository.Store, publisher events.Publisher, logger *slog.Logger) *AdminService {
	return &AdminService{
		store:  store,
		events: publisher,
		logger: logger,
	}
}

// ParsePartnerKind turns a URL segment into a PartnerKind.
// Unknown kinds are reported as not found: there is no such collection.
func ParsePartnerKind(s string) (model.PartnerKind, error) {
	kind := model.PartnerKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.Valid() {
		return "", apperror.NotFound("registration kind", s)
	}
	return kind, nil
}

// Dashboard loads the five lists concurrently and computes the counts.
//
// ERRGROUP:
// errgroup.WithContext runs each read in its own goroutine and Wait returns
// the first error. The shared ctx is canceled as soon as one read fails, so
// the others stop early instead of finishing work nobody will use. Each
// goroutine writes to its own field, so no mutex is needed.
func (s *AdminService) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		d.Donors, err = s.store.Donors().ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Patients, err = s.store.Patients().ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.Matches, err = s.store.Matches().ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.NgoRegistrations, err = s.store.Partners().ListNgo(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.HospitalRegistrations, err = s.store.Partners().ListHospital(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("failed to load dashboard", slog.String("error", err.Error()))
		return nil, fmt.Errorf("loading dashboard: %w", err)
	}

	d.Stats = computeStats(&d)
	return &d, nil
}

func computeStats(d *Dashboard) DashboardStats {
	st := DashboardStats{
		TotalDonors:      len(d.Donors),
		TotalPatients:    len(d.Patients),
		TotalMatches:     len(d.Matches),
		PatientsByStatus: map[model.RequestStatus]int{},
		NgoByStatus:      map[model.RegistrationStatus]int{},
		HospitalByStatus: map[model.RegistrationStatus]int{},
	}
	for _, donor := range d.Donors {
		if donor.IsAvailable {
			st.AvailableDonors++
		}
	}
	for _, p := range d.Patients {
		st.PatientsByStatus[p.RequestStatus]++
	}
	for _, r := range d.NgoRegistrations {
		st.NgoByStatus[r.Status]++
	}
	for _, r := range d.HospitalRegistrations {
		st.HospitalByStatus[r.Status]++
	}
	return st
}

// ListNgoRegistrations returns every NGO application, newest first.
func (s *AdminService) ListNgoRegistrations(ctx context.Context) ([]model.NgoRegistration, error) {
	regs, err := s.store.Partners().ListNgo(ctx)
	if err != nil {
		s.logger.Error("failed to list ngo registrations", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing ngo registrations: %w", err)
	}
	return regs, nil
}

// ListHospitalRegistrations returns every hospital application, newest first.
func (s *AdminService) ListHospitalRegistrations(ctx context.Context) ([]model.HospitalRegistration, error) {
	regs, err := s.store.Partners().ListHospital(ctx)
	if err != nil {
		s.logger.Error("failed to list hospital registrations", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing hospital registrations: %w", err)
	}
	return regs, nil
}

// SetRegistrationStatus records a review decision.
//
// Only the value is checked. Any status can follow any other, so a rejected
// application can be approved later or reopened as pending.
func (s *AdminService) SetRegistrationStatus(ctx context.Context, kind model.PartnerKind, id string, status model.RegistrationStatus) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "registration ID is required")
	}
	if !status.Valid() {
		return apperror.ValidationFailed("status", "status must be one of: pending, approved, rejected")
	}

	var err error
	switch kind {
	case model.PartnerNgo:
		err = s.store.Partners().SetNgoStatus(ctx, id, status)
	case model.PartnerHospital:
		err = s.store.Partners().SetHospitalStatus(ctx, id, status)
	default:
		return apperror.NotFound("registration kind", string(kind))
	}
	if err != nil {
		logFailure(s.logger, "failed to update registration status", err,
			slog.String("kind", string(kind)),
			slog.String("id", id),
		)
		return fmt.Errorf("updating %s registration status: %w", kind, err)
	}

	s.logger.Info("registration status changed",
		slog.String("kind", string(kind)),
		slog.String("id", id),
		slog.String("status", string(status)),
	)
	metrics.RegistrationReviewsTotal.WithLabelValues(string(kind), string(status)).Inc()
	publish(ctx, s.events, s.logger, events.SubjectPartnerStatusChanged, map[string]any{
		"kind":   kind,
		"id":     id,
		"status": status,
	})
	return nil
}

// ExportRegistrations renders the applications of one kind as an XLSX
// workbook and suggests a file name for the download.
func (s *AdminService) ExportRegistrations(ctx context.Context, kind model.PartnerKind) ([]byte, string, error) {
	var (
		data []byte
		err  error
	)
	switch kind {
	case model.PartnerNgo:
		var regs []model.NgoRegistration
		if regs, err = s.ListNgoRegistrations(ctx); err != nil {
			return nil, "", err
		}
		data, err = export.NgoWorkbook(regs)
	case model.PartnerHospital:
		var regs []model.HospitalRegistration
		if regs, err = s.ListHospitalRegistrations(ctx); err != nil {
			return nil, "", err
		}
		data, err = export.HospitalWorkbook(regs)
	default:
		return nil, "", apperror.NotFound("registration kind", string(kind))
	}
	if err != nil {
		s.logger.Error("failed to export registrations",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return nil, "", fmt.Errorf("exporting %s registrations: %w", kind, err)
	}

	return data, fmt.Sprintf("%s-registrations.xlsx", kind), nil
}
