// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services never see *http.Request and never write SQL. They accept plain
// input structs, return domain errors from internal/apperror, and let the
// handler decide which status code each error becomes.
//
// THE DEPENDENCY CHAIN:
//
//	server.go creates:  DB → Store → Services → Handlers
//	At runtime:         Handler calls Service calls Store calls DB
//
// Every service takes a repository.Store (interface), NOT a *sqlite.DB. Tests
// hand in an in-memory SQLite store or a sqlmock-backed one; production hands
// in the file-backed store.
//
// SIDE EFFECTS:
// After a successful write a service bumps a Prometheus counter and publishes
// an event. Both are best effort: an event that cannot be published is logged
// and the request still succeeds.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/blood-connect/internal/apperror"
	"github.com/sakif/blood-connect/internal/auth"
	"github.com/sakif/blood-connect/internal/events"
	"github.com/sakif/blood-connect/internal/metrics"
	"github.com/sakif/blood-connect/internal/model"
	"github.com/sakif/blood-connect/internal/repository"
)

const msgEmailTaken = "a user with this email already exists"

// DonorRegistration is the donor sign-up form.
type DonorRegistration struct {
	Name      string          `json:"name"      validate:"required,min=2"`
	Email     string          `json:"email"     validate:"required,email"`
	Phone     string          `json:"phone"     validate:"required,min=10"`
	City      string          `json:"city"      validate:"required,min=2"`
	BloodType model.BloodType `json:"bloodType" validate:"required,bloodtype"`
	Password  string          `json:"password"  validate:"required,min=6,bcryptlen"`
}

// PatientRegistration is the blood request form. It can be filed by the
// patient or on their behalf by an NGO or hospital, in which case the
// organization name is required.
type PatientRegistration struct {
	Name             string              `json:"name"             validate:"required,min=2"`
	Email            string              `json:"email"            validate:"required,email"`
	Phone            string              `json:"phone"            validate:"required,min=10"`
	City             string              `json:"city"             validate:"required,min=2"`
	BloodType        model.BloodType     `json:"bloodType"        validate:"required,bloodtype"`
	Urgency          model.Urgency       `json:"urgency"          validate:"required,oneof=low medium high"`
	Password         string              `json:"password"         validate:"required,min=6,bcryptlen"`
	RequestorRole    model.RequestorRole `json:"requestorRole"    validate:"omitempty,oneof=patient ngo hospital"`
	OrganizationName string              `json:"organizationName" validate:"required_if=RequestorRole ngo,required_if=RequestorRole hospital"`
}

// NgoApplication is the NGO collaboration form.
type NgoApplication struct {
	Name                  string        `json:"name"                  validate:"required,min=3"`
	RegistrationType      model.NgoType `json:"registrationType"      validate:"required,oneof=trust society section_8_company"`
	RegistrationNumber    string        `json:"registrationNumber"    validate:"required,min=3"`
	ContactPersonName     string        `json:"contactPersonName"     validate:"required,min=3"`
	ContactPersonEmail    string        `json:"contactPersonEmail"    validate:"required,email"`
	ContactPersonPhone    string        `json:"contactPersonPhone"    validate:"required,min=10"`
	Address               string        `json:"address"               validate:"required,min=5"`
	City                  string        `json:"city"                  validate:"required,min=2"`
	State                 string        `json:"state"                 validate:"required,min=2"`
	Pincode               string        `json:"pincode"               validate:"required,min=5"`
	Certificate12A        string        `json:"certificate12a"`
	Certificate80G        string        `json:"certificate80g"`
	PanNumber             string        `json:"panNumber"             validate:"required,min=10"`
	ActivitiesDescription string        `json:"activitiesDescription" validate:"required,min=10"`
	CollaborationPlan     string        `json:"collaborationPlan"     validate:"required,min=10"`
}

// HospitalApplication is the hospital collaboration form.
type HospitalApplication struct {
	Name                        string `json:"name"                        validate:"required,min=3"`
	RegistrationNumber          string `json:"registrationNumber"`
	ContactPersonName           string `json:"contactPersonName"           validate:"required,min=3"`
	ContactPersonEmail          string `json:"contactPersonEmail"          validate:"required,email"`
	ContactPersonPhone          string `json:"contactPersonPhone"          validate:"required,min=10"`
	Address                     string `json:"address"                     validate:"required,min=5"`
	City                        string `json:"city"                        validate:"required,min=2"`
	State                       string `json:"state"                       validate:"required,min=2"`
	Pincode                     string `json:"pincode"                     validate:"required,min=5"`
	BloodBankRegistrationNumber string `json:"bloodBankRegistrationNumber"`
	CollaborationDetails        string `json:"collaborationDetails"        validate:"required,min=10"`
	SpecificRequirements        string `json:"specificRequirements"`
}

// RegistrationService runs the four public sign-up workflows.
type RegistrationService struct {
	store     repository.Store
	passwords *auth.PasswordService
	events    events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewRegistrationService creates a RegistrationService.
func NewRegistrationService(
	store repository.Store,
	passwords *auth.PasswordService,
	publisher events.Publisher,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		store:     store,
		passwords: passwords,
		events:    publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterDonor creates a donor account: a User with role donor and a Donor
// row that starts out available.
//
// USER + DONOR IN ONE TRANSACTION:
// The email check, the user insert and the donor insert share a transaction.
// If the donor insert fails the user insert is rolled back with it, so a
// failed sign-up never leaves an account without its donor record.
func (s *RegistrationService) RegisterDonor(ctx context.Context, in DonorRegistration) (*model.DonorWithUser, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.City = strings.TrimSpace(in.City)

	if err := validateStruct(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		s.logFailure("donor registration failed", err, slog.String("email", in.Email))
		return nil, fmt.Errorf("registering donor: %w", err)
	}

	user := &model.User{
		Email:        in.Email,
		Name:         in.Name,
		Phone:        in.Phone,
		City:         in.City,
		Role:         model.RoleDonor,
		PasswordHash: hash,
	}
	donor := &model.Donor{
		BloodType:   in.BloodType,
		IsAvailable: true,
	}

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if err := createUser(ctx, tx, user); err != nil {
			return err
		}
		donor.ID = user.ID
		return tx.Donors().Create(ctx, donor)
	})
	if err != nil {
		s.logFailure("donor registration failed", err, slog.String("email", in.Email))
		return nil, fmt.Errorf("registering donor: %w", err)
	}

	s.logger.Info("donor registered",
		slog.String("id", user.ID),
		slog.String("bloodType", string(donor.BloodType)),
		slog.String("city", user.City),
	)
	metrics.RegistrationsTotal.WithLabelValues("donor").Inc()
	s.publish(ctx, events.SubjectDonorRegistered, map[string]any{
		"donorId":   user.ID,
		"bloodType": donor.BloodType,
		"city":      user.City,
	})

	return &model.DonorWithUser{Donor: *donor, User: *user}, nil
}

// RegisterPatient files a blood request: a User with role patient and a
// Patient row in status pending.
//
// The user role is patient even when an NGO or hospital files the request;
// requestorRole only records who filled in the form.
func (s *RegistrationService) RegisterPatient(ctx context.Context, in PatientRegistration) (*model.PatientWithUser, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.City = strings.TrimSpace(in.City)
	in.OrganizationName = strings.TrimSpace(in.OrganizationName)
	if in.RequestorRole == "" {
		in.RequestorRole = model.RequestorPatient
	}

	if err := validateStruct(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		s.logFailure("patient registration failed", err, slog.String("email", in.Email))
		return nil, fmt.Errorf("registering patient: %w", err)
	}

	user := &model.User{
		Email:        in.Email,
		Name:         in.Name,
		Phone:        in.Phone,
		City:         in.City,
		Role:         model.RolePatient,
		PasswordHash: hash,
	}
	patient := &model.Patient{
		BloodType:        in.BloodType,
		Urgency:          in.Urgency,
		RequestStatus:    model.RequestPending,
		RequestedDate:    s.now().UTC(),
		RequestorRole:    in.RequestorRole,
		OrganizationName: optional(in.OrganizationName),
	}

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if err := createUser(ctx, tx, user); err != nil {
			return err
		}
		patient.ID = user.ID
		return tx.Patients().Create(ctx, patient)
	})
	if err != nil {
		s.logFailure("patient registration failed", err, slog.String("email", in.Email))
		return nil, fmt.Errorf("registering patient: %w", err)
	}

	s.logger.Info("patient registered",
		slog.String("id", user.ID),
		slog.String("bloodType", string(patient.BloodType)),
		slog.String("urgency", string(patient.Urgency)),
		slog.String("requestorRole", string(patient.RequestorRole)),
	)
	metrics.RegistrationsTotal.WithLabelValues("patient").Inc()
	s.publish(ctx, events.SubjectPatientRegistered, map[string]any{
		"patientId": user.ID,
		"bloodType": patient.BloodType,
		"urgency":   patient.Urgency,
		"city":      user.City,
	})

	return &model.PatientWithUser{Patient: *patient, User: *user}, nil
}

// RegisterNgo stores an NGO application in status pending. No account is created.
func (s *RegistrationService) RegisterNgo(ctx context.Context, in NgoApplication) (*model.NgoRegistration, error) {
	trimAll(&in.Name, &in.RegistrationNumber, &in.ContactPersonName, &in.ContactPersonPhone,
		&in.Address, &in.City, &in.State, &in.Pincode, &in.Certificate12A, &in.Certificate80G,
		&in.PanNumber, &in.ActivitiesDescription, &in.CollaborationPlan)
	in.ContactPersonEmail = normalizeEmail(in.ContactPersonEmail)

	if err := validateStruct(in); err != nil {
		return nil, err
	}

	reg := &model.NgoRegistration{
		Name:                  in.Name,
		RegistrationType:      in.RegistrationType,
		RegistrationNumber:    in.RegistrationNumber,
		ContactPersonName:     in.ContactPersonName,
		ContactPersonEmail:    in.ContactPersonEmail,
		ContactPersonPhone:    in.ContactPersonPhone,
		Address:               in.Address,
		City:                  in.City,
		State:                 in.State,
		Pincode:               in.Pincode,
		Certificate12A:        optional(in.Certificate12A),
		Certificate80G:        optional(in.Certificate80G),
		PanNumber:             in.PanNumber,
		ActivitiesDescription: in.ActivitiesDescription,
		CollaborationPlan:     in.CollaborationPlan,
	}
	if err := s.store.Partners().CreateNgo(ctx, reg); err != nil {
		s.logFailure("ngo registration failed", err, slog.String("name", in.Name))
		return nil, fmt.Errorf("registering ngo: %w", err)
	}

	s.partnerSubmitted(ctx, model.PartnerNgo, reg.ID, reg.Name, reg.City)
	return reg, nil
}

// RegisterHospital stores a hospital application in status pending.
func (s *RegistrationService) RegisterHospital(ctx context.Context, in HospitalApplication) (*model.HospitalRegistration, error) {
	trimAll(&in.Name, &in.RegistrationNumber, &in.ContactPersonName, &in.ContactPersonPhone,
		&in.Address, &in.City, &in.State, &in.Pincode, &in.BloodBankRegistrationNumber,
		&in.CollaborationDetails, &in.SpecificRequirements)
	in.ContactPersonEmail = normalizeEmail(in.ContactPersonEmail)

	if err := validateStruct(in); err != nil {
		return nil, err
	}

	reg := &model.HospitalRegistration{
		Name:                        in.Name,
		RegistrationNumber:          optional(in.RegistrationNumber),
		ContactPersonName:           in.ContactPersonName,
		ContactPersonEmail:          in.ContactPersonEmail,
		ContactPersonPhone:          in.ContactPersonPhone,
		Address:                     in.Address,
		City:                        in.City,
		State:                       in.State,
		Pincode:                     in.Pincode,
		BloodBankRegistrationNumber: optional(in.BloodBankRegistrationNumber),
		CollaborationDetails:        in.CollaborationDetails,
		SpecificRequirements:        optional(in.SpecificRequirements),
	}
	if err := s.store.Partners().CreateHospital(ctx, reg); err != nil {
		s.logFailure("hospital registration failed", err, slog.String("name", in.Name))
		return nil, fmt.Errorf("registering hospital: %w", err)
	}

	s.partnerSubmitted(ctx, model.PartnerHospital, reg.ID, reg.Name, reg.City)
	return reg, nil
}

func (s *RegistrationService) partnerSubmitted(ctx context.Context, kind model.PartnerKind, id, name, city string) {
	s.logger.Info("partner application submitted",
		slog.String("kind", string(kind)),
		slog.String("id", id),
		slog.String("name", name),
	)
	metrics.RegistrationsTotal.WithLabelValues(string(kind)).Inc()
	s.publish(ctx, events.SubjectPartnerSubmitted, map[string]any{
		"kind": kind,
		"id":   id,
		"name": name,
		"city": city,
	})
}

func (s *RegistrationService) publish(ctx context.Context, subject string, payload any) {
	publish(ctx, s.events, s.logger, subject, payload)
}

func (s *RegistrationService) logFailure(msg string, err error, attrs ...any) {
	logFailure(s.logger, msg, err, attrs...)
}

// createUser inserts user unless its email is taken.
//
// The lookup gives the caller-facing "already exists" message; the UNIQUE
// constraint behind Users().Create catches the race where two sign-ups with
// the same email pass the lookup at the same time.
func createUser(ctx context.Context, tx repository.Store, user *model.User) error {
	_, err := tx.Users().GetByEmail(ctx, user.Email)
	switch {
	case err == nil:
		return apperror.AlreadyExists(msgEmailTaken)
	case !errors.Is(err, apperror.ErrNotFound):
		return fmt.Errorf("looking up email: %w", err)
	}
	return tx.Users().Create(ctx, user)
}

// =========================================================================
// SHARED HELPERS
// =========================================================================

// publish sends an event and logs, never returns, a failure.
func publish(ctx context.Context, p events.Publisher, logger *slog.Logger, subject string, payload any) {
	if err := p.Publish(ctx, subject, payload); err != nil {
		logger.Warn("event not published",
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
	}
}

// logFailure logs err unless it is an expected client error (validation,
// conflict, not found), which the handler reports and does not need a log line.
func logFailure(logger *slog.Logger, msg string, err error, attrs ...any) {
	if isClientError(err) {
		return
	}
	logger.Error(msg, append(attrs, slog.String("error", err.Error()))...)
}

func isClientError(err error) bool {
	return errors.Is(err, apperror.ErrValidation) ||
		errors.Is(err, apperror.ErrConflict) ||
		errors.Is(err, apperror.ErrNotFound) ||
		errors.Is(err, apperror.ErrForbidden) ||
		errors.Is(err, apperror.ErrUnauthorized)
}

// normalizeEmail trims and lower-cases an address so that "A@x.org" and
// "a@x.org " are the same account.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// optional maps an empty form field to NULL.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func trimAll(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}
