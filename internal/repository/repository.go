// Package repository declares the storage contracts the service layer depends on.
//
// Services receive these interfaces, never a concrete database type, so the
// SQLite implementation can be swapped for another store (or a fake in tests)
// without touching business logic.
package repository

import (
	"context"
	"time"

	"github.com/sakif/blood-connect/internal/model"
)

// UserRepository reads and writes identity records.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByEmail returns apperror.ErrNotFound when no user has this email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// CountByRole is used at startup to decide whether an admin must be seeded.
	CountByRole(ctx context.Context, role model.Role) (int, error)
}

// DonorRepository reads and writes donor extensions of users.
type DonorRepository interface {
	// Create inserts a donor row whose ID must already exist in users.
	Create(ctx context.Context, donor *model.Donor) error
	GetByID(ctx context.Context, id string) (*model.DonorWithUser, error)
	// ListAvailable returns donors with exactly this blood type, whose user lives
	// in exactly this city (case-sensitive), and who are available.
	ListAvailable(ctx context.Context, bloodType model.BloodType, city string) ([]model.DonorWithUser, error)
	// SetAvailability flips is_available. Setting false stamps last_donation with at;
	// setting true clears it.
	SetAvailability(ctx context.Context, id string, available bool, at time.Time) error
	ListAll(ctx context.Context) ([]model.DonorWithUser, error)
}

// PatientRepository reads and writes patient extensions of users.
type PatientRepository interface {
	Create(ctx context.Context, patient *model.Patient) error
	GetByID(ctx context.Context, id string) (*model.PatientWithUser, error)
	// UpdateStatus writes any request status. It does not check the transition.
	UpdateStatus(ctx context.Context, id string, status model.RequestStatus) error
	ListAll(ctx context.Context) ([]model.PatientWithUser, error)
}

// MatchRepository stores donor/patient pairings.
type MatchRepository interface {
	// Create inserts the match. Unknown donor or patient IDs are rejected by
	// the foreign keys and surface as apperror.ErrNotFound.
	Create(ctx context.Context, match *model.DonationMatch) error
	ListAll(ctx context.Context) ([]model.MatchDetails, error)
}

// PartnerRepository stores NGO and hospital applications.
// Lists are ordered newest first and are never filtered by status.
type PartnerRepository interface {
	CreateNgo(ctx context.Context, reg *model.NgoRegistration) error
	GetNgo(ctx context.Context, id string) (*model.NgoRegistration, error)
	ListNgo(ctx context.Context) ([]model.NgoRegistration, error)
	SetNgoStatus(ctx context.Context, id string, status model.RegistrationStatus) error

	CreateHospital(ctx context.Context, reg *model.HospitalRegistration) error
	GetHospital(ctx context.Context, id string) (*model.HospitalRegistration, error)
	ListHospital(ctx context.Context) ([]model.HospitalRegistration, error)
	SetHospitalStatus(ctx context.Context, id string, status model.RegistrationStatus) error
}

// Store bundles the repositories and the unit-of-work boundary.
//
// InTx runs fn against a Store whose repositories all share one database
// transaction. If fn returns an error the transaction is rolled back and the
// error is returned unchanged; otherwise it is committed. Calling InTx on the
// Store handed to fn joins the outer transaction.
type Store interface {
	Users() UserRepository
	Donors() DonorRepository
	Patients() PatientRepository
	Matches() MatchRepository
	Partners() PartnerRepository
	InTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
