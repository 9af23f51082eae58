package model

import "time"

// RegistrationStatus is the review state of a partner application.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

// Valid reports whether s is a known review status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationPending, RegistrationApproved, RegistrationRejected:
		return true
	}
	return false
}

// PartnerKind selects between the two partner application tables.
type PartnerKind string

const (
	PartnerNgo      PartnerKind = "ngo"
	PartnerHospital PartnerKind = "hospital"
)

// Valid reports whether k names a partner table.
func (k PartnerKind) Valid() bool {
	return k == PartnerNgo || k == PartnerHospital
}

// NgoType is the legal form of an NGO.
type NgoType string

const (
	NgoTrust           NgoType = "trust"
	NgoSociety         NgoType = "society"
	NgoSection8Company NgoType = "section_8_company"
)

// Valid reports whether t is a known NGO legal form.
func (t NgoType) Valid() bool {
	switch t {
	case NgoTrust, NgoSociety, NgoSection8Company:
		return true
	}
	return false
}

// NgoRegistration is an NGO's application to collaborate with the platform.
// It is independent of the User/Donor/Patient graph.
type NgoRegistration struct {
	ID                    string             `json:"id"                    db:"id"`
	Name                  string             `json:"name"                  db:"name"`
	RegistrationType      NgoType            `json:"registrationType"      db:"registration_type"`
	RegistrationNumber    string             `json:"registrationNumber"    db:"registration_number"`
	ContactPersonName     string             `json:"contactPersonName"     db:"contact_person_name"`
	ContactPersonEmail    string             `json:"contactPersonEmail"    db:"contact_person_email"`
	ContactPersonPhone    string             `json:"contactPersonPhone"    db:"contact_person_phone"`
	Address               string             `json:"address"               db:"address"`
	City                  string             `json:"city"                  db:"city"`
	State                 string             `json:"state"                 db:"state"`
	Pincode               string             `json:"pincode"               db:"pincode"`
	Certificate12A        *string            `json:"certificate12a"        db:"certificate_12a"`
	Certificate80G        *string            `json:"certificate80g"        db:"certificate_80g"`
	PanNumber             string             `json:"panNumber"             db:"pan_number"`
	ActivitiesDescription string             `json:"activitiesDescription" db:"activities_description"`
	CollaborationPlan     string             `json:"collaborationPlan"     db:"collaboration_plan"`
	Status                RegistrationStatus `json:"status"                db:"status"`
	CreatedAt             time.Time          `json:"createdAt"             db:"created_at"`
}

// HospitalRegistration is a hospital's application to collaborate with the platform.
type HospitalRegistration struct {
	ID                          string             `json:"id"                          db:"id"`
	Name                        string             `json:"name"                        db:"name"`
	RegistrationNumber          *string            `json:"registrationNumber"          db:"registration_number"`
	ContactPersonName           string             `json:"contactPersonName"           db:"contact_person_name"`
	ContactPersonEmail          string             `json:"contactPersonEmail"          db:"contact_person_email"`
	ContactPersonPhone          string             `json:"contactPersonPhone"          db:"contact_person_phone"`
	Address                     string             `json:"address"                     db:"address"`
	City                        string             `json:"city"                        db:"city"`
	State                       string             `json:"state"                       db:"state"`
	Pincode                     string             `json:"pincode"                     db:"pincode"`
	BloodBankRegistrationNumber *string            `json:"bloodBankRegistrationNumber" db:"blood_bank_registration_number"`
	CollaborationDetails        string             `json:"collaborationDetails"        db:"collaboration_details"`
	SpecificRequirements        *string            `json:"specificRequirements"        db:"specific_requirements"`
	Status                      RegistrationStatus `json:"status"                      db:"status"`
	CreatedAt                   time.Time          `json:"createdAt"                   db:"created_at"`
}
