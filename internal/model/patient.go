package model

import "time"

// Urgency is the patient-declared priority. It has no effect on matching order.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Valid reports whether u is a known urgency level.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// RequestStatus tracks a patient's blood request.
//
// The patient flow moves pending -> fulfilled when a match is confirmed.
// RequestMatched is only reachable through the admin "mark matched" action.
// Nothing moves a request back to pending.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestMatched   RequestStatus = "matched"
	RequestFulfilled RequestStatus = "fulfilled"
)

// Valid reports whether s is a known request status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestMatched, RequestFulfilled:
		return true
	}
	return false
}

// RequestorRole records who filed the request. Informational only.
type RequestorRole string

const (
	RequestorPatient  RequestorRole = "patient"
	RequestorNgo      RequestorRole = "ngo"
	RequestorHospital RequestorRole = "hospital"
)

// Valid reports whether r is a known requestor role.
func (r RequestorRole) Valid() bool {
	switch r {
	case RequestorPatient, RequestorNgo, RequestorHospital:
		return true
	}
	return false
}

// Patient extends a User with a blood request. Its ID is the owning user's ID.
type Patient struct {
	ID               string        `json:"id"               db:"id"`
	BloodType        BloodType     `json:"bloodType"        db:"blood_type"`
	Urgency          Urgency       `json:"urgency"          db:"urgency"`
	RequestStatus    RequestStatus `json:"requestStatus"    db:"request_status"`
	RequestedDate    time.Time     `json:"requestedDate"    db:"requested_date"`
	RequestorRole    RequestorRole `json:"requestorRole"    db:"requestor_role"`
	OrganizationName *string       `json:"organizationName" db:"organization_name"`
}

// PatientWithUser is the result shape of patient queries that join the users table.
type PatientWithUser struct {
	Patient
	User User `json:"user"`
}
