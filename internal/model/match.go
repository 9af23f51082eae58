package model

import "time"

// MatchStatus is the lifecycle of a DonationMatch.
//
// Matches are created directly in MatchCompleted. The other states are part of the
// stored vocabulary, but no code path sets them yet.
type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchContacted MatchStatus = "contacted"
	MatchCompleted MatchStatus = "completed"
	MatchCanceled  MatchStatus = "canceled"
)

// DonationMatch links one donor to one patient.
type DonationMatch struct {
	ID           string      `json:"id"           db:"id"`
	DonorID      string      `json:"donorId"      db:"donor_id"`
	PatientID    string      `json:"patientId"    db:"patient_id"`
	MatchDate    time.Time   `json:"matchDate"    db:"match_date"`
	DonationDate *time.Time  `json:"donationDate" db:"donation_date"`
	Status       MatchStatus `json:"status"       db:"status"`
	CreatedAt    time.Time   `json:"createdAt"    db:"created_at"`
}

// MatchDetails is a match joined with both sides of the pairing.
type MatchDetails struct {
	DonationMatch
	Donor   DonorWithUser   `json:"donor"`
	Patient PatientWithUser `json:"patient"`
}
