package model

import "time"

// BloodType is one of the eight ABO/Rh groups.
type BloodType string

const (
	BloodAPos  BloodType = "A+"
	BloodANeg  BloodType = "A-"
	BloodBPos  BloodType = "B+"
	BloodBNeg  BloodType = "B-"
	BloodABPos BloodType = "AB+"
	BloodABNeg BloodType = "AB-"
	BloodOPos  BloodType = "O+"
	BloodONeg  BloodType = "O-"
)

// BloodTypes lists every accepted blood type, in display order.
var BloodTypes = []BloodType{
	BloodAPos, BloodANeg, BloodBPos, BloodBNeg,
	BloodABPos, BloodABNeg, BloodOPos, BloodONeg,
}

// Valid reports whether b is one of the eight known blood types.
func (b BloodType) Valid() bool {
	for _, bt := range BloodTypes {
		if b == bt {
			return true
		}
	}
	return false
}

// Donor extends a User with role donor. Its ID is always the owning user's ID.
//
// LastDonation is a pointer because "never donated" is a real state, and nil maps
// to SQL NULL and JSON null without a sentinel value.
type Donor struct {
	ID           string     `json:"id"           db:"id"`
	BloodType    BloodType  `json:"bloodType"    db:"blood_type"`
	IsAvailable  bool       `json:"isAvailable"  db:"is_available"`
	LastDonation *time.Time `json:"lastDonation" db:"last_donation"`
}

// DonorWithUser is the result shape of donor queries that join the users table.
type DonorWithUser struct {
	Donor
	User User `json:"user"`
}
