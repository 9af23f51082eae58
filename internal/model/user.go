// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data. They are similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Role is the account type stored on a User.
//
// STRING-BACKED ENUMS:
// Go has no enum keyword. The usual idiom is a named string type plus a block of
// typed constants. The named type stops a plain string from being passed where a Role
// is expected without an explicit conversion, and the string value is what ends up
// in the database and in JSON.
type Role string

const (
	RoleDonor   Role = "donor"
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDonor, RolePatient, RoleAdmin:
		return true
	}
	return false
}

// User is the identity record shared by donors, patients and admins.
//
// The role-specific data lives in Donor or Patient rows that reuse the user's ID,
// so a User is always created first.
//
// PasswordHash is tagged `json:"-"` so the bcrypt hash can never leak through an
// API response, even if a handler encodes the whole struct.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	Name         string    `json:"name"      db:"name"`
	Phone        string    `json:"phone"     db:"phone"`
	City         string    `json:"city"      db:"city"`
	Role         Role      `json:"role"      db:"role"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
