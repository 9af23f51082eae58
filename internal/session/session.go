// Package session holds server-side login sessions.
//
// A session is issued when someone signs in and deleted when they sign out.
// The signed token in the browser only carries the session ID, so revoking a
// session here logs the user out everywhere even if the token has not expired.
//
// Two stores implement Store:
//   - MemoryStore → default, single process, lost on restart
//   - RedisStore  → shared between instances, survives restarts
package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/blood-connect/internal/model"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session: not found")

// Session is one signed-in user on one device.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Role      model.Role `json:"role"`
	IssuedAt  time.Time  `json:"issuedAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// New builds a session for user that is valid for ttl starting at now.
func New(user *model.User, ttl time.Duration, now time.Time) *Session {
	return &Session{
		ID:        xid.New().String(),
		UserID:    user.ID,
		Role:      user.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions.
//
// Get must return ErrNotFound for unknown or expired sessions, so callers never
// need to check expiry themselves. Delete of an unknown ID is not an error.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
