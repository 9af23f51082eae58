// Package auth signs and checks the credentials that prove who is calling.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. An admin signs in with email + password (or GitHub)
//  2. The service creates a server-side session (internal/session)
//  3. The server issues a JWT naming that session and stores it in an HttpOnly cookie
//  4. On later API calls, middleware validates the JWT, then looks the session up.
//     A deleted or expired session rejects the call even if the JWT still verifies.
//
// WHY A JWT AND A SESSION?
// The JWT alone is stateless and cannot be revoked before it expires. The
// session alone would need an opaque random cookie plus a lookup anyway. The
// signed token lets us reject forged or garbled cookies without touching the
// session store, and the session gives logout real teeth.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Payload: {"sub":"<user id>","jti":"<session id>","role":"admin","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sakif/blood-connect/internal/model"
	"github.com/sakif/blood-connect/internal/session"
)

const issuer = "blood-connect"

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Claims is the JWT payload.
//
//   - Subject (sub) → user ID
//   - ID (jti)      → session ID
//   - Role          → the user's role when the session was issued
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// SessionID returns the session this token refers to.
func (c *Claims) SessionID() string { return c.ID }

// UserID returns the user this token was issued to.
func (c *Claims) UserID() string { return c.Subject }

// Issue signs a token for sess. It expires together with the session.
func (s *TokenService) Issue(sess *session.Session) (string, error) {
	c := Claims{
		Role: sess.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a JWT string.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer matches "blood-connect"
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
//
// It does NOT check that the session still exists; the middleware does that.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" || c.ID == "" {
		return nil, fmt.Errorf("auth: token is missing subject or session id")
	}
	return c, nil
}

// issueWithExpiry is used by tests to mint tokens with arbitrary lifetimes.
func (s *TokenService) issueWithExpiry(userID, sessionID string, role model.Role, exp time.Time) (string, error) {
	return s.Issue(&session.Session{
		ID:        sessionID,
		UserID:    userID,
		Role:      role,
		IssuedAt:  time.Now(),
		ExpiresAt: exp,
	})
}
