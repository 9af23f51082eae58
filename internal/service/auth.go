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
	"github.com/sakif/blood-connect/internal/model"
	"github.com/sakif/blood-connect/internal/repository"
	"github.com/sakif/blood-connect/internal/session"
)

const msgBadCredentials = "invalid email or password"

// AuthService handles sign-in, sign-out and the seeded admin account.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ session.Store (server-side sessions)
//	                                 ↘ TokenService  (signed cookie value)
//
// KEY RESPONSIBILITIES:
//   - Check email + password logins against bcrypt hashes
//   - Let a GitHub identity in only when its email belongs to an admin
//   - Create a session on sign-in and delete it on sign-out
//
// It does NOT set cookies or read requests; the handler does that.
type AuthService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	sessions  session.Store
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates an AuthService. ttl is how long a session lives.
func NewAuthService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	sessions session.Store,
	ttl time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		sessions:  sessions,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthResult bundles what a successful sign-in produces, so the handler can
// set the cookie and answer in one step.
type AuthResult struct {
	User    *model.User
	Session *session.Session
	Token   string
}

// Login checks an email + password pair and opens a session.
//
// Unknown emails and wrong passwords get the same error and take the same
// time (Burn runs a throwaway bcrypt compare), so the endpoint cannot be used
// to find out which emails are registered.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.Burn(password)
			s.logger.Warn("login failed", slog.String("email", email), slog.String("reason", "unknown email"))
			return nil, apperror.Unauthorized(msgBadCredentials)
		}
		s.logger.Error("failed to look up user for login", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Warn("login failed", slog.String("email", email), slog.String("reason", "wrong password"))
			return nil, apperror.Unauthorized(msgBadCredentials)
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.startSession(ctx, user, "password")
}

// LoginGitHub signs in an administrator who proved their identity with GitHub.
//
// GitHub accounts are never created here. The GitHub email must equal the
// email of an existing admin user, otherwise the sign-in is forbidden.
func (s *AuthService) LoginGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}
	email := normalizeEmail(ghUser.Email)
	if email == "" {
		return nil, apperror.Forbidden("your GitHub account has no verified email address")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}
	if err != nil || user.Role != model.RoleAdmin {
		s.logger.Warn("GitHub sign-in refused",
			slog.String("login", ghUser.Login),
			slog.String("email", email),
		)
		return nil, apperror.Forbidden("this GitHub account is not an administrator")
	}

	return s.startSession(ctx, user, "github")
}

func (s *AuthService) startSession(ctx context.Context, user *model.User, method string) (*AuthResult, error) {
	sess := session.New(user, s.ttl, s.now().UTC())
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.logger.Error("failed to save session", slog.String("userID", user.ID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/auth: saving session: %w", err)
	}

	token, err := s.tokens.Issue(sess)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user signed in",
		slog.String("userID", user.ID),
		slog.String("role", string(user.Role)),
		slog.String("method", method),
	)
	return &AuthResult{User: user, Session: sess, Token: token}, nil
}

// Logout deletes the session. Deleting an unknown session is not an error,
// so logging out twice is harmless.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("service/auth: deleting session: %w", err)
	}
	s.logger.Info("user signed out", slog.String("sessionID", sessionID))
	return nil
}

// CurrentUser returns the signed-in user's record for /api/me.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("not signed in")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	return user, nil
}

// SeedAdmin creates the first admin account from configuration.
//
// It does nothing when an admin already exists, so the configured password is
// only used once and changing it later does not silently reset anything. With
// no email configured it only warns: the console is then unreachable except
// through an admin added by hand.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) error {
	n, err := s.users.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("service/auth: counting admins: %w", err)
	}
	if n > 0 {
		return nil
	}

	email = normalizeEmail(email)
	if email == "" {
		s.logger.Warn("no admin account exists and none is configured; set BLOOD_AUTH_ADMIN_EMAIL and BLOOD_AUTH_ADMIN_PASSWORD")
		return nil
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("service/auth: hashing admin password: %w", err)
	}

	admin := &model.User{
		Email:        email,
		Name:         strings.SplitN(email, "@", 2)[0],
		Role:         model.RoleAdmin,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return fmt.Errorf("service/auth: creating admin %s: %w", email, err)
	}

	s.logger.Info("admin account seeded", slog.String("userID", admin.ID), slog.String("email", email))
	return nil
}
