package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/blood-connect/internal/model"
	"github.com/sakif/blood-connect/internal/session"
)

// CookieName is the HttpOnly cookie that carries the signed token.
const CookieName = "token"

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. Using a package-private type
// means only THIS package can read or write the principal in the context.
type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller of one request.
//
// It is built from the session, not from the token claims: if an admin's
// session is replaced, the new role is what counts.
type Principal struct {
	UserID    string
	SessionID string
	Role      model.Role
}

// Authenticator turns a request's token into a Principal.
type Authenticator struct {
	tokens   *TokenService
	sessions session.Store
	logger   *slog.Logger
}

func NewAuthenticator(tokens *TokenService, sessions session.Store, logger *slog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, sessions: sessions, logger: logger}
}

// errNoToken means the request carried no credentials at all.
var errNoToken = errors.New("auth: no token")

// Authenticate resolves the request's credentials.
//
// LOOKUP ORDER:
//  1. the "token" cookie (browsers)
//  2. "Authorization: Bearer <jwt>" (scripts, curl)
//
// The JWT must verify AND its session must still exist in the store.
func (a *Authenticator) Authenticate(r *http.Request) (*Principal, error) {
	raw := TokenFromRequest(r)
	if raw == "" {
		return nil, errNoToken
	}

	claims, err := a.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	sess, err := a.sessions.Get(r.Context(), claims.SessionID())
	if err != nil {
		return nil, err
	}
	if sess.UserID != claims.UserID() {
		return nil, errors.New("auth: token and session disagree on user")
	}

	return &Principal{UserID: sess.UserID, SessionID: sess.ID, Role: sess.Role}, nil
}

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// If the credentials are missing or invalid, it returns 401 Unauthorized and
// stops the request chain. Otherwise the Principal is stored in the context.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new http.Handler that wraps it.
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.Authenticate(r)
		if err != nil {
			if !errors.Is(err, errNoToken) && !errors.Is(err, session.ErrNotFound) {
				a.logger.Debug("rejected credentials",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			}
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// OptionalAuth attaches the Principal when the request carries valid
// credentials and lets anonymous requests through unchanged. Logout uses it so
// that a stale cookie can still be cleared.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, err := a.Authenticate(r); err == nil {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows the request through only when the Principal has role.
// It must run after RequireAuth.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}
			if p.Role != role {
				writeAuthError(w, http.StatusForbidden, "forbidden", "this action requires the "+string(role)+" role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the authenticated caller.
// Returns (nil, false) for anonymous requests.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// TokenFromRequest returns the raw JWT from the cookie or the Authorization
// header, or "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

// writeAuthError writes the same {"error","message"} body the handlers use.
// The handler package cannot be imported here (it imports auth), hence the copy.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + code + `","message":"` + message + `"}`))
}
