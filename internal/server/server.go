// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and routes,
// and decides which backing services (Redis, NATS) are used based on config.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go loads config.Config and builds the logger
//	Server.New() creates:
//	  sqlite.DB ─┬─ RegistrationService ── RegistrationHandler
//	             ├─ MatchingService ────── MatchingHandler, AdminHandler
//	             ├─ AdminService ───────── AdminHandler
//	             └─ AuthService ────────── AuthHandler
//	  session.Store (memory or Redis) ─── AuthService, Authenticator
//	  events.Publisher (NATS or Noop) ─── the three domain services
//
// This is the "composition root" pattern: all dependencies are wired in one
// place instead of being scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/blood-connect/internal/auth"
	"github.com/sakif/blood-connect/internal/config"
	"github.com/sakif/blood-connect/internal/events"
	"github.com/sakif/blood-connect/internal/handler"
	"github.com/sakif/blood-connect/internal/metrics"
	"github.com/sakif/blood-connect/internal/middleware"
	"github.com/sakif/blood-connect/internal/model"
	sqliteRepo "github.com/sakif/blood-connect/internal/repository/sqlite"
	"github.com/sakif/blood-connect/internal/service"
	"github.com/sakif/blood-connect/internal/session"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and, when configured, the Redis
// client and the NATS connection. closers releases them in reverse order of
// creation during shutdown. checks are what /healthz pings: the database,
// plus Redis when it holds the sessions.
type Server struct {
	router  *chi.Mux
	cfg     *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	closers []func()
	checks  []handler.HealthCheck
}

// New creates a Server from cfg, connects its backing services, seeds the
// admin account and builds the router.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	return newServer(ctx, cfg, logger, auth.NewPasswordService())
}

// newServer lets tests pass a cheap PasswordService.
func newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, passwords *auth.PasswordService) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
		checks: []handler.HealthCheck{{Name: "database", Pinger: db}},
	}

	if err := s.setup(ctx, passwords); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *Server) setup(ctx context.Context, passwords *auth.PasswordService) error {
	sessions, err := s.sessionStore(ctx)
	if err != nil {
		return err
	}
	publisher := s.publisher()

	tokens, err := auth.NewTokenService(s.cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// === SERVICES ===
	registrations := service.NewRegistrationService(s.db, passwords, publisher, s.logger)
	matching := service.NewMatchingService(s.db, publisher, s.logger)
	admin := service.NewAdminService(s.db, publisher, s.logger)
	authSvc := service.NewAuthService(s.db.Users(), passwords, tokens, sessions, s.cfg.Auth.SessionTTL, s.logger)

	if err := authSvc.SeedAdmin(ctx, s.cfg.Auth.AdminEmail, s.cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}

	var github *auth.GitHubProvider
	if s.cfg.GitHub.Enabled() {
		github = auth.NewGitHubProvider(s.cfg.GitHub.ClientID, s.cfg.GitHub.ClientSecret, s.cfg.GitHub.CallbackURL)
	}

	s.routes(routeDeps{
		authn:         auth.NewAuthenticator(tokens, sessions, s.logger),
		health:        handler.NewHealthHandler(s.logger, s.checks...),
		registrations: handler.NewRegistrationHandler(registrations, s.logger),
		matching:      handler.NewMatchingHandler(matching, s.logger),
		admin:         handler.NewAdminHandler(admin, matching, s.logger),
		auth:          handler.NewAuthHandler(authSvc, github, s.cfg.Auth.CookieSecure, s.logger),
		spa:           handler.NewSPAHandler(s.cfg.Server.StaticDir, s.logger),
		githubEnabled: github != nil,
	})
	return nil
}

// sessionStore picks Redis when a URL is configured. A configured but
// unreachable Redis is a startup error: silently falling back to memory would
// log everyone out on the next restart without anyone noticing why.
func (s *Server) sessionStore(ctx context.Context) (session.Store, error) {
	if s.cfg.Redis.URL == "" {
		s.logger.Info("using in-memory session store")
		return session.NewMemoryStore(), nil
	}

	store, err := session.NewRedisStore(ctx, s.cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting session store: %w", err)
	}
	s.closers = append(s.closers, func() { store.Close() })
	s.checks = append(s.checks, handler.HealthCheck{Name: "sessions", Pinger: store})
	s.logger.Info("using redis session store")
	return store, nil
}

// publisher connects to NATS when a URL is configured. Events are best
// effort, so an unreachable broker only disables them.
func (s *Server) publisher() events.Publisher {
	if s.cfg.NATS.URL == "" {
		return events.Noop{}
	}

	p, err := events.Connect(s.cfg.NATS.URL, s.logger)
	if err != nil {
		s.logger.Warn("event publishing disabled", slog.String("error", err.Error()))
		return events.Noop{}
	}
	s.closers = append(s.closers, p.Close)
	return p
}

type routeDeps struct {
	authn         *auth.Authenticator
	health        *handler.HealthHandler
	registrations *handler.RegistrationHandler
	matching      *handler.MatchingHandler
	admin         *handler.AdminHandler
	auth          *handler.AuthHandler
	spa           *handler.SPAHandler
	githubEnabled bool
}

// routes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                                 → liveness + db (and redis) ping
//	GET    /metrics                                 → Prometheus
//	POST   /api/donors                              → register donor
//	GET    /api/donors/eligible?bloodType=&city=    → donor search
//	POST   /api/patients                            → register patient
//	POST   /api/partners/ngo | /api/partners/hospital
//	POST   /api/matches                             → confirm a match
//	POST   /api/auth/login | /api/auth/logout
//	GET    /api/me                                  → [auth]
//	GET    /auth/github/login | /auth/github/callback   (when configured)
//	       /api/admin/...                           → [auth + admin role]
//	GET    SPA routes                               → index.html
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. metrics: counts the request under its route pattern
func (s *Server) routes(d routeDeps) {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", d.health.HandleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/donors", d.registrations.HandleRegisterDonor)
		r.Get("/donors/eligible", d.matching.HandleEligibleDonors)
		r.Post("/patients", d.registrations.HandleRegisterPatient)
		r.Post("/partners/ngo", d.registrations.HandleRegisterNgo)
		r.Post("/partners/hospital", d.registrations.HandleRegisterHospital)
		r.Post("/matches", d.matching.HandleCreateMatch)

		r.Post("/auth/login", d.auth.HandleLogin)
		r.With(d.authn.OptionalAuth).Post("/auth/logout", d.auth.HandleLogout)
		r.With(d.authn.RequireAuth).Get("/me", d.auth.HandleMe)

		r.Route("/admin", func(r chi.Router) {
			r.Use(d.authn.RequireAuth)
			r.Use(auth.RequireRole(model.RoleAdmin))

			r.Get("/dashboard", d.admin.HandleDashboard)
			r.Get("/matches", d.admin.HandleListMatches)
			r.Get("/registrations/{kind}", d.admin.HandleListRegistrations)
			r.Get("/registrations/{kind}/export", d.admin.HandleExportRegistrations)
			r.Patch("/registrations/{kind}/{id}", d.admin.HandleUpdateRegistrationStatus)
			r.Post("/patients/{id}/matched", d.admin.HandleMarkPatientMatched)
		})
	})

	if d.githubEnabled {
		r.Get("/auth/github/login", d.auth.HandleGitHubLogin)
		r.Get("/auth/github/callback", d.auth.HandleGitHubCallback)
	}

	// === Frontend ===
	// Client routes get index.html; anything else falls through to NotFound,
	// which serves built assets that exist and 404s the rest.
	for _, p := range handler.SPARoutes {
		r.Get(p, d.spa.ServeHTTP)
	}
	r.NotFound(d.spa.ServeHTTP)
}

// Handler returns the fully wired router. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close NATS (drains pending events), Redis and the database
func (s *Server) Start() error {
	defer s.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Server.Port)),
			slog.String("database", s.cfg.Database.Path),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// close releases backing services, newest first, then the database.
func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("closing database", slog.String("error", err.Error()))
	}
}
