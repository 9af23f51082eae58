// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. The blood donation
// service is a small CRUD workload with one writer at a time, which is exactly what
// SQLite is good at, and ":memory:" gives every test its own throwaway database.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler and cross-compilation
// becomes painful. modernc.org/sqlite is a pure Go translation of SQLite.
//
// LAYOUT OF THIS PACKAGE:
//   - sqlite.go   → connection, migrations, transactions (this file)
//   - user.go     → repository.UserRepository
//   - donor.go    → repository.DonorRepository
//   - patient.go  → repository.PatientRepository
//   - match.go    → repository.MatchRepository
//   - partner.go  → repository.PartnerRepository
//   - errors.go   → translating SQLite constraint errors into apperror values
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/blood-connect/internal/repository"
)

// querier is the subset of *sql.DB and *sql.Tx the repositories need.
//
// Both types have these three methods with identical signatures, so every
// repository can run either directly on the pool or inside a transaction
// without knowing which one it got.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and hands out repositories bound to it.
//
// When a DB is created by InTx, q is the *sql.Tx and every repository it returns
// runs inside that transaction.
type DB struct {
	conn *sql.DB
	q    querier
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/blood.db" → file-based database (persistent)
//   - ":memory:"      → in-memory database (great for tests, lost on close)
//
// ONE CONNECTION:
// PRAGMA settings such as foreign_keys are per connection, and every connection
// to ":memory:" opens a brand new empty database. Capping the pool at a single
// connection keeps both the pragmas and the in-memory schema in one place.
// SQLite only allows one writer at a time anyway.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. Matches rely on them to reject
	// unknown donor and patient IDs.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := Wrap(conn)

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Wrap builds a DB around an already opened pool without running migrations.
// Tests use it with go-sqlmock to script database failures.
func Wrap(conn *sql.DB) *DB {
	return &DB{conn: conn, q: conn}
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Users() repository.UserRepository       { return &UserDB{q: db.q} }
func (db *DB) Donors() repository.DonorRepository     { return &DonorDB{q: db.q} }
func (db *DB) Patients() repository.PatientRepository { return &PatientDB{q: db.q} }
func (db *DB) Matches() repository.MatchRepository    { return &MatchDB{q: db.q} }
func (db *DB) Partners() repository.PartnerRepository { return &PartnerDB{q: db.q} }

// InTx runs fn inside a single transaction.
//
// TRANSACTION LIFECYCLE:
//  1. BeginTx grabs a connection and starts the transaction
//  2. fn receives a *DB whose repositories all use that transaction
//  3. fn returns nil → Commit; fn returns an error → Rollback
//
// If db is already transactional, fn simply joins the running transaction.
// This lets a service call InTx from code that may itself run inside InTx.
func (db *DB) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if _, nested := db.q.(*sql.Tx); nested {
		return fn(db)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	if err := fn(&DB{conn: db.conn, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// migrate runs all database migrations.
//
// CREATE TABLE IF NOT EXISTS is idempotent, so this runs on every start.
// Timestamps are written by the repositories in UTC, which keeps the textual
// ORDER BY created_at consistent with real time.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			name          TEXT NOT NULL,
			phone         TEXT NOT NULL DEFAULT '',
			city          TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL CHECK (role IN ('donor', 'patient', 'admin')),
			password_hash TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_city ON users(city);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// donors.id and patients.id ARE the user id (1:1 extension tables).
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS donors (
			id            TEXT PRIMARY KEY REFERENCES users(id),
			blood_type    TEXT NOT NULL,
			is_available  BOOLEAN NOT NULL DEFAULT 1,
			last_donation DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_donors_blood_type ON donors(blood_type, is_available);

		CREATE TABLE IF NOT EXISTS patients (
			id                TEXT PRIMARY KEY REFERENCES users(id),
			blood_type        TEXT NOT NULL,
			urgency           TEXT NOT NULL,
			request_status    TEXT NOT NULL DEFAULT 'pending',
			requested_date    DATETIME NOT NULL,
			requestor_role    TEXT NOT NULL DEFAULT 'patient',
			organization_name TEXT
		);
	`)
	if err != nil {
		return fmt.Errorf("creating donor and patient tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS donation_matches (
			id            TEXT PRIMARY KEY,
			donor_id      TEXT NOT NULL REFERENCES donors(id),
			patient_id    TEXT NOT NULL REFERENCES patients(id),
			match_date    DATETIME NOT NULL,
			donation_date DATETIME,
			status        TEXT NOT NULL DEFAULT 'pending',
			created_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_matches_created_at ON donation_matches(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating donation_matches table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS ngo_registrations (
			id                     TEXT PRIMARY KEY,
			name                   TEXT NOT NULL,
			registration_type      TEXT NOT NULL,
			registration_number    TEXT NOT NULL,
			contact_person_name    TEXT NOT NULL,
			contact_person_email   TEXT NOT NULL,
			contact_person_phone   TEXT NOT NULL,
			address                TEXT NOT NULL,
			city                   TEXT NOT NULL,
			state                  TEXT NOT NULL,
			pincode                TEXT NOT NULL,
			certificate_12a        TEXT,
			certificate_80g        TEXT,
			pan_number             TEXT NOT NULL,
			activities_description TEXT NOT NULL,
			collaboration_plan     TEXT NOT NULL,
			status                 TEXT NOT NULL DEFAULT 'pending',
			created_at             DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS hospital_registrations (
			id                             TEXT PRIMARY KEY,
			name                           TEXT NOT NULL,
			registration_number            TEXT,
			contact_person_name            TEXT NOT NULL,
			contact_person_email           TEXT NOT NULL,
			contact_person_phone           TEXT NOT NULL,
			address                        TEXT NOT NULL,
			city                           TEXT NOT NULL,
			state                          TEXT NOT NULL,
			pincode                        TEXT NOT NULL,
			blood_bank_registration_number TEXT,
			collaboration_details          TEXT NOT NULL,
			specific_requirements          TEXT,
			status                         TEXT NOT NULL DEFAULT 'pending',
			created_at                     DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating partner registration tables: %w", err)
	}

	return nil
}
