package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/blood-connect/internal/apperror"
	"github.com/sakif/blood-connect/internal/model"
	"github.com/sakif/blood-connect/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB handles persistence for the users table.
type UserDB struct {
	q querier
}

// userColumns lists the users columns in scan order, qualified with alias.
func userColumns(alias string) string {
	return fmt.Sprintf("%[1]s.id, %[1]s.email, %[1]s.name, %[1]s.phone, %[1]s.city, %[1]s.role, %[1]s.password_hash, %[1]s.created_at", alias)
}

func userDest(u *model.User) []any {
	return []any{&u.ID, &u.Email, &u.Name, &u.Phone, &u.City, &u.Role, &u.PasswordHash, &u.CreatedAt}
}

// Create inserts a new user. ID and CreatedAt are generated here.
//
// The service checks GetByEmail first, but the UNIQUE constraint on email is
// what actually protects against two concurrent registrations with the same
// address. Both paths end in the same apperror.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()

	_, err := u.q.ExecContext(ctx,
		`INSERT INTO users (id, email, name, phone, city, role, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Name,
		user.Phone,
		user.City,
		user.Role,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.AlreadyExists("a user with this email already exists")
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}
	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := u.q.QueryRowContext(ctx,
		`SELECT `+userColumns("u")+` FROM users u WHERE u.id = ?`, id,
	).Scan(userDest(&user)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return &user, nil
}

// GetByEmail looks a user up by exact email address.
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := u.q.QueryRowContext(ctx,
		`SELECT `+userColumns("u")+` FROM users u WHERE u.email = ?`, email,
	).Scan(userDest(&user)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return &user, nil
}

func (u *UserDB) CountByRole(ctx context.Context, role model.Role) (int, error) {
	var n int
	if err := u.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ?`, role,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting %s users: %w", role, err)
	}
	return n, nil
}
