package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faisal-mohamed/rfp/internal/rbac"
)

// ErrUnknownAccount indicates that no account matches the lookup.
var ErrUnknownAccount = errors.New("auth: unknown account")

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectUser = `SELECT id, first_name, last_name, email, password_hash, role, kind, active, last_login_at FROM accounts`

// FindByEmail fetches an account by its normalized email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.one(ctx, selectUser+` WHERE lower(email) = lower($1)`, email)
}

// FindByID fetches an account by id. Non-uuid ids resolve to nothing.
func (r *PGRepository) FindByID(ctx context.Context, id string) (*User, error) {
	var parsed pgtype.UUID
	if err := parsed.Scan(id); err != nil {
		return nil, ErrUnknownAccount
	}
	return r.one(ctx, selectUser+` WHERE id = $1`, parsed)
}

// TouchLastLogin records a successful login.
func (r *PGRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE accounts SET last_login_at = $2 WHERE id = $1`, id, at.UTC())
	return err
}

func (r *PGRepository) one(ctx context.Context, query string, args ...any) (*User, error) {
	var (
		user       User
		role, kind string
		lastLogin  pgtype.Timestamptz
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Email, &user.PasswordHash,
		&role, &kind, &user.Active, &lastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownAccount
		}
		return nil, err
	}
	user.Role = rbac.Role(role)
	user.Kind = rbac.Kind(kind)
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return &user, nil
}

var _ Repository = (*PGRepository)(nil)
