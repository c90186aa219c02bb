package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faisal-mohamed/rfp/internal/platform/db"
	"github.com/faisal-mohamed/rfp/internal/rbac"
)

// emailUniqueIndex is the unique index over lower(email) in db/schema.sql.
const emailUniqueIndex = "accounts_email_lower_key"

// Repository is the account store.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id string) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	Create(ctx context.Context, rec NewRecord) error
	Update(ctx context.Context, id string, changes Changes) (Account, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter Filter, limit, offset int) ([]Account, int, error)
	Totals(ctx context.Context, since time.Time) (Totals, error)
	CountByRole(ctx context.Context) (map[rbac.Role]int, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var accountColumns = []string{
	"a.id", "a.first_name", "a.last_name", "a.email", "a.role", "a.kind", "a.active",
	"a.created_at", "a.created_by", "a.last_login_at",
	"c.id", "c.first_name", "c.last_name", "c.email",
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
	return storeError(err)
}

func (r *repository) Get(ctx context.Context, id string) (Account, error) {
	if !validID(id) {
		return Account{}, ErrNotFound
	}
	query, args, err := selectAccounts().Where(sq.Eq{"a.id": id}).ToSql()
	if err != nil {
		return Account{}, err
	}
	return r.one(ctx, query, args...)
}

func (r *repository) FindByEmail(ctx context.Context, email string) (Account, error) {
	query, args, err := selectAccounts().Where(sq.Expr("lower(a.email) = lower(?)", email)).ToSql()
	if err != nil {
		return Account{}, err
	}
	return r.one(ctx, query, args...)
}

func (r *repository) Create(ctx context.Context, rec NewRecord) error {
	query, args, err := buildInsertQuery(rec)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return storeError(err)
	}
	return nil
}

func (r *repository) Update(ctx context.Context, id string, changes Changes) (Account, error) {
	query, args, err := buildUpdateQuery(id, changes)
	if err != nil {
		return Account{}, err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return Account{}, storeError(err)
	}
	if tag.RowsAffected() == 0 {
		return Account{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *repository) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete("accounts").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return storeError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, filter Filter, limit, offset int) ([]Account, int, error) {
	countQuery, countArgs, err := buildCountQuery(filter)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, storeError(err)
	}
	if total == 0 || offset >= total {
		return []Account{}, total, nil
	}

	query, args, err := buildListQuery(filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storeError(err)
	}
	defer rows.Close()

	accounts := make([]Account, 0, limit)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, 0, storeError(err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeError(err)
	}
	return accounts, total, nil
}

func (r *repository) Totals(ctx context.Context, since time.Time) (Totals, error) {
	query, args, err := psql.Select(
		"COUNT(*)",
		"COUNT(*) FILTER (WHERE active)",
	).Column(sq.Expr("COUNT(*) FILTER (WHERE created_at >= ?)", since)).From("accounts").ToSql()
	if err != nil {
		return Totals{}, err
	}
	var t Totals
	if err := r.db.QueryRow(ctx, query, args...).Scan(&t.Total, &t.Active, &t.RecentlyCreated); err != nil {
		return Totals{}, storeError(err)
	}
	return t, nil
}

func (r *repository) CountByRole(ctx context.Context) (map[rbac.Role]int, error) {
	query, args, err := psql.Select("role", "COUNT(*)").From("accounts").GroupBy("role").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError(err)
	}
	defer rows.Close()

	counts := make(map[rbac.Role]int)
	for rows.Next() {
		var (
			role  string
			count int
		)
		if err := rows.Scan(&role, &count); err != nil {
			return nil, storeError(err)
		}
		counts[rbac.Role(role)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err)
	}
	return counts, nil
}

func (r *repository) one(ctx context.Context, query string, args ...any) (Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return Account{}, storeError(err)
	}
	return acc, nil
}

func selectAccounts() sq.SelectBuilder {
	return psql.Select(accountColumns...).
		From("accounts a").
		LeftJoin("accounts c ON c.id = a.created_by")
}

func applyFilter(b sq.SelectBuilder, filter Filter) sq.SelectBuilder {
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		b = b.Where(sq.Or{
			sq.ILike{"a.first_name": pattern},
			sq.ILike{"a.last_name": pattern},
			sq.ILike{"a.email": pattern},
		})
	}
	if filter.Role != nil {
		b = b.Where(sq.Eq{"a.role": string(*filter.Role)})
	}
	if filter.Active != nil {
		b = b.Where(sq.Eq{"a.active": *filter.Active})
	}
	return b
}

func buildCountQuery(filter Filter) (string, []any, error) {
	return applyFilter(psql.Select("COUNT(*)").From("accounts a"), filter).ToSql()
}

func buildListQuery(filter Filter, limit, offset int) (string, []any, error) {
	return applyFilter(selectAccounts(), filter).
		OrderBy("a.created_at DESC", "a.id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
}

func buildInsertQuery(rec NewRecord) (string, []any, error) {
	return psql.Insert("accounts").
		Columns("id", "first_name", "last_name", "email", "role", "kind", "active", "password_hash", "created_at", "created_by").
		Values(rec.ID, rec.FirstName, rec.LastName, rec.Email, string(rec.Role), string(rec.Kind), rec.Active, rec.PasswordHash, rec.CreatedAt, rec.CreatedBy).
		ToSql()
}

func buildUpdateQuery(id string, changes Changes) (string, []any, error) {
	b := psql.Update("accounts").Where(sq.Eq{"id": id})
	if changes.FirstName != nil {
		b = b.Set("first_name", *changes.FirstName)
	}
	if changes.LastName != nil {
		b = b.Set("last_name", *changes.LastName)
	}
	if changes.Email != nil {
		b = b.Set("email", *changes.Email)
	}
	if changes.Role != nil {
		b = b.Set("role", string(*changes.Role))
	}
	if changes.Active != nil {
		b = b.Set("active", *changes.Active)
	}
	if changes.PasswordHash != nil {
		b = b.Set("password_hash", *changes.PasswordHash)
	}
	return b.Set("updated_at", sq.Expr("NOW()")).ToSql()
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc                                   Account
		role, kind                            string
		lastLogin                             pgtype.Timestamptz
		creatorID                             *string
		creatorFirst, creatorLast, creatorMail pgtype.Text
	)
	err := row.Scan(
		&acc.ID, &acc.FirstName, &acc.LastName, &acc.Email, &role, &kind, &acc.Active,
		&acc.CreatedAt, &acc.CreatedBy, &lastLogin,
		&creatorID, &creatorFirst, &creatorLast, &creatorMail,
	)
	if err != nil {
		return Account{}, err
	}
	acc.Role = rbac.Role(role)
	acc.Kind = rbac.Kind(kind)
	if lastLogin.Valid {
		t := lastLogin.Time
		acc.LastLoginAt = &t
	}
	if creatorID != nil {
		acc.Creator = &CreatorRef{
			ID:        *creatorID,
			FirstName: creatorFirst.String,
			LastName:  creatorLast.String,
			Email:     creatorMail.String,
		}
	}
	return acc, nil
}

// validID reports whether id can name an account row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// storeError translates driver failures into lifecycle failure kinds.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicateEmail),
		errors.Is(err, ErrInvalidInput), errors.Is(err, ErrSelfDeletionForbidden),
		errors.Is(err, ErrUnauthorized), errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case db.IsUniqueViolation(err, emailUniqueIndex):
		return ErrDuplicateEmail
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}
