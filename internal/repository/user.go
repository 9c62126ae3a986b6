package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayra/storefront/internal/domain/user"
)

const (
	getUserSQL = `SELECT id, first_name, last_name, email FROM users WHERE id = $1`

	upsertUserSQL = `INSERT INTO users (id, first_name, last_name, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
			email = EXCLUDED.email`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// ByID looks up a user account. Returns user.ErrNotFound when absent.
func (r *UserRepository) ByID(ctx context.Context, id string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, getUserSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding user %q: %w", id, err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (user.User, error) {
		var u user.User
		err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email)
		return u, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("finding user %q: %w", id, err)
	}
	return &u, nil
}

// Upsert inserts or updates a user. Used by the seed tool.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	_, err := r.pool.Exec(ctx, upsertUserSQL, u.ID, u.FirstName, u.LastName, u.Email)
	if err != nil {
		return fmt.Errorf("upserting user %q: %w", u.ID, err)
	}
	return nil
}
