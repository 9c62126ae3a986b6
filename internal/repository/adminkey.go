package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayra/storefront/internal/domain/auth"
)

const (
	getAdminKeyByHashSQL = `SELECT id, key_hash, name
		FROM admin_keys WHERE key_hash = $1 AND active = TRUE`

	upsertAdminKeySQL = `INSERT INTO admin_keys (id, key_hash, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash, name = EXCLUDED.name`
)

var _ auth.Repository = (*AdminKeyRepository)(nil)

// AdminKeyRepository provides admin key lookups backed by PostgreSQL.
type AdminKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAdminKeyRepository returns an AdminKeyRepository that uses the given pool.
func NewAdminKeyRepository(pool *pgxpool.Pool) *AdminKeyRepository {
	return &AdminKeyRepository{pool: pool}
}

// FindByHash looks up an active admin key by its HMAC-SHA256 hash.
func (r *AdminKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.AdminKeyInfo, error) {
	var info auth.AdminKeyInfo
	err := r.pool.QueryRow(ctx, getAdminKeyByHashSQL, hash).Scan(
		&info.ID, &info.KeyHash, &info.Name,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrKeyNotFound
		}
		return nil, fmt.Errorf("finding admin key by hash: %w", err)
	}
	return &info, nil
}

// Upsert stores an admin key record. Used by the seeding tool.
func (r *AdminKeyRepository) Upsert(ctx context.Context, info *auth.AdminKeyInfo) error {
	if _, err := r.pool.Exec(ctx, upsertAdminKeySQL, info.ID, info.KeyHash, info.Name); err != nil {
		return fmt.Errorf("upserting admin key %q: %w", info.ID, err)
	}
	return nil
}
