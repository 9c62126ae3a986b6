package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayra/storefront/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_type, discount_value, minimum_order_value,
		maximum_discount, usage_limit, used_count, valid_from, valid_to, active
		FROM coupons WHERE code = UPPER($1)`

	insertUsageSQL = `INSERT INTO coupon_usages (coupon_code, user_id, order_value, discount_applied)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (coupon_code, user_id) DO NOTHING`

	incrementUsageSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE code = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`

	deleteUsageSQL = `DELETE FROM coupon_usages WHERE coupon_code = $1 AND user_id = $2`

	decrementUsageSQL = `UPDATE coupons SET used_count = used_count - 1
		WHERE code = $1 AND used_count > 0`

	listUsagesSQL = `SELECT user_id, used_at, order_value, discount_applied
		FROM coupon_usages WHERE coupon_code = $1 ORDER BY used_at`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_type, discount_value, minimum_order_value,
		maximum_discount, usage_limit, valid_from, valid_to, active)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE
		SET discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			minimum_order_value = EXCLUDED.minimum_order_value,
			maximum_discount = EXCLUDED.maximum_discount,
			usage_limit = EXCLUDED.usage_limit,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			active = EXCLUDED.active`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &c, nil
}

// RecordUsage atomically records that a user consumed a coupon. The
// per-user uniqueness insert and the limit-guarded counter increment run
// in one transaction, so two concurrent redemptions of the last remaining
// use cannot both succeed.
func (r *CouponRepository) RecordUsage(ctx context.Context, code, userID string, orderValue, discountApplied int64) error {
	code = strings.ToUpper(code)

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertUsageSQL, code, userID, orderValue, discountApplied)
		if err != nil {
			return fmt.Errorf("inserting usage for coupon %q: %w", code, err)
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrAlreadyUsed
		}

		tag, err = tx.Exec(ctx, incrementUsageSQL, code)
		if err != nil {
			return fmt.Errorf("incrementing used_count for coupon %q: %w", code, err)
		}
		if tag.RowsAffected() == 0 {
			// Limit exhausted between validation and redemption. Rolling
			// back also removes the usage row inserted above.
			return coupon.ErrUsageLimitReached
		}
		return nil
	})
}

// ReleaseUsage removes a recorded redemption and gives the use back to
// the counter, in one transaction. Releasing a usage that was never
// recorded changes nothing.
func (r *CouponRepository) ReleaseUsage(ctx context.Context, code, userID string) error {
	code = strings.ToUpper(code)

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deleteUsageSQL, code, userID)
		if err != nil {
			return fmt.Errorf("releasing usage for coupon %q: %w", code, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		if _, err := tx.Exec(ctx, decrementUsageSQL, code); err != nil {
			return fmt.Errorf("decrementing used_count for coupon %q: %w", code, err)
		}
		return nil
	})
}

// ListUsages returns the recorded redemptions for a coupon in usage order.
func (r *CouponRepository) ListUsages(ctx context.Context, code string) ([]coupon.Usage, error) {
	rows, err := r.pool.Query(ctx, listUsagesSQL, strings.ToUpper(code))
	if err != nil {
		return nil, fmt.Errorf("listing usages for coupon %q: %w", code, err)
	}

	usages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (coupon.Usage, error) {
		var u coupon.Usage
		err := row.Scan(&u.UserID, &u.UsedAt, &u.OrderValue, &u.DiscountApplied)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing usages for coupon %q: %w", code, err)
	}
	return usages, nil
}

// Upsert inserts or updates a coupon rule. Used by the seed and ingest
// tools; used_count is never reset by an upsert.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		c.Code, string(c.DiscountType), c.DiscountValue, c.MinimumOrderValue,
		c.MaximumDiscount, c.UsageLimit, c.ValidFrom, c.ValidTo, c.IsActive,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.Code, &discountType, &c.DiscountValue, &c.MinimumOrderValue,
		&c.MaximumDiscount, &c.UsageLimit, &c.UsedCount,
		&c.ValidFrom, &c.ValidTo, &c.IsActive,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	return c, err
}
