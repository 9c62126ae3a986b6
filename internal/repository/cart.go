package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayra/storefront/internal/domain/cart"
)

const (
	getCartCouponSQL = `SELECT coupon_code FROM carts WHERE user_id = $1`

	getCartItemsSQL = `SELECT product_id, size, quantity FROM cart_items
		WHERE user_id = $1 ORDER BY product_id, size`

	deleteCartItemsSQL = `DELETE FROM cart_items WHERE user_id = $1`

	resetCartCouponSQL = `UPDATE carts SET coupon_code = '' WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get reads the user's cart snapshot. A user with no cart rows gets an
// empty cart, not an error.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	c := &cart.Cart{UserID: userID}

	err := r.pool.QueryRow(ctx, getCartCouponSQL, userID).Scan(&c.AppliedCoupon)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reading cart for user %q: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx, getCartItemsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("reading cart items for user %q: %w", userID, err)
	}

	c.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var it cart.Item
		err := row.Scan(&it.ProductID, &it.Size, &it.Quantity)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("reading cart items for user %q: %w", userID, err)
	}

	return c, nil
}

// Clear empties the user's cart: items removed, applied coupon detached.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return clearCartTx(ctx, tx, userID)
	})
}

// clearCartTx empties a cart inside an existing transaction. Shared with
// the order repository so order persistence and cart clearing commit as
// one unit.
func clearCartTx(ctx context.Context, tx pgx.Tx, userID string) error {
	if _, err := tx.Exec(ctx, deleteCartItemsSQL, userID); err != nil {
		return fmt.Errorf("clearing cart items for user %q: %w", userID, err)
	}
	if _, err := tx.Exec(ctx, resetCartCouponSQL, userID); err != nil {
		return fmt.Errorf("resetting cart coupon for user %q: %w", userID, err)
	}
	return nil
}
