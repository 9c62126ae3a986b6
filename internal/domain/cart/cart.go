// Package cart models the pre-order shopping cart. The cart is untrusted
// input for pricing purposes: only product references and quantities are
// read from it.
package cart

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrEmpty is returned when an operation requires a non-empty cart.
var ErrEmpty = errors.New("cart is empty")

// Item is one cart line: a product reference, a size, and a quantity.
type Item struct {
	ProductID string
	Size      string
	Quantity  int
}

// Cart is a user's current cart snapshot. AppliedCoupon holds the coupon
// code the user attached while shopping; it is re-validated at order
// assembly against the then-current subtotal.
type Cart struct {
	UserID        string
	Items         []Item
	AppliedCoupon string
}

// Repository provides read and clear operations on carts.
//
// Clear is also exposed as ClearTx-style behaviour inside the order
// repository's creation transaction; this standalone form serves the
// cart-management endpoints outside the order engine.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Clear(ctx context.Context, userID string) error
}
