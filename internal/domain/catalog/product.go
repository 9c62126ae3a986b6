// Package catalog exposes the product catalog consumed by order assembly.
// The catalog is the authoritative pricing source: order lines are always
// re-priced from it, never from client-supplied cart data.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// NotFoundError identifies which product a failed lookup referenced.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Product is a catalog item available for purchase. Price is in whole rupees.
type Product struct {
	ID    string
	Name  string
	Brand string
	Price int64
	Image string
}

// Repository defines read operations on the product catalog.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Product, error)
	FindByIDs(ctx context.Context, ids []string) ([]Product, error)
	List(ctx context.Context) ([]Product, error)
}
