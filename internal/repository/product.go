package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayra/storefront/internal/domain/catalog"
)

const (
	getProductSQL = `SELECT id, name, brand, price, image FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, brand, price, image FROM products WHERE id = ANY($1)`

	listProductsSQL = `SELECT id, name, brand, price, image FROM products ORDER BY name`

	upsertProductSQL = `INSERT INTO products (id, name, brand, price, image)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, brand = EXCLUDED.brand,
			price = EXCLUDED.price, image = EXCLUDED.image`
)

var _ catalog.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalog.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// FindByID looks up a single product.
// Returns catalog.ErrNotFound when no product exists for the id.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("finding product %q: %w", id, err)
	}
	return &p, nil
}

// FindByIDs fetches all products for the given ids in one query. Missing
// ids are simply absent from the result; the caller decides whether that
// is an error.
func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("finding products by ids: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("finding products by ids: %w", err)
	}
	return products, nil
}

// List returns the full catalog ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

// Upsert inserts or updates a product. Used by the seed tool.
func (r *ProductRepository) Upsert(ctx context.Context, p *catalog.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Brand, p.Price, p.Image)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Price, &p.Image)
	return p, err
}
