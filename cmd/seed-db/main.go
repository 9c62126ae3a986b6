// Command seed-db populates a storefront database with demo catalog
// products, user accounts, coupon rules, a demo cart, and an admin key.
// Safe to run repeatedly; every write is an upsert.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zayra/storefront/internal/domain/auth"
	"github.com/zayra/storefront/internal/domain/catalog"
	"github.com/zayra/storefront/internal/domain/coupon"
	"github.com/zayra/storefront/internal/domain/user"
	"github.com/zayra/storefront/internal/handler"
	"github.com/zayra/storefront/internal/repository"
)

func main() {
	var (
		databaseURL string
		adminKey    string
		pepper      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&adminKey, "admin-key", "", "admin key to seed (or ZAYRA_SEED_ADMIN_KEY env)")
	flag.StringVar(&pepper, "admin-key-pepper", "", "HMAC pepper for admin key hashing (or ZAYRA_ADMIN_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminKey == "" {
		adminKey = os.Getenv("ZAYRA_SEED_ADMIN_KEY")
	}
	if adminKey == "" {
		slog.Error("admin key is required: set --admin-key or ZAYRA_SEED_ADMIN_KEY")
		os.Exit(1)
	}
	if pepper == "" {
		pepper = os.Getenv("ZAYRA_ADMIN_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, adminKey, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, adminKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedUsers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedDemoCart(ctx, pool); err != nil {
		return errors.Wrap(err, "seed demo cart")
	}
	if err := seedAdminKey(ctx, pool, adminKey, pepper); err != nil {
		return errors.Wrap(err, "seed admin key")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) error {
	products := []catalog.Product{
		{ID: "zy-kurta-01", Name: "Chanderi Silk Kurta", Brand: "Zayra", Price: 2499, Image: "/images/kurta-01.jpg"},
		{ID: "zy-saree-01", Name: "Banarasi Saree", Brand: "Zayra Heritage", Price: 5999, Image: "/images/saree-01.jpg"},
		{ID: "zy-dupatta-01", Name: "Phulkari Dupatta", Brand: "Zayra", Price: 899, Image: "/images/dupatta-01.jpg"},
		{ID: "zy-lehenga-01", Name: "Embroidered Lehenga", Brand: "Zayra Heritage", Price: 8999, Image: "/images/lehenga-01.jpg"},
		{ID: "zy-juttis-01", Name: "Handcrafted Juttis", Brand: "Zayra", Price: 1299, Image: "/images/juttis-01.jpg"},
	}

	repo := repository.NewProductRepository(pool)
	slog.Info("upserting products", slog.Int("count", len(products)))
	for i := range products {
		if err := repo.Upsert(ctx, &products[i]); err != nil {
			return errors.Wrapf(err, "upsert product %s", products[i].ID)
		}
	}
	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	users := []user.User{
		{ID: "demo-user", FirstName: "Asha", LastName: "Rao", Email: "asha@example.com"},
		{ID: "demo-user-2", FirstName: "Vikram", LastName: "Iyer", Email: "vikram@example.com"},
	}

	repo := repository.NewUserRepository(pool)
	slog.Info("upserting users", slog.Int("count", len(users)))
	for i := range users {
		if err := repo.Upsert(ctx, &users[i]); err != nil {
			return errors.Wrapf(err, "upsert user %s", users[i].ID)
		}
	}
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	now := time.Now()
	year := now.AddDate(1, 0, 0)
	coupons := []coupon.Coupon{
		{
			Code:              "WELCOME10",
			DiscountType:      coupon.DiscountPercentage,
			DiscountValue:     decimal.NewFromInt(10),
			MinimumOrderValue: 500,
			MaximumDiscount:   int64Ptr(500),
			ValidFrom:         now,
			ValidTo:           year,
			IsActive:          true,
		},
		{
			Code:              "FESTIVE500",
			DiscountType:      coupon.DiscountFixed,
			DiscountValue:     decimal.NewFromInt(500),
			MinimumOrderValue: 2500,
			UsageLimit:        intPtr(1000),
			ValidFrom:         now,
			ValidTo:           year,
			IsActive:          true,
		},
		{
			Code:              "ZAYRA15",
			DiscountType:      coupon.DiscountPercentage,
			DiscountValue:     decimal.NewFromFloat(15),
			MinimumOrderValue: 1500,
			MaximumDiscount:   int64Ptr(1500),
			ValidFrom:         now,
			ValidTo:           year,
			IsActive:          true,
		},
	}

	repo := repository.NewCouponRepository(pool)
	slog.Info("upserting coupons", slog.Int("count", len(coupons)))
	for i := range coupons {
		if err := repo.Upsert(ctx, &coupons[i]); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", coupons[i].Code)
		}
	}
	return nil
}

// seedDemoCart gives demo-user a ready-to-order cart with a coupon
// attached, so a fresh environment can place an order immediately.
func seedDemoCart(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo cart", slog.String("user", "demo-user"))

	_, err := pool.Exec(ctx, `INSERT INTO carts (user_id, coupon_code) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET coupon_code = EXCLUDED.coupon_code`,
		"demo-user", "WELCOME10")
	if err != nil {
		return errors.Wrap(err, "upsert cart")
	}

	items := []struct {
		productID string
		size      string
		quantity  int
	}{
		{productID: "zy-kurta-01", size: "M", quantity: 1},
		{productID: "zy-dupatta-01", size: "", quantity: 2},
	}
	for _, it := range items {
		_, err := pool.Exec(ctx, `INSERT INTO cart_items (user_id, product_id, size, quantity)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, product_id, size) DO UPDATE SET quantity = EXCLUDED.quantity`,
			"demo-user", it.productID, it.size, it.quantity)
		if err != nil {
			return errors.Wrapf(err, "upsert cart item %s", it.productID)
		}
	}
	return nil
}

func seedAdminKey(ctx context.Context, pool *pgxpool.Pool, key, pepper string) error {
	slog.Info("seeding admin key")

	repo := repository.NewAdminKeyRepository(pool)
	return repo.Upsert(ctx, &auth.AdminKeyInfo{
		ID:      "seed-admin",
		KeyHash: handler.HashKey([]byte(pepper), key),
		Name:    "seeded ops key",
	})
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
