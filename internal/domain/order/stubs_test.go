package order

import (
	"context"

	"github.com/zayra/storefront/internal/domain/cart"
	"github.com/zayra/storefront/internal/domain/catalog"
	"github.com/zayra/storefront/internal/domain/coupon"
	"github.com/zayra/storefront/internal/domain/user"
)

// Shared stub repositories and helpers for the order package tests.

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

type stubCatalog struct {
	products map[string]catalog.Product
	err      error
}

func (s *stubCatalog) FindByID(_ context.Context, id string) (*catalog.Product, error) {
	if p, ok := s.products[id]; ok {
		return &p, nil
	}
	return nil, catalog.ErrNotFound
}

func (s *stubCatalog) FindByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubCatalog) List(_ context.Context) ([]catalog.Product, error) {
	return nil, nil
}

type stubCarts struct {
	cart    *cart.Cart
	err     error
	cleared bool
}

func (s *stubCarts) Get(_ context.Context, _ string) (*cart.Cart, error) {
	return s.cart, s.err
}

func (s *stubCarts) Clear(_ context.Context, _ string) error {
	s.cleared = true
	return nil
}

type stubUsers struct {
	user *user.User
}

func (s *stubUsers) ByID(_ context.Context, _ string) (*user.User, error) {
	if s.user == nil {
		return nil, user.ErrNotFound
	}
	return s.user, nil
}

type stubCouponRepo struct {
	coupon     *coupon.Coupon
	findErr    error
	recordErr  error
	releaseErr error

	recordedUser  string
	recordedValue int64
	recordedDisc  int64
	recordCalls   int

	releasedCode string
	releasedUser string
	releaseCalls int
}

func (s *stubCouponRepo) FindByCode(_ context.Context, _ string) (*coupon.Coupon, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.coupon, nil
}

func (s *stubCouponRepo) RecordUsage(_ context.Context, _, userID string, orderValue, discountApplied int64) error {
	s.recordCalls++
	if s.recordErr != nil {
		return s.recordErr
	}
	s.recordedUser = userID
	s.recordedValue = orderValue
	s.recordedDisc = discountApplied
	return nil
}

func (s *stubCouponRepo) ReleaseUsage(_ context.Context, code, userID string) error {
	s.releaseCalls++
	if s.releaseErr != nil {
		return s.releaseErr
	}
	s.releasedCode = code
	s.releasedUser = userID
	return nil
}

func (s *stubCouponRepo) ListUsages(_ context.Context, _ string) ([]coupon.Usage, error) {
	return nil, nil
}

type stubOrders struct {
	created   *Order
	clearCart bool
	createErr error

	applied  []*Change
	applyErr error
}

func (s *stubOrders) Create(_ context.Context, o *Order, clearCart bool) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = o
	s.clearCart = clearCart
	return nil
}

func (s *stubOrders) ByID(_ context.Context, _ string) (*Order, error) {
	if s.created == nil {
		return nil, ErrNotFound
	}
	return s.created, nil
}

func (s *stubOrders) ByUser(_ context.Context, _ string) ([]Order, error) {
	return nil, nil
}

func (s *stubOrders) Apply(_ context.Context, ch *Change) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applied = append(s.applied, ch)
	return nil
}

// lastChange returns the most recent applied change, or nil.
func (s *stubOrders) lastChange() *Change {
	if len(s.applied) == 0 {
		return nil
	}
	return s.applied[len(s.applied)-1]
}
