package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Engine validates coupons against order values, computes bounded
// discounts, and records per-user usage through the Repository.
type Engine struct {
	coupons Repository
	now     func() time.Time
}

// NewEngine creates an Engine backed by the given coupon repository.
func NewEngine(coupons Repository) *Engine {
	return &Engine{coupons: coupons, now: time.Now}
}

// WithNow overrides the engine's clock. Intended for tests.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// FindByCode looks up a coupon by its code.
func (e *Engine) FindByCode(ctx context.Context, code string) (*Coupon, error) {
	return e.coupons.FindByCode(ctx, code)
}

// ValidateForOrder checks whether the coupon can be applied to an order
// of the given value. Every failure mode yields a distinct reason so the
// buyer sees why the code was refused.
func (e *Engine) ValidateForOrder(c *Coupon, orderValue int64) Validation {
	now := e.now()

	switch {
	case !c.IsActive:
		return Validation{Reason: "coupon is not active"}
	case now.Before(c.ValidFrom):
		return Validation{Reason: "coupon is not valid yet"}
	case now.After(c.ValidTo):
		return Validation{Reason: "coupon has expired"}
	case c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit:
		return Validation{Reason: "coupon usage limit reached"}
	case orderValue < c.MinimumOrderValue:
		return Validation{Reason: fmt.Sprintf("minimum order value of ₹%d required", c.MinimumOrderValue)}
	}

	return Validation{OK: true}
}

// Discount computes the rupee discount the coupon grants on an order of
// the given value. Percentage discounts are computed with decimal math,
// rounded half-up to whole rupees, and capped at MaximumDiscount when
// set. The result never exceeds the order value, so a coupon cannot make
// an order negative.
func (e *Engine) Discount(c *Coupon, orderValue int64) int64 {
	var amount int64

	switch c.DiscountType {
	case DiscountPercentage:
		amount = decimal.NewFromInt(orderValue).
			Mul(c.DiscountValue).
			Div(hundred).
			Round(0).
			IntPart()
		if c.MaximumDiscount != nil && amount > *c.MaximumDiscount {
			amount = *c.MaximumDiscount
		}
	case DiscountFixed:
		amount = c.DiscountValue.Round(0).IntPart()
	}

	if amount > orderValue {
		amount = orderValue
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

// RecordUsage marks the coupon as consumed by the user. The repository
// performs the check-and-write atomically, so concurrent redemptions of
// a limited coupon cannot both succeed.
func (e *Engine) RecordUsage(ctx context.Context, c *Coupon, userID string, orderValue, discountApplied int64) error {
	return e.coupons.RecordUsage(ctx, c.Code, userID, orderValue, discountApplied)
}

// ReleaseUsage returns a redemption recorded by RecordUsage, for callers
// whose follow-up work failed after the coupon was already consumed.
func (e *Engine) ReleaseUsage(ctx context.Context, code, userID string) error {
	return e.coupons.ReleaseUsage(ctx, code, userID)
}
