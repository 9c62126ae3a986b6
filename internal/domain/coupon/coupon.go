package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the order value.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed rupee discount capped at the order value.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when no coupon exists for a given code.
	ErrNotFound = errors.New("coupon not found")
	// ErrAlreadyUsed is returned when a user attempts to consume a coupon
	// they have already used.
	ErrAlreadyUsed = errors.New("coupon already used by this user")
	// ErrUsageLimitReached is returned when recording a usage would exceed
	// the coupon's usage limit.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

// Coupon defines a discount rule and its eligibility constraints.
// Codes are stored uppercase and unique.
type Coupon struct {
	Code              string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MinimumOrderValue int64
	// MaximumDiscount caps percentage discounts in whole rupees.
	// Nil means uncapped.
	MaximumDiscount *int64
	// UsageLimit is the total number of allowed redemptions.
	// Nil means unlimited.
	UsageLimit *int
	UsedCount  int
	ValidFrom  time.Time
	ValidTo    time.Time
	IsActive   bool
}

// Usage records that a user has consumed a coupon.
type Usage struct {
	UserID          string
	UsedAt          time.Time
	OrderValue      int64
	DiscountApplied int64
}

// Validation is the outcome of checking a coupon against an order value.
// Failures are values, not errors: callers branch on OK and present
// Reason directly to the buyer.
type Validation struct {
	OK     bool
	Reason string
}

// Repository provides lookup and usage recording for coupons.
//
// RecordUsage must be atomic: the per-user uniqueness check, the usage
// insert, and the conditional used_count increment happen as one unit.
// It returns ErrAlreadyUsed when the user already consumed the coupon and
// ErrUsageLimitReached when the limit would be exceeded.
//
// ReleaseUsage undoes a recorded redemption when the work it paid for
// never happened. Releasing a usage that was never recorded is a no-op.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	RecordUsage(ctx context.Context, code, userID string, orderValue, discountApplied int64) error
	ReleaseUsage(ctx context.Context, code, userID string) error
	ListUsages(ctx context.Context, code string) ([]Usage, error)
}
