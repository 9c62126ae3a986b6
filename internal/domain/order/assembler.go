package order

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zayra/storefront/internal/domain/cart"
	"github.com/zayra/storefront/internal/domain/catalog"
	"github.com/zayra/storefront/internal/domain/coupon"
	"github.com/zayra/storefront/internal/domain/user"
)

// Pricing rules fixed at assembly time. All amounts are whole rupees.
const (
	taxRatePercent        = 18
	freeShippingThreshold = 1500
	shippingCharge        = 99
	codSurcharge          = 49
)

var taxRate = decimal.NewFromInt(taxRatePercent).Div(decimal.NewFromInt(100))

// Assembler converts a cart snapshot into an immutable priced order.
// Every line is re-priced from the catalog so stale client-side prices
// cannot be exploited, and at most one coupon is applied through the
// coupon engine.
type Assembler struct {
	catalog catalog.Repository
	carts   cart.Repository
	users   user.Repository
	coupons *coupon.Engine
	orders  Repository

	now func() time.Time
	rng *rand.Rand
}

// NewAssembler creates an Assembler with the required collaborators.
func NewAssembler(
	catalogRepo catalog.Repository,
	carts cart.Repository,
	users user.Repository,
	coupons *coupon.Engine,
	orders Repository,
) *Assembler {
	return &Assembler{
		catalog: catalogRepo,
		carts:   carts,
		users:   users,
		coupons: coupons,
		orders:  orders,
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithNow overrides the assembler's clock. Intended for tests.
func (a *Assembler) WithNow(now func() time.Time) *Assembler {
	a.now = now
	return a
}

// WithRand overrides the assembler's randomness source. Intended for tests.
func (a *Assembler) WithRand(rng *rand.Rand) *Assembler {
	a.rng = rng
	return a
}

// Assemble reads the user's cart, re-prices every line from the catalog,
// applies at most one coupon, computes tax/shipping/COD charges, and
// persists the resulting order. COD orders clear the cart in the same
// transaction; online-payment orders keep it until payment confirms.
//
// A coupon that fails re-validation against the current subtotal is
// dropped silently: the order is still created, just without a discount.
// The drop is logged at WARN.
func (a *Assembler) Assemble(ctx context.Context, userID string, method PaymentMethod, shipTo Address) (*Order, error) {
	c, err := a.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "read cart")
	}
	if len(c.Items) == 0 {
		return nil, cart.ErrEmpty
	}

	items, subtotal, err := a.priceItems(ctx, c.Items)
	if err != nil {
		return nil, err
	}

	var applied *AppliedCoupon
	if c.AppliedCoupon != "" {
		applied = a.applyCoupon(ctx, c.AppliedCoupon, userID, subtotal)
	}

	var discount int64
	if applied != nil {
		discount = applied.DiscountAmount
	}

	discounted := subtotal - discount
	tax := decimal.NewFromInt(discounted).Mul(taxRate).Round(0).IntPart()

	var shipping int64
	if discounted <= freeShippingThreshold {
		shipping = shippingCharge
	}

	var codCharges int64
	if method == PaymentCOD {
		codCharges = codSurcharge
	}

	if shipTo.Name == "" {
		if u, err := a.users.ByID(ctx, userID); err == nil {
			shipTo.Name = u.FullName()
		}
	}

	now := a.now()
	paymentStatus, status := initialStatuses(method)

	o := &Order{
		ID:     generateOrderID(a.rng),
		UserID: userID,
		Items:  items,
		Totals: Totals{
			Subtotal:       subtotal,
			CouponDiscount: discount,
			Tax:            tax,
			Shipping:       shipping,
			CODCharges:     codCharges,
			Total:          discounted + tax + shipping + codCharges,
		},
		AppliedCoupon:   applied,
		PaymentMethod:   method,
		PaymentStatus:   paymentStatus,
		Status:          status,
		ShippingAddress: shipTo,
		Tracking:        a.newTracking(status, now),
		CreatedAt:       now,
	}

	if err := a.orders.Create(ctx, o, method == PaymentCOD); err != nil {
		// The coupon was consumed before the order existed; give the
		// redemption back so a failed checkout does not burn it.
		if applied != nil {
			if rerr := a.coupons.ReleaseUsage(ctx, applied.Code, userID); rerr != nil {
				zctx.From(ctx).Warn("Coupon usage not released after failed order creation",
					zap.String("code", applied.Code), zap.Error(rerr))
			}
		}
		return nil, errors.Wrap(err, "create order")
	}

	return o, nil
}

// priceItems re-fetches every cart line from the catalog in one batch and
// builds the immutable line snapshots.
func (a *Assembler) priceItems(ctx context.Context, lines []cart.Item) ([]Item, int64, error) {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	fetched, err := a.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, 0, errors.Wrap(err, "fetch products")
	}

	byID := make(map[string]catalog.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]Item, 0, len(lines))
	var subtotal int64
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, 0, &catalog.NotFoundError{ProductID: l.ProductID}
		}
		items = append(items, Item{
			ProductID: p.ID,
			Name:      p.Name,
			Brand:     p.Brand,
			Image:     p.Image,
			Price:     p.Price,
			Quantity:  l.Quantity,
			Size:      l.Size,
		})
		subtotal += p.Price * int64(l.Quantity)
	}

	return items, subtotal, nil
}

// applyCoupon re-validates the cart's coupon against the current subtotal
// and records its usage. Any failure drops the coupon without failing the
// order.
func (a *Assembler) applyCoupon(ctx context.Context, code, userID string, subtotal int64) *AppliedCoupon {
	lg := zctx.From(ctx)

	cpn, err := a.coupons.FindByCode(ctx, code)
	if err != nil {
		lg.Warn("Coupon dropped at assembly: lookup failed",
			zap.String("code", code), zap.Error(err))
		return nil
	}

	if v := a.coupons.ValidateForOrder(cpn, subtotal); !v.OK {
		lg.Warn("Coupon dropped at assembly: no longer valid",
			zap.String("code", code), zap.String("reason", v.Reason))
		return nil
	}

	discount := a.coupons.Discount(cpn, subtotal)
	if err := a.coupons.RecordUsage(ctx, cpn, userID, subtotal, discount); err != nil {
		lg.Warn("Coupon dropped at assembly: usage not recorded",
			zap.String("code", code), zap.Error(err))
		return nil
	}

	return &AppliedCoupon{
		Code:           cpn.Code,
		DiscountAmount: discount,
		DiscountType:   cpn.DiscountType,
		OriginalTotal:  subtotal,
		FinalTotal:     subtotal - discount,
	}
}

// initialStatuses returns the payment/order status pair a fresh order
// starts in. COD skips online payment confirmation entirely.
func initialStatuses(method PaymentMethod) (PaymentStatus, Status) {
	if method == PaymentCOD {
		return PaymentOnDelivery, StatusConfirmed
	}
	return PaymentInitiated, StatusPendingPayment
}

// newTracking builds the initial tracking block with one seed update
// mirroring the order's initial status.
func (a *Assembler) newTracking(status Status, now time.Time) *Tracking {
	t := newTrackingBlock(a.rng, now)

	note := noteFor(status)
	t.Append(TrackingUpdate{
		Status:    status,
		Message:   note.message,
		Location:  note.location,
		Source:    SourceSystem,
		Timestamp: now,
	})

	return t
}
