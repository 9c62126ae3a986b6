package order

import (
	"context"
	"math/rand/v2"
	"regexp"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayra/storefront/internal/domain/cart"
	"github.com/zayra/storefront/internal/domain/catalog"
	"github.com/zayra/storefront/internal/domain/coupon"
	"github.com/zayra/storefront/internal/domain/user"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func testProducts() map[string]catalog.Product {
	return map[string]catalog.Product{
		"p1": {ID: "p1", Name: "Linen Shirt", Brand: "Zayra", Price: 1000, Image: "shirt.jpg"},
		"p2": {ID: "p2", Name: "Denim Jacket", Brand: "Zayra", Price: 2000, Image: "jacket.jpg"},
		"p3": {ID: "p3", Name: "Cotton Socks", Brand: "Basics", Price: 250, Image: "socks.jpg"},
	}
}

func newTestAssembler(carts *stubCarts, coupons *stubCouponRepo, orders *stubOrders) *Assembler {
	eng := coupon.NewEngine(coupons).WithNow(func() time.Time { return fixedNow })
	return NewAssembler(
		&stubCatalog{products: testProducts()},
		carts,
		&stubUsers{user: &user.User{ID: "u1", FirstName: "Asha", LastName: "Rao", Email: "asha@example.com"}},
		eng,
		orders,
	).WithNow(func() time.Time { return fixedNow }).WithRand(testRand())
}

func shipTo() Address {
	return Address{
		Name:       "Asha Rao",
		Line1:      "14 MG Road",
		City:       "Bengaluru",
		State:      "Karnataka",
		PostalCode: "560001",
	}
}

func TestAssemble_PercentageCouponPricing(t *testing.T) {
	// Subtotal 2000, 15% coupon (min 500, max 500): discount 300,
	// tax round(1700*0.18)=306, free shipping above 1500, total 2006.
	carts := &stubCarts{cart: &cart.Cart{
		UserID:        "u1",
		Items:         []cart.Item{{ProductID: "p2", Size: "M", Quantity: 1}},
		AppliedCoupon: "SAVE15",
	}}
	coupons := &stubCouponRepo{coupon: &coupon.Coupon{
		Code:              "SAVE15",
		DiscountType:      coupon.DiscountPercentage,
		DiscountValue:     decimal.NewFromInt(15),
		MinimumOrderValue: 500,
		MaximumDiscount:   int64Ptr(500),
		ValidFrom:         fixedNow.Add(-time.Hour),
		ValidTo:           fixedNow.Add(time.Hour),
		IsActive:          true,
	}}
	orders := &stubOrders{}

	a := newTestAssembler(carts, coupons, orders)
	o, err := a.Assemble(context.Background(), "u1", PaymentCard, shipTo())
	require.NoError(t, err)

	assert.Equal(t, Totals{
		Subtotal:       2000,
		CouponDiscount: 300,
		Tax:            306,
		Shipping:       0,
		CODCharges:     0,
		Total:          2006,
	}, o.Totals)

	require.NotNil(t, o.AppliedCoupon)
	assert.Equal(t, "SAVE15", o.AppliedCoupon.Code)
	assert.Equal(t, int64(300), o.AppliedCoupon.DiscountAmount)
	assert.Equal(t, int64(2000), o.AppliedCoupon.OriginalTotal)
	assert.Equal(t, int64(1700), o.AppliedCoupon.FinalTotal)

	assert.Equal(t, "u1", coupons.recordedUser)
	assert.Equal(t, int64(2000), coupons.recordedValue)
	assert.Equal(t, int64(300), coupons.recordedDisc)
}

func TestAssemble_CODPricing(t *testing.T) {
	// Subtotal 1000, no coupon, COD: tax 180, shipping 99, surcharge 49,
	// total 1328.
	carts := &stubCarts{cart: &cart.Cart{
		UserID: "u1",
		Items:  []cart.Item{{ProductID: "p1", Size: "L", Quantity: 1}},
	}}
	orders := &stubOrders{}

	a := newTestAssembler(carts, &stubCouponRepo{}, orders)
	o, err := a.Assemble(context.Background(), "u1", PaymentCOD, shipTo())
	require.NoError(t, err)

	assert.Equal(t, Totals{
		Subtotal:       1000,
		CouponDiscount: 0,
		Tax:            180,
		Shipping:       99,
		CODCharges:     49,
		Total:          1328,
	}, o.Totals)

	assert.Equal(t, PaymentOnDelivery, o.PaymentStatus)
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.True(t, orders.clearCart, "COD order must clear the cart in the creation transaction")
	assert.Nil(t, o.AppliedCoupon)
}

func TestAssemble_OnlinePaymentInitialState(t *testing.T) {
	carts := &stubCarts{cart: &cart.Cart{
		UserID: "u1",
		Items:  []cart.Item{{ProductID: "p1", Quantity: 2}},
	}}
	orders := &stubOrders{}

	a := newTestAssembler(carts, &stubCouponRepo{}, orders)
	o, err := a.Assemble(context.Background(), "u1", PaymentUPI, shipTo())
	require.NoError(t, err)

	assert.Equal(t, PaymentInitiated, o.PaymentStatus)
	assert.Equal(t, StatusPendingPayment, o.Status)
	assert.False(t, orders.clearCart, "online-payment orders keep the cart until payment confirms")

	// Seed tracking update mirrors the initial status.
	require.NotNil(t, o.Tracking)
	require.Len(t, o.Tracking.Updates, 1)
	assert.Equal(t, StatusPendingPayment, o.Tracking.Updates[0].Status)
	assert.Equal(t, SourceSystem, o.Tracking.Updates[0].Source)
}

func TestAssemble_GeneratedIdentifiers(t *testing.T) {
	carts := &stubCarts{cart: &cart.Cart{
		UserID: "u1",
		Items:  []cart.Item{{ProductID: "p3", Quantity: 4}},
	}}
	orders := &stubOrders{}

	a := newTestAssembler(carts, &stubCouponRepo{}, orders)
	o, err := a.Assemble(context.Background(), "u1", PaymentCard, shipTo())
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^ZY\d{6}$`), o.ID)
	assert.Regexp(t, regexp.MustCompile(`^BD\d{10}$`), o.Tracking.TrackingNumber)
	assert.Contains(t, carriers, o.Tracking.Carrier)

	eta := o.Tracking.EstimatedDelivery
	assert.False(t, eta.Before(fixedNow.AddDate(0, 0, 3)), "ETA at least 3 days out")
	assert.False(t, eta.After(fixedNow.AddDate(0, 0, 5)), "ETA at most 5 days out")
	assert.Equal(t, fixedNow, o.CreatedAt)
}

func TestAssemble_RepricesFromCatalog(t *testing.T) {
	// Quantities multiply catalog prices; cart carries no price data at all.
	carts := &stubCarts{cart: &cart.Cart{
		UserID: "u1",
		Items: []cart.Item{
			{ProductID: "p1", Size: "M", Quantity: 2},
			{ProductID: "p3", Size: "9", Quantity: 3},
		},
	}}
	orders := &stubOrders{}

	a := newTestAssembler(carts, &stubCouponRepo{}, orders)
	o, err := a.Assemble(context.Background(), "u1", PaymentCard, shipTo())
	require.NoError(t, err)

	assert.Equal(t, int64(2750), o.Totals.Subtotal)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Linen Shirt", o.Items[0].Name)
	assert.Equal(t, int64(1000), o.Items[0].Price)
	assert.Equal(t, "M", o.Items[0].Size)
	assert.Equal(t, "Cotton Socks", o.Items[1].Name)
}

func TestAssemble_MissingProduct(t *testing.T) {
	carts := &stubCarts{cart: &cart.Cart{
		UserID: "u1",
		Items:  []cart.Item{{ProductID: "ghost", Quantity: 1}},
	}}

	a := newTestAssembler(carts, &stubCouponRepo{}, &stubOrders{})
	_, err := a.Assemble(context.Background(), "u1", PaymentCard, shipTo())

	var nf *catalog.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ghost", nf.ProductID)
}

func TestAssemble_EmptyCart(t *testing.T) {
	carts := &stubCarts{cart: &cart.Cart{UserID: "u1"}}

	a := newTestAssembler(carts, &stubCouponRepo{}, &stubOrders{})
	_, err := a.Assemble(context.Background(), "u1", PaymentCard, shipTo())
	require.ErrorIs(t, err, cart.ErrEmpty)
}

func TestAssemble_CouponSilentFallback(t *testing.T) {
	// A coupon that fails re-validation against the current subtotal is
	// dropped without surfacing an error; the order is created undiscounted.
	tests := []struct {
		name    string
		coupons *stubCouponRepo
	}{
		{
			name:    "coupon vanished",
			coupons: &stubCouponRepo{findErr: coupon.ErrNotFound},
		},
		{
			name: "below minimum order value now",
			coupons: &stubCouponRepo{coupon: &coupon.Coupon{
				Code:              "BIG500",
				DiscountType:      coupon.DiscountFixed,
				DiscountValue:     decimal.NewFromInt(500),
				MinimumOrderValue: 5000,
				ValidFrom:         fixedNow.Add(-time.Hour),
				ValidTo:           fixedNow.Add(time.Hour),
				IsActive:          true,
			}},
		},
		{
			name: "already used by this user",
			coupons: &stubCouponRepo{
				coupon: &coupon.Coupon{
					Code:          "ONCE",
					DiscountType:  coupon.DiscountFixed,
					DiscountValue: decimal.NewFromInt(100),
					ValidFrom:     fixedNow.Add(-time.Hour),
					ValidTo:       fixedNow.Add(time.Hour),
					IsActive:      true,
				},
				recordErr: coupon.ErrAlreadyUsed,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			carts := &stubCarts{cart: &cart.Cart{
				UserID:        "u1",
				Items:         []cart.Item{{ProductID: "p2", Quantity: 1}},
				AppliedCoupon: "WHATEVER",
			}}
			orders := &stubOrders{}

			a := newTestAssembler(carts, tt.coupons, orders)
			o, err := a.Assemble(context.Background(), "u1", PaymentCard, shipTo())
			require.NoError(t, err)

			assert.Nil(t, o.AppliedCoupon)
			assert.Zero(t, o.Totals.CouponDiscount)
			assert.Equal(t, int64(2000), o.Totals.Subtotal)
			assert.Equal(t, int64(2360), o.Totals.Total) // 2000 + 360 tax, free shipping
		})
	}
}

func TestAssemble_ReleasesCouponWhenCreateFails(t *testing.T) {
	// The redemption is recorded before the order row exists. When
	// persistence then fails, the usage is handed back so the buyer can
	// retry checkout with the same coupon.
	carts := &stubCarts{cart: &cart.Cart{
		UserID:        "u1",
		Items:         []cart.Item{{ProductID: "p2", Quantity: 1}},
		AppliedCoupon: "SAVE15",
	}}
	coupons := &stubCouponRepo{coupon: &coupon.Coupon{
		Code:          "SAVE15",
		DiscountType:  coupon.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(15),
		ValidFrom:     fixedNow.Add(-time.Hour),
		ValidTo:       fixedNow.Add(time.Hour),
		IsActive:      true,
	}}
	orders := &stubOrders{createErr: errors.New("connection reset")}

	a := newTestAssembler(carts, coupons, orders)
	_, err := a.Assemble(context.Background(), "u1", PaymentCard, shipTo())
	require.Error(t, err)

	assert.Equal(t, 1, coupons.recordCalls)
	assert.Equal(t, 1, coupons.releaseCalls)
	assert.Equal(t, "SAVE15", coupons.releasedCode)
	assert.Equal(t, "u1", coupons.releasedUser)
}

func TestAssemble_NoReleaseWithoutCoupon(t *testing.T) {
	carts := &stubCarts{cart: &cart.Cart{
		UserID: "u1",
		Items:  []cart.Item{{ProductID: "p1", Quantity: 1}},
	}}
	coupons := &stubCouponRepo{}
	orders := &stubOrders{createErr: errors.New("connection reset")}

	a := newTestAssembler(carts, coupons, orders)
	_, err := a.Assemble(context.Background(), "u1", PaymentCard, shipTo())
	require.Error(t, err)
	assert.Zero(t, coupons.releaseCalls)
}

func TestAssemble_TotalsIdentity(t *testing.T) {
	carts := &stubCarts{cart: &cart.Cart{
		UserID: "u1",
		Items: []cart.Item{
			{ProductID: "p1", Quantity: 1},
			{ProductID: "p3", Quantity: 2},
		},
	}}
	orders := &stubOrders{}

	a := newTestAssembler(carts, &stubCouponRepo{}, orders)
	o, err := a.Assemble(context.Background(), "u1", PaymentCOD, shipTo())
	require.NoError(t, err)

	tt := o.Totals
	assert.Equal(t, tt.Total, tt.Subtotal-tt.CouponDiscount+tt.Tax+tt.Shipping+tt.CODCharges)
}

func TestAssemble_ShippingAddressNameFallback(t *testing.T) {
	carts := &stubCarts{cart: &cart.Cart{
		UserID: "u1",
		Items:  []cart.Item{{ProductID: "p1", Quantity: 1}},
	}}
	orders := &stubOrders{}

	a := newTestAssembler(carts, &stubCouponRepo{}, orders)
	addr := shipTo()
	addr.Name = ""
	o, err := a.Assemble(context.Background(), "u1", PaymentCard, addr)
	require.NoError(t, err)

	assert.Equal(t, "Asha Rao", o.ShippingAddress.Name)
}
