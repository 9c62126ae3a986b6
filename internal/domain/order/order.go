// Package order implements the order lifecycle engine: assembly and
// pricing of immutable orders from cart snapshots, the payment/fulfilment
// state machine with its append-only tracking log, and the time-based
// shipment simulator.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/zayra/storefront/internal/domain/coupon"
)

// PaymentMethod enumerates how a buyer pays for an order.
type PaymentMethod string

const (
	PaymentCard       PaymentMethod = "card"
	PaymentWallet     PaymentMethod = "wallet"
	PaymentUPI        PaymentMethod = "upi"
	PaymentNetbanking PaymentMethod = "netbanking"
	PaymentCOD        PaymentMethod = "cod"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentWallet, PaymentUPI, PaymentNetbanking, PaymentCOD:
		return true
	}
	return false
}

// PaymentStatus tracks the money-received axis, independent of fulfilment.
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	// PaymentOnDelivery marks cash-on-delivery orders; it never changes.
	PaymentOnDelivery PaymentStatus = "cod"
)

// Status tracks fulfilment progress.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusProcessing     Status = "processing"
	StatusPacked         Status = "packed"
	StatusShipped        Status = "shipped"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusConfirmed, StatusProcessing,
		StatusPacked, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// UpdateSource tags who appended a tracking update. The simulator defers
// to recent admin writes but never to its own, so the tag must be exact.
type UpdateSource string

const (
	SourceSystem    UpdateSource = "system"
	SourceAdmin     UpdateSource = "admin"
	SourceSimulator UpdateSource = "simulator"
)

var (
	// ErrNotFound is returned when no order exists for the given id.
	ErrNotFound = errors.New("order not found")
	// ErrCancelled is returned when a transition is attempted on a
	// cancelled order. Cancelled is terminal.
	ErrCancelled = errors.New("order is cancelled")
	// ErrPaymentNotPending is returned when a payment callback arrives
	// for an order whose payment is not awaiting confirmation.
	ErrPaymentNotPending = errors.New("payment is not pending")
	// ErrNotOwner is returned when an order is accessed by someone other
	// than its owner.
	ErrNotOwner = errors.New("order does not belong to this user")
)

// Item is a line snapshot captured at assembly time. Name, brand, image
// and price come from the catalog at that moment and are never re-derived.
type Item struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Brand     string `json:"brand"`
	Image     string `json:"image"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
}

// Totals is the pricing snapshot fixed at creation. The identity
// Total == Subtotal - CouponDiscount + Tax + Shipping + CODCharges
// holds for every assembled order and is never recomputed afterward.
type Totals struct {
	Subtotal       int64 `json:"subtotal"`
	CouponDiscount int64 `json:"couponDiscount"`
	Tax            int64 `json:"tax"`
	Shipping       int64 `json:"shipping"`
	CODCharges     int64 `json:"codCharges"`
	Total          int64 `json:"total"`
}

// AppliedCoupon snapshots the coupon redemption attached to an order.
type AppliedCoupon struct {
	Code           string              `json:"code"`
	DiscountAmount int64               `json:"discountAmount"`
	DiscountType   coupon.DiscountType `json:"discountType"`
	OriginalTotal  int64               `json:"originalTotal"`
	FinalTotal     int64               `json:"finalTotal"`
}

// Address is the shipping destination captured at assembly time.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone,omitempty"`
}

// TrackingUpdate is one entry in the shipment history log.
type TrackingUpdate struct {
	Status    Status       `json:"status"`
	Message   string       `json:"message"`
	Location  string       `json:"location,omitempty"`
	Source    UpdateSource `json:"source"`
	Timestamp time.Time    `json:"timestamp"`
}

// Tracking holds the synthetic shipment state for an order. Updates is
// append-only and ordered by insertion.
type Tracking struct {
	TrackingNumber    string
	Carrier           string
	EstimatedDelivery time.Time
	ActualDelivery    *time.Time
	CurrentLocation   string
	Updates           []TrackingUpdate

	// statusIndex gives O(1) presence checks for the idempotent appends.
	// Rebuilt lazily from Updates; maintained by Append.
	statusIndex map[Status]bool
}

// HasStatus reports whether an update with the given status is already
// present in the log.
func (t *Tracking) HasStatus(s Status) bool {
	if t.statusIndex == nil {
		t.statusIndex = make(map[Status]bool, len(t.Updates))
		for _, u := range t.Updates {
			t.statusIndex[u.Status] = true
		}
	}
	return t.statusIndex[s]
}

// Append adds an update to the log and keeps the status index current.
func (t *Tracking) Append(u TrackingUpdate) {
	if t.statusIndex == nil && len(t.Updates) > 0 {
		t.HasStatus(u.Status) // force index build over existing entries
	}
	if t.statusIndex == nil {
		t.statusIndex = make(map[Status]bool)
	}
	t.Updates = append(t.Updates, u)
	t.statusIndex[u.Status] = true
	if u.Location != "" {
		t.CurrentLocation = u.Location
	}
}

// Last returns the most recent update, or nil for an empty log.
func (t *Tracking) Last() *TrackingUpdate {
	if len(t.Updates) == 0 {
		return nil
	}
	return &t.Updates[len(t.Updates)-1]
}

// Order is an immutable priced record produced once by the Assembler and
// mutated afterwards only through StateMachine transitions.
type Order struct {
	ID              string
	UserID          string
	Items           []Item
	Totals          Totals
	AppliedCoupon   *AppliedCoupon
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	Status          Status
	ShippingAddress Address
	Tracking        *Tracking
	CreatedAt       time.Time
}

// Change is a field-level merge applied to a stored order. Only non-nil
// fields are written, so concurrent writers cannot clobber each other's
// columns, and Updates are appended with a conflict-free upsert so two
// near-simultaneous transitions collapse into one log entry.
type Change struct {
	OrderID         string
	UserID          string
	PaymentStatus   *PaymentStatus
	Status          *Status
	CurrentLocation *string
	ActualDelivery  *time.Time
	Updates         []TrackingUpdate
	// ClearCart empties the user's cart in the same transaction. Used by
	// payment confirmation for online-payment orders.
	ClearCart bool
}

// Empty reports whether the change would write nothing.
func (c *Change) Empty() bool {
	return c.PaymentStatus == nil && c.Status == nil &&
		c.CurrentLocation == nil && c.ActualDelivery == nil &&
		len(c.Updates) == 0 && !c.ClearCart
}

// Repository defines persistence for orders.
//
// Create persists the order and, when clearCart is set, empties the
// owner's cart inside the same transaction, so a crash can never leave
// an order saved with its cart still replayable.
//
// Apply persists a Change as a merge, not a full-document overwrite.
type Repository interface {
	Create(ctx context.Context, o *Order, clearCart bool) error
	ByID(ctx context.Context, id string) (*Order, error)
	ByUser(ctx context.Context, userID string) ([]Order, error)
	Apply(ctx context.Context, ch *Change) error
}
