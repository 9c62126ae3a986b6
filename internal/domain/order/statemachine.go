package order

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
)

// statusNote is the fixed (message, location) pair appended to the
// tracking log when an order reaches a status.
type statusNote struct {
	message  string
	location string
}

var statusNotes = map[Status]statusNote{
	StatusPendingPayment: {message: "Order placed, awaiting payment"},
	StatusConfirmed:      {message: "Order confirmed", location: "Seller Facility"},
	StatusProcessing:     {message: "Order is being processed", location: "Packaging Facility"},
	StatusPacked:         {message: "Order packed and ready for dispatch", location: "Seller Warehouse"},
	StatusShipped:        {message: "Order shipped", location: "In Transit"},
	StatusDelivered:      {message: "Order delivered", location: "Delivered"},
	StatusCancelled:      {message: "Order cancelled"},
}

func noteFor(s Status) statusNote {
	if n, ok := statusNotes[s]; ok {
		return n
	}
	return statusNote{message: string(s)}
}

// StateMachine governs payment and fulfilment status transitions and
// maintains the append-only, idempotent tracking log. Every mutation is
// persisted as a field-level merge through the order Repository.
type StateMachine struct {
	orders Repository
	now    func() time.Time
	rng    *rand.Rand
}

// NewStateMachine creates a StateMachine backed by the given repository.
func NewStateMachine(orders Repository) *StateMachine {
	return &StateMachine{
		orders: orders,
		now:    time.Now,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithNow overrides the state machine's clock. Intended for tests.
func (m *StateMachine) WithNow(now func() time.Time) *StateMachine {
	m.now = now
	return m
}

// MarkPaid confirms payment for an online-payment order: paymentStatus
// initiated→paid, orderStatus pending_payment→confirmed, and one
// "confirmed" tracking update appended unless already present. The
// user's cart is cleared in the same transaction. Calling MarkPaid on an
// already-paid order is a no-op.
func (m *StateMachine) MarkPaid(ctx context.Context, o *Order) error {
	if o.Status == StatusCancelled {
		return ErrCancelled
	}
	if o.PaymentStatus == PaymentPaid {
		return nil
	}
	if o.PaymentStatus != PaymentInitiated {
		return ErrPaymentNotPending
	}

	ch := &Change{OrderID: o.ID, UserID: o.UserID, ClearCart: true}

	o.PaymentStatus = PaymentPaid
	paid := PaymentPaid
	ch.PaymentStatus = &paid

	if o.Status == StatusPendingPayment {
		o.Status = StatusConfirmed
		confirmed := StatusConfirmed
		ch.Status = &confirmed
	}

	m.appendStatusNote(o, ch, StatusConfirmed, SourceSystem)

	return m.orders.Apply(ctx, ch)
}

// MarkPaymentFailed records a failed payment attempt: paymentStatus
// initiated→failed. The order itself stays in pending_payment so the
// buyer can retry.
func (m *StateMachine) MarkPaymentFailed(ctx context.Context, o *Order) error {
	if o.Status == StatusCancelled {
		return ErrCancelled
	}
	if o.PaymentStatus != PaymentInitiated {
		return ErrPaymentNotPending
	}

	o.PaymentStatus = PaymentFailed
	failed := PaymentFailed

	return m.orders.Apply(ctx, &Change{
		OrderID:       o.ID,
		UserID:        o.UserID,
		PaymentStatus: &failed,
	})
}

// AdminSetStatus moves the order to newStatus. The target is
// intentionally unconstrained so administrators can correct mistakes,
// except that cancelled orders accept no further transitions.
// Exactly one tracking update is appended per status reached, and
// reaching delivered stamps ActualDelivery once.
func (m *StateMachine) AdminSetStatus(ctx context.Context, o *Order, newStatus Status) error {
	return m.setStatus(ctx, o, newStatus, SourceAdmin)
}

// Cancel marks the order cancelled. Cancelled is terminal: no simulated
// or admin transition may follow.
func (m *StateMachine) Cancel(ctx context.Context, o *Order) error {
	return m.setStatus(ctx, o, StatusCancelled, SourceAdmin)
}

func (m *StateMachine) setStatus(ctx context.Context, o *Order, newStatus Status, src UpdateSource) error {
	if !newStatus.Valid() {
		return errors.Errorf("unknown order status %q", newStatus)
	}
	if o.Status == StatusCancelled {
		return ErrCancelled
	}

	if o.Tracking == nil {
		o.Tracking = newTrackingBlock(m.rng, m.now())
	}

	ch := &Change{OrderID: o.ID, UserID: o.UserID}

	if o.Status != newStatus {
		o.Status = newStatus
		s := newStatus
		ch.Status = &s
	}

	m.appendStatusNote(o, ch, newStatus, src)

	if newStatus == StatusDelivered && o.Tracking.ActualDelivery == nil {
		now := m.now()
		o.Tracking.ActualDelivery = &now
		ch.ActualDelivery = &now
	}

	if ch.Empty() {
		return nil
	}
	return m.orders.Apply(ctx, ch)
}

// appendStatusNote appends the fixed tracking note for a status unless an
// update with that status is already present, keeping the log idempotent
// per status. The same presence rule is enforced again at the storage
// layer, so two near-simultaneous callers collapse into one entry.
func (m *StateMachine) appendStatusNote(o *Order, ch *Change, s Status, src UpdateSource) {
	if o.Tracking.HasStatus(s) {
		return
	}

	note := noteFor(s)
	u := TrackingUpdate{
		Status:    s,
		Message:   note.message,
		Location:  note.location,
		Source:    src,
		Timestamp: m.now(),
	}
	o.Tracking.Append(u)
	ch.Updates = append(ch.Updates, u)
	if note.location != "" {
		loc := note.location
		o.Tracking.CurrentLocation = loc
		ch.CurrentLocation = &loc
	}
}
