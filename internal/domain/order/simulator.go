package order

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Shipment progress thresholds, measured from order creation.
const (
	processingAfter = 2 * time.Hour
	shippedAfter    = 12 * time.Hour
	deliveredAfter  = 48 * time.Hour
	churnAfter      = 24 * time.Hour

	// adminEditWindow suppresses simulation right after an admin touched
	// the order, so manual corrections are not immediately overwritten.
	adminEditWindow = 5 * time.Minute
)

var sortingHubs = []string{"Mumbai", "Delhi", "Bangalore", "Hyderabad"}

// transitRoute is the fixed location sequence a shipped order walks
// through. The cursor is derived from the log contents on every call,
// never persisted separately.
var transitRoute = []string{
	"Delhi Distribution Center",
	"Bangalore Sorting Facility",
	"Out for Delivery",
	"With Delivery Partner",
}

// Simulator synthesizes carrier progress purely from elapsed wall-clock
// time; no real carrier integration exists. It is invoked from the public
// tracking endpoint and appends to the same idempotent log the state
// machine maintains.
type Simulator struct {
	orders Repository
	now    func() time.Time
	rng    *rand.Rand
}

// NewSimulator creates a Simulator backed by the given repository.
func NewSimulator(orders Repository) *Simulator {
	return &Simulator{
		orders: orders,
		now:    time.Now,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// WithNow overrides the simulator's clock. Intended for tests.
func (s *Simulator) WithNow(now func() time.Time) *Simulator {
	s.now = now
	return s
}

// Advance derives the order's simulated shipment progress from its age
// and persists only the fields that changed. It never raises to the
// tracking caller: the worst case is no mutation.
func (s *Simulator) Advance(ctx context.Context, o *Order) {
	if err := s.advance(ctx, o); err != nil {
		zctx.From(ctx).Error("Tracking simulation failed",
			zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (s *Simulator) advance(ctx context.Context, o *Order) error {
	switch o.Status {
	case StatusPendingPayment, StatusDelivered, StatusCancelled:
		return nil
	}

	now := s.now()
	if o.Tracking == nil {
		o.Tracking = newTrackingBlock(s.rng, now)
	}

	// Defer to recent admin edits. The simulator's own writes carry the
	// simulator source tag and never suppress a later tick.
	if last := o.Tracking.Last(); last != nil &&
		last.Source == SourceAdmin && now.Sub(last.Timestamp) < adminEditWindow {
		return nil
	}

	age := now.Sub(o.CreatedAt)
	ch := &Change{OrderID: o.ID, UserID: o.UserID}

	if age >= processingAfter && age < shippedAfter && o.Status == StatusConfirmed {
		s.advanceTo(o, ch, StatusProcessing, "Order is being processed", "Packaging Facility", now)
	}

	if age >= shippedAfter && age < deliveredAfter {
		switch o.Status {
		case StatusConfirmed, StatusProcessing, StatusPacked:
			s.advanceTo(o, ch, StatusShipped, "Order shipped",
				fmt.Sprintf("In Transit - %s Sorting Center", sortingHub(o.ID)), now)
		}
	}

	if age >= deliveredAfter && o.Status != StatusDelivered {
		s.advanceTo(o, ch, StatusDelivered, "Order delivered", "Delivered", now)
		if o.Tracking.ActualDelivery == nil {
			o.Tracking.ActualDelivery = &now
			ch.ActualDelivery = &now
		}
	}

	if o.Status == StatusShipped && age >= churnAfter {
		s.churnLocation(o, ch, now)
	}

	if ch.Empty() {
		return nil
	}
	return s.orders.Apply(ctx, ch)
}

// advanceTo moves the order forward one simulated step, appending at most
// one update per status.
func (s *Simulator) advanceTo(o *Order, ch *Change, to Status, message, location string, now time.Time) {
	if o.Tracking.HasStatus(to) {
		// Another tick already advanced this far. Still converge the
		// status field in case an earlier merge wrote only the log.
		if o.Status != to {
			o.Status = to
			st := to
			ch.Status = &st
		}
		return
	}

	o.Status = to
	st := to
	ch.Status = &st

	u := TrackingUpdate{
		Status:    to,
		Message:   message,
		Location:  location,
		Source:    SourceSimulator,
		Timestamp: now,
	}
	o.Tracking.Append(u)
	ch.Updates = append(ch.Updates, u)
	loc := location
	o.Tracking.CurrentLocation = loc
	ch.CurrentLocation = &loc
}

// churnLocation walks the fixed transit route one hop per call while the
// order stays shipped. The last logged location determines the cursor; a
// location outside the route (the initial sorting-center entry) starts
// the walk from the beginning.
func (s *Simulator) churnLocation(o *Order, ch *Change, now time.Time) {
	last := o.Tracking.Last()
	if last == nil {
		return
	}

	next := ""
	switch idx := routeIndex(last.Location); {
	case idx == len(transitRoute)-1:
		return // route exhausted, wait for delivery
	case idx >= 0:
		next = transitRoute[idx+1]
	default:
		next = transitRoute[0]
	}

	u := TrackingUpdate{
		Status:    StatusShipped,
		Message:   "Package in transit",
		Location:  next,
		Source:    SourceSimulator,
		Timestamp: now,
	}
	o.Tracking.Append(u)
	ch.Updates = append(ch.Updates, u)
	loc := next
	o.Tracking.CurrentLocation = loc
	ch.CurrentLocation = &loc
}

// sortingHub picks the hub for the first shipped entry from the order id,
// not from randomness: concurrent ticks then build an identical update and
// collapse on the log's uniqueness constraint instead of both surviving it.
func sortingHub(orderID string) string {
	h := fnv.New32a()
	h.Write([]byte(orderID))
	return sortingHubs[int(h.Sum32())%len(sortingHubs)]
}

func routeIndex(location string) int {
	for i, l := range transitRoute {
		if l == location {
			return i
		}
	}
	return -1
}
