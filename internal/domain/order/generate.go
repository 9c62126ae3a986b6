package order

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Estimated delivery window in days from assembly.
const (
	minDeliveryDays = 3
	maxDeliveryDays = 5
)

var carriers = []string{"BlueDart", "Delhivery", "Ekart", "DTDC"}

// generateOrderID produces a human-readable order id: "ZY" + 6 digits.
func generateOrderID(rng *rand.Rand) string {
	return fmt.Sprintf("ZY%06d", rng.IntN(1_000_000))
}

// generateTrackingNumber produces a synthetic carrier number: "BD" + 10 digits.
func generateTrackingNumber(rng *rand.Rand) string {
	return fmt.Sprintf("BD%010d", rng.Int64N(10_000_000_000))
}

// newTrackingBlock builds an empty tracking block: a random carrier from
// the fixed set, a synthetic number, and a 3-5 day delivery estimate.
func newTrackingBlock(rng *rand.Rand, now time.Time) *Tracking {
	days := minDeliveryDays + rng.IntN(maxDeliveryDays-minDeliveryDays+1)

	return &Tracking{
		TrackingNumber:    generateTrackingNumber(rng),
		Carrier:           carriers[rng.IntN(len(carriers))],
		EstimatedDelivery: now.AddDate(0, 0, days),
	}
}
