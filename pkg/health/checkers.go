package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger matches pgxpool.Pool and database handles that expose Ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck reports unhealthy when the database does not answer a
// ping. Intended as a readiness check.
func DatabaseCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Wrap(err, "database ping")
		}
		return nil
	}
}

// GoroutineCountCheck reports unhealthy when the goroutine count exceeds
// threshold. Intended as a liveness check to surface leaks.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}
