package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedHandler(t *testing.T, max int, window time.Duration) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mw := RateLimit(ctx, RateLimitConfig{Max: max, Window: window})
	return mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func get(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_UnderLimit(t *testing.T) {
	h := newLimitedHandler(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		rec := get(h, "10.0.0.1:1234")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_Exceeded(t *testing.T) {
	h := newLimitedHandler(t, 2, time.Minute)

	get(h, "10.0.0.1:1234")
	get(h, "10.0.0.1:1234")
	rec := get(h, "10.0.0.1:1234")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, rec.Body.String())
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	h := newLimitedHandler(t, 1, time.Minute)

	assert.Equal(t, http.StatusOK, get(h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "10.0.0.1:5678").Code,
		"same IP, different port shares the key")
	assert.Equal(t, http.StatusOK, get(h, "10.0.0.2:1234").Code)
}

func TestRateLimit_ForwardedFor(t *testing.T) {
	h := newLimitedHandler(t, 1, time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same forwarded client from a different proxy hits the same bucket.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "10.0.0.9:4321"
	req2.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
}

func TestRateLimit_SlidingWindow(t *testing.T) {
	rl := &rateLimiter{
		cfg:     RateLimitConfig{Max: 2, Window: time.Minute},
		windows: make(map[string]*window),
	}
	start := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	_, _, ok := rl.allow("k", start)
	require.True(t, ok)
	_, _, ok = rl.allow("k", start.Add(time.Second))
	require.True(t, ok)
	_, _, ok = rl.allow("k", start.Add(2*time.Second))
	require.False(t, ok)

	// Right at rotation the previous window still weighs in fully.
	_, _, ok = rl.allow("k", start.Add(time.Minute))
	require.False(t, ok)

	// Two full windows later everything has decayed.
	_, _, ok = rl.allow("k", start.Add(3*time.Minute))
	assert.True(t, ok)
}
