package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AllowsCapacityPerWindow(t *testing.T) {
	rl := NewMemory(3, time.Minute)
	defer rl.Stop()

	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	ctx := context.Background()

	// GIVEN: Three requests within a window
	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}

	// THEN: The fourth is refused, another client is not affected
	ok, _ := rl.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)
	ok, _ = rl.Allow(ctx, "10.0.0.2")
	assert.True(t, ok)

	// WHEN: The window passes
	clock = clock.Add(time.Minute)
	ok, _ = rl.Allow(ctx, "10.0.0.1")
	assert.True(t, ok)
}

func TestMemory_ZeroCapacityRefusesAll(t *testing.T) {
	rl := NewMemory(0, time.Minute)
	defer rl.Stop()
	ok, err := rl.Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_CleanupDropsIdleClients(t *testing.T) {
	rl := NewMemory(1, time.Minute)
	defer rl.Stop()

	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	rl.Allow(context.Background(), "idle")

	clock = clock.Add(2 * time.Hour)
	rl.cleanup()
	assert.Empty(t, rl.clients)
}

func TestMemory_StopTwice(t *testing.T) {
	rl := NewMemory(1, time.Minute)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}

func TestRedis_KeyRollsWithWindow(t *testing.T) {
	r := NewRedis("127.0.0.1:0", 5, time.Minute)
	defer r.Close()

	clock := time.Date(2026, 1, 1, 9, 0, 10, 0, time.UTC)
	r.now = func() time.Time { return clock }
	first := r.key("10.0.0.1")

	clock = clock.Add(30 * time.Second)
	assert.Equal(t, first, r.key("10.0.0.1"))

	clock = clock.Add(30 * time.Second)
	assert.NotEqual(t, first, r.key("10.0.0.1"))
	assert.Contains(t, first, "paycalc:ratelimit:10.0.0.1:")
}

func TestRedis_UnreachableReturnsError(t *testing.T) {
	r := NewRedis("127.0.0.1:1", 5, time.Minute)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := r.Allow(ctx, "10.0.0.1")
	assert.Error(t, err)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type stubLimiter struct {
	allow bool
	err   error
}

func (s stubLimiter) Allow(context.Context, string) (bool, error) { return s.allow, s.err }
func (s stubLimiter) Window() time.Duration                       { return 90 * time.Second }

func serve(l Limiter) *httptest.ResponseRecorder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Middleware(l, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/feedback", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	t.Run("allowed passes through", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, serve(stubLimiter{allow: true}).Code)
	})

	t.Run("refused gets 429 with retry hint", func(t *testing.T) {
		rec := serve(stubLimiter{allow: false})
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "90", rec.Header().Get("Retry-After"))
		assert.JSONEq(t, `{"error":"too many requests, please try again later","code":"rate_limited"}`, rec.Body.String())
	})

	t.Run("backend failure fails open", func(t *testing.T) {
		rec := serve(stubLimiter{err: assert.AnError})
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	assert.Equal(t, "203.0.113.9", ClientIP(req))

	req.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}
