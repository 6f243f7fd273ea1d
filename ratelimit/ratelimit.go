// Package ratelimit caps how often one client may hit an endpoint.
//
// Two backends share the Limiter interface: an in-process fixed window for
// single-instance deployments, and a Redis counter for deployments with
// several replicas behind a load balancer.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Window() time.Duration
}

// =============================================================================
// IN-MEMORY
// =============================================================================

const (
	bucketCleanupThreshold = 1 * time.Hour
	cleanupInterval        = 10 * time.Minute
)

type clientBucket struct {
	tokens     int
	lastRefill time.Time
}

// Memory is a per-key fixed-window limiter held in process memory.
type Memory struct {
	mu          sync.Mutex
	capacity    int
	window      time.Duration
	clients     map[string]*clientBucket
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewMemory allows capacity requests per key per window.
func NewMemory(capacity int, window time.Duration) *Memory {
	rl := &Memory{
		capacity:    capacity,
		window:      window,
		clients:     make(map[string]*clientBucket),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (r *Memory) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCleanup:
			return
		}
	}
}

func (r *Memory) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, bucket := range r.clients {
		if now.Sub(bucket.lastRefill) > bucketCleanupThreshold {
			delete(r.clients, key)
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (r *Memory) Stop() {
	r.stopOnce.Do(func() { close(r.stopCleanup) })
}

func (r *Memory) Window() time.Duration {
	return r.window
}

// Allow never returns an error.
func (r *Memory) Allow(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capacity <= 0 {
		return false, nil
	}

	now := r.now()
	bucket, exists := r.clients[key]

	if !exists {
		r.clients[key] = &clientBucket{
			tokens:     r.capacity - 1,
			lastRefill: now,
		}
		return true, nil
	}

	if now.Sub(bucket.lastRefill) >= r.window {
		bucket.tokens = r.capacity
		bucket.lastRefill = now
	}

	if bucket.tokens <= 0 {
		return false, nil
	}

	bucket.tokens--
	return true, nil
}

// =============================================================================
// REDIS
// =============================================================================

// Redis is a fixed-window limiter shared by every replica using the same
// Redis instance. Each window is one INCR'd key that expires with it.
type Redis struct {
	client   *redis.Client
	capacity int
	window   time.Duration
	prefix   string
	now      func() time.Time
}

// NewRedis connects to addr lazily; the first Allow dials.
func NewRedis(addr string, capacity int, window time.Duration) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: time.Second,
	})
	return NewRedisWithClient(client, capacity, window)
}

// NewRedisWithClient uses an existing client.
func NewRedisWithClient(client *redis.Client, capacity int, window time.Duration) *Redis {
	return &Redis{
		client:   client,
		capacity: capacity,
		window:   window,
		prefix:   "paycalc:ratelimit:",
		now:      time.Now,
	}
}

func (r *Redis) Window() time.Duration {
	return r.window
}

func (r *Redis) key(key string) string {
	slot := r.now().UnixNano() / int64(r.window)
	return r.prefix + key + ":" + strconv.FormatInt(slot, 10)
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	if r.capacity <= 0 {
		return false, nil
	}
	k := r.key(key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}
	return incr.Val() <= int64(r.capacity), nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// ClientIP returns the host part of r.RemoteAddr. Behind a trusted proxy,
// chi's RealIP middleware rewrites RemoteAddr first.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429. Backend errors are
// logged and the request is let through.
func Middleware(limiter Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	retryAfter := strconv.Itoa(int(math.Ceil(limiter.Window().Seconds())))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := limiter.Allow(r.Context(), ClientIP(r))
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "too many requests, please try again later",
					"code":  "rate_limited",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
