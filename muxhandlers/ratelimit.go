package muxhandlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vitalvas/flacon/mux"
)

// ErrInvalidRate is returned when RateLimitConfig.RPS is not greater than
// zero.
var ErrInvalidRate = errors.New("rate limit: requests per second must be greater than zero")

// Rate limiter defaults.
const (
	DefaultRateLimitMaxKeys = 10000
	DefaultRateLimitIdleTTL = 10 * time.Minute
)

// RateLimitConfig configures the Rate Limit middleware behaviour.
type RateLimitConfig struct {
	// RPS is the sustained number of requests per second. Required.
	RPS float64

	// Burst is the number of requests allowed at once. Defaults to RPS
	// rounded up, and at least 1.
	Burst int

	// KeyFunc selects the bucket a request is counted against, e.g. the
	// authenticated user or an API key header. When nil, one bucket is
	// shared by all requests. Requests with an empty key share the global
	// bucket.
	KeyFunc func(c *mux.Context) string

	// MaxKeys bounds the number of per-key buckets. When a new key arrives
	// at the bound, buckets idle for longer than IdleTTL are dropped, and
	// the least recently seen bucket too if none was idle. Defaults to
	// DefaultRateLimitMaxKeys.
	MaxKeys int

	// IdleTTL is how long an unused per-key bucket is kept once MaxKeys is
	// reached. Defaults to DefaultRateLimitIdleTTL.
	IdleTTL time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter holds the global bucket and the per-key buckets.
type rateLimiter struct {
	limit   rate.Limit
	burst   int
	maxKeys int
	idleTTL time.Duration
	global  *rate.Limiter

	mu   sync.Mutex
	keys map[string]*limiterEntry
}

func (rl *rateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	if key == "" {
		return rl.global
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if e, ok := rl.keys[key]; ok {
		e.lastSeen = now
		return e.limiter
	}

	if len(rl.keys) >= rl.maxKeys {
		rl.evict(now)
	}

	e := &limiterEntry{
		limiter:  rate.NewLimiter(rl.limit, rl.burst),
		lastSeen: now,
	}
	rl.keys[key] = e

	return e.limiter
}

// evict drops the buckets idle for longer than idleTTL. When none is idle,
// the least recently seen bucket goes, so the map never exceeds maxKeys.
// Callers hold rl.mu.
func (rl *rateLimiter) evict(now time.Time) {
	var oldest string
	var oldestSeen time.Time

	for k, e := range rl.keys {
		if now.Sub(e.lastSeen) > rl.idleTTL {
			delete(rl.keys, k)
			continue
		}
		if oldest == "" || e.lastSeen.Before(oldestSeen) {
			oldest, oldestSeen = k, e.lastSeen
		}
	}

	if len(rl.keys) >= rl.maxKeys {
		delete(rl.keys, oldest)
	}
}

// RateLimitMiddleware returns a middleware that limits request throughput
// with token buckets. Requests over the limit are answered with 429 Too
// Many Requests per RFC 6585 Section 4, carrying a Retry-After header with
// the number of seconds until a token is available.
//
// It returns ErrInvalidRate if RPS is not greater than zero.
func RateLimitMiddleware(cfg RateLimitConfig) (mux.MiddlewareFunc, error) {
	if cfg.RPS <= 0 || math.IsInf(cfg.RPS, 0) || math.IsNaN(cfg.RPS) {
		return nil, ErrInvalidRate
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = max(1, int(math.Ceil(cfg.RPS)))
	}

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultRateLimitMaxKeys
	}

	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = DefaultRateLimitIdleTTL
	}

	rl := &rateLimiter{
		limit:   rate.Limit(cfg.RPS),
		burst:   burst,
		maxKeys: maxKeys,
		idleTTL: idleTTL,
		global:  rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		keys:    make(map[string]*limiterEntry),
	}

	keyFunc := cfg.KeyFunc

	return func(next mux.HandlerFunc) mux.HandlerFunc {
		return func(c *mux.Context) (any, error) {
			key := ""
			if keyFunc != nil {
				key = keyFunc(c)
			}

			now := time.Now()
			res := rl.limiterFor(key, now).ReserveN(now, 1)

			if delay := res.DelayFrom(now); delay > 0 {
				res.CancelAt(now)

				retryAfter := int(math.Ceil(delay.Seconds()))
				return nil, mux.Abort(http.StatusTooManyRequests).
					WithHeader("Retry-After", strconv.Itoa(retryAfter))
			}

			return next(c)
		}
	}, nil
}
