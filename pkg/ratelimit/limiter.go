package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"reelscout/pkg/config"
	"reelscout/pkg/logger"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether a request may proceed now, consuming a token if so
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
	// Pause holds back all requests for d, e.g. after a provider 429
	Pause(d time.Duration)
	// Reset restores a full bucket and clears any pause
	Reset()
}

// TokenBucket is a Limiter backed by golang.org/x/time/rate. It is safe for
// concurrent use by the ingest workers.
type TokenBucket struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	limit    rate.Limit
	burst    int
	resumeAt time.Time
	name     string
}

// NewTokenBucket allows perMinute requests per minute with the given burst
func NewTokenBucket(perMinute, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &TokenBucket{
		limiter: rate.NewLimiter(limit, burst),
		limit:   limit,
		burst:   burst,
		name:    "provider",
	}
}

// FromConfig builds the provider limiter from the rate_limit section
func FromConfig(c config.RateLimitConfig) *TokenBucket {
	return NewTokenBucket(c.RequestsPerMinute, c.BurstSize)
}

// Named sets the endpoint name used in rate limit logs
func (tb *TokenBucket) Named(name string) *TokenBucket {
	tb.name = name
	return tb
}

func (tb *TokenBucket) Allow() bool {
	if tb.pausedFor() > 0 {
		return false
	}
	return tb.limiter.Allow()
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	if d := tb.pausedFor(); d > 0 {
		logger.LogRateLimit(tb.name, d)
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return tb.limiter.Wait(ctx)
}

func (tb *TokenBucket) Pause(d time.Duration) {
	if d <= 0 {
		return
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if until := time.Now().Add(d); until.After(tb.resumeAt) {
		tb.resumeAt = until
	}
}

func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.resumeAt = time.Time{}
	tb.limiter = rate.NewLimiter(tb.limit, tb.burst)
}

func (tb *TokenBucket) pausedFor() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return time.Until(tb.resumeAt)
}

// Unlimited never blocks; used when rate limiting is handled elsewhere
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Pause(time.Duration)            {}
func (Unlimited) Reset()                         {}
