package risk

import (
	"context"
	"sync"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiter enforces a per-team, per-second order cap using
// github.com/ulule/limiter's fixed-window counter. A single in-memory
// store is shared across every distinct MaxOrdersPerSecond threshold a
// role might configure; only the comparison threshold varies per
// limiter instance, so counts for the same team stay consistent
// regardless of which role's constraint is checking them.
type RateLimiter struct {
	store limiter.Store

	mu       sync.Mutex
	limiters map[int64]*limiter.Limiter
}

// NewRateLimiter constructs a rate limiter backed by an in-memory
// fixed-window store.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		store:    memory.NewStore(),
		limiters: make(map[int64]*limiter.Limiter),
	}
}

// Allow increments teamID's 1-second counter and reports whether it is
// still within maxPerSecond.
func (r *RateLimiter) Allow(teamID string, maxPerSecond int64) bool {
	l := r.limiterFor(maxPerSecond)
	ctx, err := l.Get(context.Background(), teamID)
	if err != nil {
		// Fail open: a rate-limiter store error should not itself
		// reject legitimate orders.
		return true
	}
	return !ctx.Reached
}

func (r *RateLimiter) limiterFor(maxPerSecond int64) *limiter.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[maxPerSecond]; ok {
		return l
	}
	rate := limiter.Rate{Period: time.Second, Limit: maxPerSecond}
	l := limiter.New(r.store, rate)
	r.limiters[maxPerSecond] = l
	return l
}
