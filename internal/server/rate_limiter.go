package server

import (
	"sync"
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	obsctx "github.com/WordpressDesigne/mpesaprompt/internal/observability/context"
	"github.com/gin-gonic/gin"
)

// rateLimiter is a fixed-window counter per key.
type rateLimiter struct {
	limit  int
	window time.Duration
	clock  clock.Clock
	mu     sync.Mutex
	items  map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	windowStart time.Time
	count       int
}

func newRateLimiter(limit int, window time.Duration, clk clock.Clock) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		clock:  clk,
		items:  make(map[string]*rateLimitEntry),
	}
}

func (r *rateLimiter) Allow(key string) bool {
	if key == "" {
		return false
	}

	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, entry := range r.items {
		if now.Sub(entry.windowStart) > r.window {
			delete(r.items, k)
		}
	}

	entry := r.items[key]
	if entry == nil {
		entry = &rateLimitEntry{windowStart: now}
		r.items[key] = entry
	}

	if entry.count >= r.limit {
		return false
	}

	entry.count++
	return true
}

// RateLimit throttles per authenticated business.
func (s *Server) RateLimit(limiter *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(obsctx.BusinessIDFromGin(c)) {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
