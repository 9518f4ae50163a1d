// Package middleware provides gin middleware for the ops API.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/gamecafe/panelsync/internal/httputil"
)

const (
	// maxBuckets bounds the number of tracked client IPs.
	maxBuckets = 10_000

	// bucketTTL drops buckets for clients that have gone quiet.
	bucketTTL = 10 * time.Minute
)

// RateLimiter implements a token bucket rate limiter per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, *bucket]
	rate    int
	burst   int
	now     func() time.Time
}

type bucket struct {
	tokens   int
	lastFill time.Time
}

func (rl *RateLimiter) allow(b *bucket) bool {
	now := rl.now()
	refill := int(now.Sub(b.lastFill).Seconds() * float64(rl.rate))

	if refill > 0 {
		b.tokens = min(b.tokens+refill, rl.burst)
		b.lastFill = now
	}

	if b.tokens > 0 {
		b.tokens--

		return true
	}

	return false
}

// NewRateLimiter creates a RateLimiter with the given requests per second and
// burst size. Idle buckets expire after bucketTTL; when the table is full the
// least recently seen client is evicted.
func NewRateLimiter(ratePerSec, burst int) *RateLimiter {
	return &RateLimiter{
		buckets: expirable.NewLRU[string, *bucket](maxBuckets, nil, bucketTTL),
		rate:    ratePerSec,
		burst:   burst,
		now:     time.Now,
	}
}

// Handler returns gin middleware that applies rate limiting per client IP.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// SetTrustedProxies(nil) in the router keeps ClientIP from honouring
		// X-Forwarded-For.
		ip := c.ClientIP()

		rl.mu.Lock()
		b, ok := rl.buckets.Get(ip)
		if !ok {
			b = &bucket{tokens: rl.burst, lastFill: rl.now()}
		}

		allowed := rl.allow(b)
		rl.buckets.Add(ip, b)
		rl.mu.Unlock()

		if !allowed {
			httputil.RespondError(c, http.StatusTooManyRequests, httputil.CodeRateLimited, "rate limit exceeded")

			return
		}

		c.Next()
	}
}
