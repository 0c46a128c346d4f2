package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// idleLimiterTTL drops the bucket of a client that has been quiet this long.
const idleLimiterTTL = 30 * time.Minute

// RateLimit applies a token bucket per API key, or per client IP when the
// request is unauthenticated. A non-positive rps disables limiting.
//
// Each bucket refills at rps tokens per second up to burst; a request takes
// one token or is rejected with 429 and a Retry-After hint. Buckets live in
// a go-cache keyed by client, so a client that stops calling has its bucket
// evicted after idleLimiterTTL instead of growing the map forever. The cache
// is safe on its own, but the get-or-create below must be atomic, hence the
// mutex around it.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}

	var mu sync.Mutex
	limiters := cache.New(idleLimiterTTL, 5*time.Minute)
	retryAfter := strconv.Itoa(max(1, int(1/rps)))

	return func(c *gin.Context) {
		id := "ip:" + c.ClientIP()
		if key, ok := c.Get(ContextKeyAPIKey); ok {
			id = "key:" + key.(string)
		}

		mu.Lock()
		var limiter *rate.Limiter
		if cached, found := limiters.Get(id); found {
			limiter = cached.(*rate.Limiter)
		} else {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
		limiters.Set(id, limiter, cache.DefaultExpiration)
		mu.Unlock()

		if !limiter.Allow() {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}
