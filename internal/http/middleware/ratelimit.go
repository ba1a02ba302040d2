package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the bucket a request is charged to.
type keyFunc func(*gin.Context) string

// KeyByParamOrIP keys buckets by the client IP and, when present, the named
// route parameter, so one client polling several dashboards gets one bucket
// per dashboard.
func KeyByParamOrIP(param string) keyFunc {
	return func(c *gin.Context) string {
		key := "ip:" + c.ClientIP()
		if v := c.Param(param); v != "" {
			key += "|" + param + ":" + v
		}
		return key
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local, per-key token-bucket limiter. Buckets idle
// for longer than the TTL are swept at most once per TTL.
// It is safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu        sync.Mutex
	visitors  map[string]*visitor
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter returns a limiter refilling rps tokens per second up to
// burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		keyFn:     keyFn,
		visitors:  make(map[string]*visitor),
		ttl:       10 * time.Minute,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= rl.ttl {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// Handler rejects requests over the limit with 429 and Retry-After: 1.
//
//	{"request_id": "...", "code": "too_many_requests", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.getVisitor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": requestID(c),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
