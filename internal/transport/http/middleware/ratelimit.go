package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"docrag/internal/transport/http/response"
)

const (
	limiterIdleTTL     = 10 * time.Minute
	limiterSweepEvery  = 1 * time.Minute
	rateLimitedMessage = "Rate limits exceeded, please try again later."
	headerRetryAfter   = "Retry-After"
)

type clientLimiter struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client. Clients are keyed by the
// authenticated user when there is one and by remote IP otherwise.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow spends one token for key.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterSweepEvery {
		for k, cl := range l.clients {
			if now.Sub(cl.lastSeen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	cl, ok := l.clients[key]
	if !ok {
		cl = &clientLimiter{bucket: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.bucket.AllowN(now, 1)
}

// RateLimit rejects requests over the client's budget with 429. A
// non-positive rate disables it.
func RateLimit(l *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.limit <= 0 {
			c.Next()
			return
		}
		key := "ip:" + c.ClientIP()
		if userID, ok := UserID(c); ok {
			key = fmt.Sprintf("user:%d", userID)
		}
		if !l.Allow(key) {
			c.Header(headerRetryAfter, "1")
			response.Error(c, http.StatusTooManyRequests, response.CodeRateLimited, rateLimitedMessage)
			c.Abort()
			return
		}
		c.Next()
	}
}
