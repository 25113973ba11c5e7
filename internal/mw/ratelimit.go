package mw

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// KeyedRateLimiter stores a token bucket per client key. Idle buckets are evicted after ttl.
type KeyedRateLimiter struct {
	limiters *cache.Cache
	ttl      time.Duration
	r        rate.Limit
	b        int
}

// NewKeyedRateLimiter creates a new KeyedRateLimiter.
func NewKeyedRateLimiter(r rate.Limit, b int, ttl time.Duration) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: cache.New(ttl, 2*ttl),
		ttl:      ttl,
		r:        r,
		b:        b,
	}
}

// GetLimiter returns the rate limiter for key, creating it on first use.
func (k *KeyedRateLimiter) GetLimiter(key string) *rate.Limiter {
	if v, found := k.limiters.Get(key); found {
		k.limiters.Set(key, v, k.ttl)
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(k.r, k.b)
	if err := k.limiters.Add(key, limiter, k.ttl); err != nil {
		// Lost the race; use the bucket the other request stored.
		if v, found := k.limiters.Get(key); found {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewKeyedRateLimiter(r, b, 10*time.Minute)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			tooManyRequests(c, time.Second)
			return
		}
		c.Next()
	}
}

// FixedWindowLimiter allows at most limit events per key in each aligned window.
type FixedWindowLimiter struct {
	counts *cache.Cache
	limit  int
	window time.Duration
	clock  func() time.Time
}

// NewFixedWindowLimiter creates a limiter whose counters expire with their window.
func NewFixedWindowLimiter(limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		counts: cache.New(window, 2*window),
		limit:  limit,
		window: window,
		clock:  time.Now,
	}
}

// Allow counts one event for key. When denied it returns the time until the window resets.
func (l *FixedWindowLimiter) Allow(key string) (bool, time.Duration) {
	now := l.clock()
	start := now.Truncate(l.window)
	counter := key + "|" + strconv.FormatInt(start.UnixNano(), 10)

	if err := l.counts.Add(counter, 1, l.window); err == nil {
		return true, 0
	}
	n, err := l.counts.IncrementInt(counter, 1)
	if err != nil {
		// Counter expired between Add and IncrementInt.
		l.counts.Set(counter, 1, l.window)
		return true, 0
	}
	if n <= l.limit {
		return true, 0
	}
	return false, start.Add(l.window).Sub(now)
}

// HoldRateLimit limits hold requests per requester identity, falling back to the client IP.
func HoldRateLimit(l *FixedWindowLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := RequesterIdentity(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if ok, retry := l.Allow(key); !ok {
			tooManyRequests(c, retry)
			return
		}
		c.Next()
	}
}

func tooManyRequests(c *gin.Context, retry time.Duration) {
	seconds := int(math.Ceil(retry.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "code": "RATE_LIMITED"})
}
