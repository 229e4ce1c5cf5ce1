package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns settings sized for a handful of dashboard
// clients polling list endpoints every 30-60 seconds.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// clientLimiter is one client's token bucket. Tokens refill continuously at
// the configured rate up to the burst size.
type clientLimiter struct {
	mu       sync.Mutex
	tokens   float64
	rate     float64
	burst    float64
	lastTake time.Time
}

func newClientLimiter(cfg RateLimitConfig) *clientLimiter {
	return &clientLimiter{
		tokens:   float64(cfg.BurstSize),
		rate:     cfg.RequestsPerSecond,
		burst:    float64(cfg.BurstSize),
		lastTake: time.Now(),
	}
}

// take consumes one token, refilling for the time elapsed since the last
// call first. It reports whether a token was available.
func (l *clientLimiter) take() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.tokens += now.Sub(l.lastTake).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastTake = now

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// retryAfterSeconds estimates how long until the next token is available.
func (l *clientLimiter) retryAfterSeconds() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rate <= 0 {
		return 1
	}
	return int((1-l.tokens)/l.rate) + 1
}

// idleEvictAfter bounds memory for one-off clients: a limiter untouched this
// long has fully refilled anyway and can be rebuilt from scratch.
const idleEvictAfter = 10 * time.Minute

type limiterPool struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	cfg      RateLimitConfig
	lastSeen map[string]time.Time
}

func newLimiterPool(cfg RateLimitConfig) *limiterPool {
	return &limiterPool{
		clients:  make(map[string]*clientLimiter),
		lastSeen: make(map[string]time.Time),
		cfg:      cfg,
	}
}

func (p *limiterPool) get(key string) *clientLimiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for k, seen := range p.lastSeen {
		if now.Sub(seen) > idleEvictAfter {
			delete(p.clients, k)
			delete(p.lastSeen, k)
		}
	}

	l, ok := p.clients[key]
	if !ok {
		l = newClientLimiter(p.cfg)
		p.clients[key] = l
	}
	p.lastSeen[key] = now
	return l
}

// RateLimit returns a per-client-IP rate limiting middleware.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	pool := newLimiterPool(cfg)
	limitHeader := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := pool.get(c.RealIP())
			c.Response().Header().Set("X-RateLimit-Limit", limitHeader)
			if !l.take() {
				c.Response().Header().Set("Retry-After", strconv.Itoa(l.retryAfterSeconds()))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
