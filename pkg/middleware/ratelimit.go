package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Suhaibinator/SOnion/pkg/app"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// RateLimitStrategy selects how clients are told apart.
type RateLimitStrategy string

const (
	// StrategyIP keys buckets by client IP (see ClientIPMiddleware).
	StrategyIP RateLimitStrategy = "ip"

	// StrategyCustom keys buckets with RateLimitConfig.KeyExtractor.
	StrategyCustom RateLimitStrategy = "custom"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Unique identifier for this rate limit bucket.
	// Middleware sharing a BucketName and limiter share the same budget.
	BucketName string

	// Maximum number of requests allowed in the time window
	Limit int

	// Time window for the rate limit (e.g., 1 minute, 1 hour)
	Window time.Duration

	// Strategy for identifying clients; StrategyIP when empty
	Strategy RateLimitStrategy

	// Custom key extractor function (used when Strategy is StrategyCustom)
	KeyExtractor func(*app.Context) (string, error)
}

// RateLimiter defines the interface for rate limiting algorithms
type RateLimiter interface {
	// Allow checks if a request is allowed based on the key and rate limit config.
	// It also returns the number of remaining requests and the time until reset.
	Allow(key string, limit int, window time.Duration) (bool, int, time.Duration)
}

// FixedWindowLimiter counts requests per key in fixed windows.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	now     func() time.Time
}

type fixedWindow struct {
	start time.Time
	count int
}

// maxTrackedWindows bounds how many keys are kept before expired windows are swept.
const maxTrackedWindows = 10000

// NewFixedWindowLimiter creates an empty FixedWindowLimiter.
func NewFixedWindowLimiter() *FixedWindowLimiter {
	return &FixedWindowLimiter{
		windows: make(map[string]*fixedWindow),
		now:     time.Now,
	}
}

// Allow checks if a request is allowed based on the key and rate limit config.
// A zero or negative limit is treated as 1 and a zero window as one second.
func (l *FixedWindowLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Duration) {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= window {
		if !ok && len(l.windows) >= maxTrackedWindows {
			l.sweep(now, window)
		}
		w = &fixedWindow{start: now}
		l.windows[key] = w
	}

	reset := w.start.Add(window).Sub(now)
	if w.count >= limit {
		return false, 0, reset
	}
	w.count++
	return true, limit - w.count, reset
}

// sweep drops windows that ended. Callers hold l.mu.
func (l *FixedWindowLimiter) sweep(now time.Time, window time.Duration) {
	for k, w := range l.windows {
		if now.Sub(w.start) >= window {
			delete(l.windows, k)
		}
	}
}

// rateLimitKey extracts the bucket key for the request.
func rateLimitKey(c *app.Context, strategy RateLimitStrategy, extractor func(*app.Context) (string, error)) (string, error) {
	if strategy == StrategyCustom && extractor != nil {
		return extractor(c)
	}
	// If no key extractor is provided, fall back to IP
	return ClientIP(c), nil
}

// RateLimit creates a middleware that enforces rate limits. Requests over the
// limit get a 429 with Retry-After and never reach the inner layers.
func RateLimit(config *RateLimitConfig, limiter RateLimiter, logger *zap.Logger) app.Middleware {
	return func(c *app.Context, next app.Next) error {
		// Skip rate limiting if config is nil
		if config == nil {
			return next()
		}

		key, err := rateLimitKey(c, config.Strategy, config.KeyExtractor)
		if err != nil {
			logger.Error("Failed to extract rate limit key",
				zap.Error(err),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
			)
			httpErr := app.NewHTTPError(http.StatusInternalServerError, "")
			httpErr.Err = err
			return httpErr
		}

		// Combine bucket name and key to create a unique identifier
		bucketKey := config.BucketName + ":" + key

		allowed, remaining, reset := limiter.Allow(bucketKey, config.Limit, config.Window)

		c.Set("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

		if !allowed {
			retryAfter := int64(reset.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			c.SetStatus(http.StatusTooManyRequests)
			c.SetBody("Too Many Requests")

			logger.Warn("Rate limit exceeded",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("key", key),
				zap.Int("limit", config.Limit),
			)
			return nil
		}

		return next()
	}
}

// UberRateLimiter paces requests per key using Uber's leaky-bucket ratelimit library.
type UberRateLimiter struct {
	limiters sync.Map // map[string]ratelimit.Limiter
	mu       sync.Mutex
	opts     []ratelimit.Option
}

// NewUberRateLimiter creates a pacing limiter. The options are passed to every
// per-key ratelimit.Limiter it creates.
func NewUberRateLimiter(opts ...ratelimit.Option) *UberRateLimiter {
	return &UberRateLimiter{opts: opts}
}

// getLimiter gets or creates a limiter for the given key and rate
func (u *UberRateLimiter) getLimiter(key string, rate int, per time.Duration) ratelimit.Limiter {
	if limiter, ok := u.limiters.Load(key); ok {
		return limiter.(ratelimit.Limiter)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	// Double-check after acquiring lock
	if limiter, ok := u.limiters.Load(key); ok {
		return limiter.(ratelimit.Limiter)
	}

	opts := append([]ratelimit.Option{ratelimit.Per(per)}, u.opts...)
	limiter := ratelimit.New(rate, opts...)
	u.limiters.Store(key, limiter)
	return limiter
}

// Take blocks until the bucket for key admits another request at rate
// requests per window and returns the time it was admitted.
func (u *UberRateLimiter) Take(key string, rate int, per time.Duration) time.Time {
	if rate <= 0 {
		rate = 1
	}
	if per <= 0 {
		per = time.Second
	}
	return u.getLimiter(key, rate, per).Take()
}

// Throttle creates a middleware that smooths traffic instead of rejecting it:
// each request waits for a slot in its bucket before the inner layers run.
// A request whose client went away while waiting fails with the context's error.
func Throttle(config *RateLimitConfig, limiter *UberRateLimiter, logger *zap.Logger) app.Middleware {
	return func(c *app.Context, next app.Next) error {
		if config == nil {
			return next()
		}

		key, err := rateLimitKey(c, config.Strategy, config.KeyExtractor)
		if err != nil {
			logger.Error("Failed to extract rate limit key",
				zap.Error(err),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
			)
			httpErr := app.NewHTTPError(http.StatusInternalServerError, "")
			httpErr.Err = err
			return httpErr
		}

		start := time.Now()
		limiter.Take(config.BucketName+":"+key, config.Limit, config.Window)
		if waited := time.Since(start); waited > time.Millisecond {
			logger.Debug("Request throttled",
				zap.String("key", key),
				zap.Duration("waited", waited),
			)
		}

		if err := c.Context().Err(); err != nil {
			return err
		}
		return next()
	}
}
