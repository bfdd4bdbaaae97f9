package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Suhaibinator/SOnion/pkg/app"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestFixedWindowLimiter tests counting and window resets
func TestFixedWindowLimiter(t *testing.T) {
	limiter := NewFixedWindowLimiter()
	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		allowed, remaining, _ := limiter.Allow("k", 3, time.Minute)
		if !allowed {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
		if remaining != 2-i {
			t.Errorf("Expected remaining %d, got %d", 2-i, remaining)
		}
	}

	allowed, remaining, reset := limiter.Allow("k", 3, time.Minute)
	if allowed {
		t.Errorf("Expected the fourth request to be denied")
	}
	if remaining != 0 {
		t.Errorf("Expected remaining 0, got %d", remaining)
	}
	if reset != time.Minute {
		t.Errorf("Expected reset %v, got %v", time.Minute, reset)
	}

	if allowed, _, _ := limiter.Allow("other", 3, time.Minute); !allowed {
		t.Errorf("Expected keys to have separate budgets")
	}

	now = now.Add(time.Minute)
	if allowed, _, _ := limiter.Allow("k", 3, time.Minute); !allowed {
		t.Errorf("Expected a new window to reset the budget")
	}
}

func TestFixedWindowLimiterDefaults(t *testing.T) {
	limiter := NewFixedWindowLimiter()

	if allowed, _, reset := limiter.Allow("k", 0, 0); !allowed || reset > time.Second {
		t.Errorf("Expected a zero limit to allow one request per second, got %v %v", allowed, reset)
	}
	if allowed, _, _ := limiter.Allow("k", 0, 0); allowed {
		t.Errorf("Expected the second request to be denied")
	}
}

func TestFixedWindowLimiterSweep(t *testing.T) {
	limiter := NewFixedWindowLimiter()
	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }

	for i := 0; i < maxTrackedWindows; i++ {
		limiter.Allow(strconv.Itoa(i), 1, time.Second)
	}
	now = now.Add(2 * time.Second)
	limiter.Allow("fresh", 1, time.Second)

	if n := len(limiter.windows); n != 1 {
		t.Errorf("Expected expired windows to be swept, %d remain", n)
	}
}

func TestFixedWindowLimiterConcurrent(t *testing.T) {
	limiter := NewFixedWindowLimiter()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _, _ := limiter.Allow("shared", 10, time.Hour); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 10 {
		t.Errorf("Expected exactly 10 allowed requests, got %d", allowedCount)
	}
}

// TestRateLimit tests the RateLimit middleware
func TestRateLimit(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	config := &RateLimitConfig{BucketName: "api", Limit: 2, Window: time.Minute, Strategy: StrategyIP}
	a := app.New(app.Config{Logger: zap.NewNop()})
	_ = a.Use(ClientIPMiddleware(nil), RateLimit(config, NewFixedWindowLimiter(), zap.New(core)), respondWith("ok"))
	h, _ := a.Handler()

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		rr := do("203.0.113.1")
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected request %d to pass, got %d", i+1, rr.Code)
		}
		if got := rr.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(1-i) {
			t.Errorf("Expected X-RateLimit-Remaining %d, got %q", 1-i, got)
		}
		if got := rr.Header().Get("X-RateLimit-Limit"); got != "2" {
			t.Errorf("Expected X-RateLimit-Limit %q, got %q", "2", got)
		}
	}

	rr := do("203.0.113.1")
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status code %d, got %d", http.StatusTooManyRequests, rr.Code)
	}
	if rr.Body.String() != "Too Many Requests" {
		t.Errorf("Expected body %q, got %q", "Too Many Requests", rr.Body.String())
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Errorf("Expected a Retry-After header")
	}
	if logs.FilterMessage("Rate limit exceeded").Len() != 1 {
		t.Errorf("Expected the rejection to be logged")
	}

	if rr := do("203.0.113.2"); rr.Code != http.StatusOK {
		t.Errorf("Expected another client to pass, got %d", rr.Code)
	}
}

func TestRateLimitCustomKey(t *testing.T) {
	config := &RateLimitConfig{
		BucketName: "tenant",
		Limit:      1,
		Window:     time.Minute,
		Strategy:   StrategyCustom,
		KeyExtractor: func(c *app.Context) (string, error) {
			tenant := c.Get("X-Tenant")
			if tenant == "" {
				return "", errors.New("missing tenant")
			}
			return tenant, nil
		},
	}
	a := app.New(app.Config{Logger: zap.NewNop()})
	_ = a.Use(RateLimit(config, NewFixedWindowLimiter(), zap.NewNop()), respondWith("ok"))
	h, _ := a.Handler()

	do := func(tenant string) int {
		req := httptest.NewRequest("GET", "/", nil)
		if tenant != "" {
			req.Header.Set("X-Tenant", tenant)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := do("a"); code != http.StatusOK {
		t.Errorf("Expected first request for tenant a to pass, got %d", code)
	}
	if code := do("a"); code != http.StatusTooManyRequests {
		t.Errorf("Expected second request for tenant a to be limited, got %d", code)
	}
	if code := do("b"); code != http.StatusOK {
		t.Errorf("Expected tenant b to pass, got %d", code)
	}
	if code := do(""); code != http.StatusInternalServerError {
		t.Errorf("Expected a key extraction failure to yield %d, got %d", http.StatusInternalServerError, code)
	}
}

func TestRateLimitNilConfig(t *testing.T) {
	rr := serve(t, httptest.NewRequest("GET", "/", nil), RateLimit(nil, NewFixedWindowLimiter(), zap.NewNop()), respondWith("ok"))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, rr.Code)
	}
}

// TestUberRateLimiter tests that limiters are created once per key
func TestUberRateLimiter(t *testing.T) {
	limiter := NewUberRateLimiter(ratelimit.WithoutSlack)

	first := limiter.getLimiter("k", 10, time.Second)
	if again := limiter.getLimiter("k", 10, time.Second); again != first {
		t.Errorf("Expected the same limiter for the same key")
	}
	if other := limiter.getLimiter("other", 10, time.Second); other == first {
		t.Errorf("Expected a separate limiter per key")
	}
}

// TestThrottle tests that Throttle spaces requests out instead of rejecting them
func TestThrottle(t *testing.T) {
	config := &RateLimitConfig{BucketName: "smooth", Limit: 50, Window: time.Second}
	a := app.New(app.Config{Logger: zap.NewNop()})
	_ = a.Use(Throttle(config, NewUberRateLimiter(ratelimit.WithoutSlack), zap.NewNop()), respondWith("ok"))
	h, _ := a.Handler()

	start := time.Now()
	for i := 0; i < 4; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected throttled request %d to pass, got %d", i+1, rr.Code)
		}
	}

	// 50/s means one slot every 20ms; the first request is immediate.
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Expected requests to be paced, finished in %v", elapsed)
	}
}

func TestThrottleKeyError(t *testing.T) {
	config := &RateLimitConfig{
		Limit:        10,
		Window:       time.Second,
		Strategy:     StrategyCustom,
		KeyExtractor: func(c *app.Context) (string, error) { return "", fmt.Errorf("no key") },
	}
	rr := serve(t, httptest.NewRequest("GET", "/", nil), Throttle(config, NewUberRateLimiter(), zap.NewNop()), respondWith("ok"))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status code %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}
