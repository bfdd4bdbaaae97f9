package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Suhaibinator/SOnion/pkg/app"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func newApp(t *testing.T, mws ...app.Middleware) http.Handler {
	t.Helper()
	a := app.New(app.Config{Logger: zap.NewNop()})
	if err := a.Use(mws...); err != nil {
		t.Fatalf("Use() returned error: %v", err)
	}
	h, err := a.Handler()
	if err != nil {
		t.Fatalf("Handler() returned error: %v", err)
	}
	return h
}

func TestCollectorCountsRequests(t *testing.T) {
	c, err := New(Config{Namespace: "sonion"})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	h := newApp(t, c.Middleware(), func(ctx *app.Context, next app.Next) error {
		switch ctx.Path() {
		case "/ok":
			ctx.SetBody("hello")
		case "/fail":
			return errors.New("boom")
		case "/teapot":
			return ctx.Throw(http.StatusTeapot, "")
		}
		return nil
	})

	for _, path := range []string{"/ok", "/ok", "/fail", "/teapot", "/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	tests := []struct {
		status   string
		expected float64
	}{
		{"200", 2},
		{"500", 1},
		{"418", 1},
		{"404", 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", tt.status)); got != tt.expected {
			t.Errorf("Expected %v requests with status %s, got %v", tt.expected, tt.status, got)
		}
	}

	if got := testutil.ToFloat64(c.errorsTotal.WithLabelValues("500")); got != 1 {
		t.Errorf("Expected 1 error with status 500, got %v", got)
	}
	if got := testutil.ToFloat64(c.errorsTotal.WithLabelValues("418")); got != 1 {
		t.Errorf("Expected 1 error with status 418, got %v", got)
	}
	if got := testutil.ToFloat64(c.inFlight); got != 0 {
		t.Errorf("Expected no requests in flight, got %v", got)
	}
	if n := testutil.CollectAndCount(c.requestDuration); n != 1 {
		t.Errorf("Expected 1 duration series, got %d", n)
	}
	if n := testutil.CollectAndCount(c.responseSize); n != 1 {
		t.Errorf("Expected 1 response size series, got %d", n)
	}
}

func TestCollectorInFlight(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	var during float64
	h := newApp(t, c.Middleware(), func(ctx *app.Context, next app.Next) error {
		during = testutil.ToFloat64(c.inFlight)
		ctx.SetBody("ok")
		return nil
	})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if during != 1 {
		t.Errorf("Expected 1 request in flight inside the pipeline, got %v", during)
	}
	if got := testutil.ToFloat64(c.inFlight); got != 0 {
		t.Errorf("Expected 0 requests in flight afterwards, got %v", got)
	}
}

func TestCollectorFilter(t *testing.T) {
	c, err := New(Config{Filter: func(ctx *app.Context) bool { return ctx.Path() != "/healthz" }})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	h := newApp(t, c.Middleware(), func(ctx *app.Context, next app.Next) error {
		ctx.SetBody("ok")
		return nil
	})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/work", nil))

	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "200")); got != 1 {
		t.Errorf("Expected only the unfiltered request to be counted, got %v", got)
	}
}

func TestCollectorHandler(t *testing.T) {
	c, err := New(Config{Namespace: "sonion", Subsystem: "http"})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	h := newApp(t, c.Middleware(), func(ctx *app.Context, next app.Next) error {
		ctx.SetBody("ok")
		return nil
	})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, rr.Code)
	}
	for _, name := range []string{
		"sonion_http_requests_total",
		"sonion_http_request_duration_seconds",
		"sonion_http_requests_in_flight",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("Expected exposition to contain %q", name)
		}
	}
}

func TestCollectorRuntimeCollectors(t *testing.T) {
	c, err := New(Config{IncludeRuntime: true})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() returned error: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "go_goroutines" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected Go runtime metrics to be registered")
	}
}

func TestCollectorDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := New(Config{Registry: registry}); err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	var already prometheus.AlreadyRegisteredError
	if _, err := New(Config{Registry: registry}); !errors.As(err, &already) {
		t.Errorf("Expected AlreadyRegisteredError, got %v", err)
	}
}
