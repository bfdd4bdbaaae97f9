// Package app provides the SOnion application: middleware registration, the
// per-request Context, and the dispatcher that runs the composed pipeline and
// finalizes the HTTP response from the resulting Context state.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Suhaibinator/SOnion/pkg/codec"
	"github.com/Suhaibinator/SOnion/pkg/common"
	"github.com/Suhaibinator/SOnion/pkg/compose"
	"go.uber.org/zap"
)

// Middleware is one layer of the application's onion.
type Middleware = common.Middleware[*Context]

// Next invokes the inner layers of the onion.
type Next = common.Next

// ErrorHandler receives every error reported by a request's error hook.
//
// A *TransportError is reported from the goroutine that saw the client go
// away, while the pipeline may still be running and changing c. For those
// errors a handler must only read c.OriginalMethod and c.OriginalURL, which
// never change.
type ErrorHandler func(err error, c *Context)

// Config defines the global configuration for an App.
type Config struct {
	Logger            *zap.Logger   // Logger for all application operations
	Silent            bool          // Suppress the default error logging
	ErrorHandler      ErrorHandler  // Replaces the default error logging when set
	Codec             codec.Codec   // Serializer for structured bodies; chosen per value when nil
	ReadHeaderTimeout time.Duration // Used by Listen for the http.Server it creates
}

// App holds the registered middleware and the template every per-request
// Context is copied from.
type App struct {
	config     Config
	logger     *zap.Logger
	mu         sync.Mutex
	middleware []Middleware
	context    Context
	handler    http.Handler

	inFlight atomic.Int64
	shutdown atomic.Bool
}

// shutdownPollInterval caps the wait between in-flight checks in Shutdown.
const shutdownPollInterval = 100 * time.Millisecond

// New creates a new App with the given configuration.
func New(config Config) *App {
	// Set up the logger
	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			// Fallback to a no-op logger if we can't create a production logger
			logger = zap.NewNop()
		}
	}

	a := &App{
		config: config,
		logger: logger,
	}
	a.context = Context{
		App:     a,
		Respond: true,
	}
	return a
}

// Logger returns the App's logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Use appends middleware to the pipeline. Registration order is execution order.
// A nil middleware fails with a *compose.TypeError and nothing is registered.
func (a *App) Use(middlewares ...Middleware) error {
	for _, mw := range middlewares {
		if mw == nil {
			return compose.TypeErrorf("middleware must be a function")
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.middleware = append(a.middleware, middlewares...)
	return nil
}

// Middleware returns a copy of the registered middleware.
func (a *App) Middleware() []Middleware {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Middleware(nil), a.middleware...)
}

// Handler composes the currently registered middleware and returns the
// request callback. Middleware registered afterwards is not part of the
// returned handler.
func (a *App) Handler() (http.Handler, error) {
	pipeline, err := compose.Compose(a.Middleware())
	if err != nil {
		return nil, err
	}

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// Count the request before checking the flag, so Shutdown either
		// sees it in flight or the request sees the flag.
		a.inFlight.Add(1)
		defer a.inFlight.Add(-1)

		if a.shutdown.Load() {
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}

		c := a.createContext(req, w)
		a.handleRequest(c, pipeline)
	}), nil
}

// ServeHTTP implements http.Handler. The pipeline is composed on the first request.
func (a *App) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()

	if h == nil {
		var err error
		h, err = a.Handler()
		if err != nil {
			a.logger.Error("Failed to compose middleware", zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		a.mu.Lock()
		if a.handler == nil {
			a.handler = h
		}
		h = a.handler
		a.mu.Unlock()
	}

	h.ServeHTTP(w, req)
}

// Listen starts an HTTP server for the App on addr and returns it once the
// listener is bound.
func (a *App) Listen(addr string) (*http.Server, error) {
	h, err := a.Handler()
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           h,
		ReadHeaderTimeout: a.config.ReadHeaderTimeout,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Server stopped", zap.Error(err), zap.String("addr", srv.Addr))
		}
	}()
	return srv, nil
}

// Shutdown gracefully shuts down the App.
// It stops accepting new requests and waits for existing requests to complete.
// If the context is canceled before all requests complete, it returns the context's error.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdown.Store(true)

	interval := time.Millisecond
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		if a.inFlight.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = min(interval*2, shutdownPollInterval)
			timer.Reset(interval)
		}
	}
}

// handleRequest runs the pipeline for one request and finalizes the response.
func (a *App) handleRequest(c *Context, pipeline compose.Pipeline[*Context]) {
	c.rw.setStatus(http.StatusNotFound)

	var finalized atomic.Bool
	reqCtx := c.Req.Context()
	stop := context.AfterFunc(reqCtx, func() {
		if finalized.Load() {
			return
		}
		c.rw.markClosed()
		c.OnError(&TransportError{Err: context.Cause(reqCtx)})
	})
	defer func() {
		finalized.Store(true)
		stop()
	}()

	if err := pipeline(c, nil); err != nil {
		c.OnError(err)
		return
	}
	respond(c)
}

// reportError hands err to the configured ErrorHandler or the default one.
func (a *App) reportError(err error, c *Context) {
	if a.config.ErrorHandler != nil {
		a.config.ErrorHandler(err, c)
		return
	}
	a.onError(err, c)
}

// onError is the default error handler: it logs the error with its trace
// unless the error is a 404, is exposed to clients, or the App is silent.
func (a *App) onError(err error, c *Context) {
	if status, expose := ErrorStatus(err); status == http.StatusNotFound || expose {
		return
	}
	if a.config.Silent {
		return
	}

	a.logger.Error("Unhandled error",
		zap.String("error", err.Error()),
		zap.String("method", c.originalMethod),
		zap.String("url", c.originalURL),
		zap.String("trace", indent(fmt.Sprintf("%+v", err))),
	)
}

// marshal serializes a structured body with the configured codec.
func (a *App) marshal(v any) ([]byte, string, error) {
	if a.config.Codec != nil {
		b, err := a.config.Codec.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return b, a.config.Codec.ContentType(), nil
	}
	return codec.Marshal(v)
}

// indent prefixes every line of s with two spaces.
func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
