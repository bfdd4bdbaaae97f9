package main

import (
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/Suhaibinator/SOnion/pkg/app"
	"github.com/Suhaibinator/SOnion/pkg/config"
	"github.com/Suhaibinator/SOnion/pkg/metrics"
	"github.com/Suhaibinator/SOnion/pkg/middleware"
)

const healthPath = "/healthz"

// newLogger builds a zap logger from the log section of the configuration.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// newServer builds the App and the http.Server that serves it. The metrics
// endpoint is mounted beside the App so scrapes never run through the onion.
func newServer(cfg *config.Config, logger *zap.Logger) (*http.Server, *app.App, error) {
	a := app.New(app.Config{
		Logger:            logger,
		Silent:            cfg.App.Silent,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	})

	collector, err := useMiddleware(a, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	h, err := a.Handler()
	if err != nil {
		return nil, nil, fmt.Errorf("composing middleware: %w", err)
	}

	mux := http.NewServeMux()
	if collector != nil {
		mux.Handle(cfg.Metrics.Path, collector.Handler())
	}
	mux.Handle("/", h)

	var handler http.Handler = mux
	if cfg.Server.H2C {
		handler = h2c.NewHandler(mux, &http2.Server{})
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	return srv, a, nil
}

// useMiddleware registers the configured onion, outermost layer first.
func useMiddleware(a *app.App, cfg *config.Config, logger *zap.Logger) (*metrics.Collector, error) {
	mws := []app.Middleware{
		middleware.TraceID(),
		middleware.Logging(logger),
		middleware.Recovery(logger),
		middleware.ClientIPMiddleware(&middleware.IPConfig{
			Source:       middleware.IPSourceType(cfg.App.ClientIPSource),
			CustomHeader: cfg.App.ClientIPHeader,
			TrustProxy:   cfg.App.TrustProxy,
		}),
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		var err error
		collector, err = metrics.New(metrics.Config{
			Namespace:      cfg.Metrics.Namespace,
			Subsystem:      "http",
			IncludeRuntime: cfg.Metrics.IncludeRuntime,
			Filter: func(c *app.Context) bool {
				return c.Path() != healthPath
			},
		})
		if err != nil {
			return nil, fmt.Errorf("creating metrics collector: %w", err)
		}
		mws = append(mws, collector.Middleware())
	}

	if cfg.CORS.Enabled {
		mws = append(mws, middleware.CORS(middleware.CORSConfig{
			Origins: cfg.CORS.Origins,
			Methods: cfg.CORS.Methods,
			Headers: cfg.CORS.Headers,
			MaxAge:  cfg.CORS.MaxAge,
		}))
	}

	if cfg.RateLimit.Enabled {
		rl := &middleware.RateLimitConfig{
			BucketName: "global",
			Limit:      cfg.RateLimit.Limit,
			Window:     cfg.RateLimit.Window,
			Strategy:   middleware.StrategyIP,
		}
		if cfg.RateLimit.Mode == "throttle" {
			mws = append(mws, middleware.Throttle(rl, middleware.NewUberRateLimiter(), logger))
		} else {
			mws = append(mws, middleware.RateLimit(rl, middleware.NewFixedWindowLimiter(), logger))
		}
	}

	if cfg.Server.RequestTimeout > 0 {
		mws = append(mws, middleware.Timeout(cfg.Server.RequestTimeout))
	}
	if cfg.Server.MaxBodyBytes > 0 {
		mws = append(mws, middleware.MaxBodySize(cfg.Server.MaxBodyBytes))
	}

	// Health checks stay reachable without credentials.
	mws = append(mws, health)

	tokens := make(map[string]bool, len(cfg.Auth.Tokens))
	for _, token := range cfg.Auth.Tokens {
		tokens[token] = true
	}
	switch cfg.Auth.Type {
	case "bearer":
		mws = append(mws, middleware.NewBearerTokenMiddleware(tokens, logger))
	case "apikey":
		mws = append(mws, middleware.NewAPIKeyMiddleware(tokens, cfg.Auth.Header, "", logger))
	}

	mws = append(mws, echo, hello(cfg.App.Greeting))

	if err := a.Use(mws...); err != nil {
		return nil, err
	}
	return collector, nil
}

func health(c *app.Context, next app.Next) error {
	if c.Path() != healthPath {
		return next()
	}
	c.SetBody(map[string]string{"status": "ok"})
	return nil
}

// echo answers POST /echo with the request body.
func echo(c *app.Context, next app.Next) error {
	if c.Path() != "/echo" || c.Method() != http.MethodPost {
		return next()
	}
	body, err := io.ReadAll(c.Req.Body)
	if err != nil {
		return err
	}
	c.SetBody(body)
	if ct := c.Get("Content-Type"); ct != "" {
		c.SetType(ct)
	}
	return nil
}

// hello answers GET / with the configured greeting. Anything else falls
// through to the default 404.
func hello(greeting string) app.Middleware {
	return func(c *app.Context, next app.Next) error {
		if c.Path() != "/" || (c.Method() != http.MethodGet && c.Method() != http.MethodHead) {
			return next()
		}
		c.Set("X-Protocol", fmt.Sprintf("HTTP/%d", c.ProtoMajor()))
		c.SetBody(greeting)
		return nil
	}
}
