// Package middleware provides a collection of onion middleware for SOnion applications.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Suhaibinator/SOnion/pkg/app"
	"github.com/Suhaibinator/SOnion/pkg/compose"
	"go.uber.org/zap"
)

// Recovery is a middleware that turns panics raised further down the onion
// into a 500 response. Errors returned normally pass through untouched.
func Recovery(logger *zap.Logger) app.Middleware {
	return func(c *app.Context, next app.Next) error {
		err := next()

		var panicErr *compose.PanicError
		if !errors.As(err, &panicErr) {
			return err
		}

		// Log the panic
		logger.Error("Panic recovered",
			zap.Any("panic", panicErr.Value),
			zap.String("stack", string(panicErr.Stack)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
		)

		if c.HeadersSent() {
			return nil
		}
		c.SetStatus(http.StatusInternalServerError)
		c.SetBody("Internal Server Error")
		return nil
	}
}

// Logging is a middleware that logs requests once the inner layers are done.
// When an inner layer failed, the logged status is the one the error response
// will carry.
func Logging(logger *zap.Logger) app.Middleware {
	return func(c *app.Context, next app.Next) error {
		start := time.Now()

		err := next()

		duration := time.Since(start)
		status := c.Status()
		if err != nil {
			status, _ = app.ErrorStatus(err)
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		}
		if traceID := GetTraceID(c); traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}

		// Use appropriate log level based on status code and duration
		switch {
		case status >= 500:
			fields = append(fields, zap.String("remote_addr", c.Req.RemoteAddr))
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			logger.Error("Server error", fields...)
		case status >= 400:
			logger.Warn("Client error", fields...)
		case duration > 1*time.Second:
			logger.Warn("Slow request", fields...)
		default:
			// Normal requests at Debug level to avoid log spam
			logger.Debug("Request", fields...)
		}

		return err
	}
}

// MaxBodySize is a middleware that limits the size of the request body.
// A body read that runs past the limit fails the request with 413.
func MaxBodySize(maxSize int64) app.Middleware {
	return func(c *app.Context, next app.Next) error {
		if c.Req.Body != nil {
			c.Req.Body = http.MaxBytesReader(c.Res, c.Req.Body, maxSize)
		}

		err := next()

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpErr := app.NewHTTPError(http.StatusRequestEntityTooLarge, "")
			httpErr.Err = err
			return httpErr
		}
		return err
	}
}

// Timeout is a middleware that puts a deadline on the request context.
// Cancellation is cooperative: inner layers observe c.Context() and return
// when it is done. An inner error after the deadline passed becomes a 408.
func Timeout(timeout time.Duration) app.Middleware {
	return func(c *app.Context, next app.Next) error {
		parent := c.Req
		ctx, cancel := context.WithTimeout(parent.Context(), timeout)
		defer cancel()

		c.SetRequest(parent.WithContext(ctx))

		err := next()
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Context().Err() == nil {
			httpErr := app.NewHTTPError(http.StatusRequestTimeout, "Request Timeout")
			httpErr.Err = err
			return httpErr
		}
		return err
	}
}

// CORSConfig defines the headers the CORS middleware sets.
type CORSConfig struct {
	Origins          []string
	Methods          []string
	Headers          []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// CORS is a middleware that adds CORS headers to the response and answers
// preflight requests itself.
func CORS(config CORSConfig) app.Middleware {
	origins := strings.Join(config.Origins, ", ")
	methods := strings.Join(config.Methods, ", ")
	headers := strings.Join(config.Headers, ", ")

	return func(c *app.Context, next app.Next) error {
		// Set CORS headers
		if origins != "" {
			c.Set("Access-Control-Allow-Origin", origins)
		}
		if methods != "" {
			c.Set("Access-Control-Allow-Methods", methods)
		}
		if headers != "" {
			c.Set("Access-Control-Allow-Headers", headers)
		}
		if config.AllowCredentials {
			c.Set("Access-Control-Allow-Credentials", "true")
		}

		// Handle preflight requests
		if c.Method() == http.MethodOptions {
			if config.MaxAge > 0 {
				c.Set("Access-Control-Max-Age", strconv.Itoa(int(config.MaxAge.Seconds())))
			}
			c.SetStatus(http.StatusNoContent)
			return nil
		}

		return next()
	}
}
