package config

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Validate checks the configuration for required fields and valid values.
// Every problem is reported, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server.addr is required"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be > 0, got %v", c.Server.ShutdownTimeout))
	}
	if c.Server.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.request_timeout must be >= 0, got %v", c.Server.RequestTimeout))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be >= 0, got %d", c.Server.MaxBodyBytes))
	}

	switch c.App.ClientIPSource {
	case "remote_addr", "x_forwarded_for", "x_real_ip":
	case "custom_header":
		if c.App.ClientIPHeader == "" {
			errs = append(errs, fmt.Errorf("app.client_ip_header is required when app.client_ip_source is \"custom_header\""))
		}
	default:
		errs = append(errs, fmt.Errorf("app.client_ip_source must be \"remote_addr\", \"x_forwarded_for\", \"x_real_ip\" or \"custom_header\", got %q", c.App.ClientIPSource))
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path must start with \"/\", got %q", c.Metrics.Path))
	}

	if c.RateLimit.Enabled {
		switch c.RateLimit.Mode {
		case "reject", "throttle":
		default:
			errs = append(errs, fmt.Errorf("rate_limit.mode must be \"reject\" or \"throttle\", got %q", c.RateLimit.Mode))
		}
		if c.RateLimit.Limit <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.limit must be > 0, got %d", c.RateLimit.Limit))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.window must be > 0, got %v", c.RateLimit.Window))
		}
	}

	if c.CORS.Enabled && len(c.CORS.Origins) == 0 {
		errs = append(errs, fmt.Errorf("cors.origins is required when cors is enabled"))
	}

	switch c.Auth.Type {
	case "none":
	case "bearer", "apikey":
		if len(c.Auth.Tokens) == 0 && c.Auth.TokensFile == "" {
			errs = append(errs, fmt.Errorf("auth.tokens or auth.tokens_file is required when auth.type is %q", c.Auth.Type))
		}
		if c.Auth.Type == "apikey" && c.Auth.Header == "" {
			errs = append(errs, fmt.Errorf("auth.header is required when auth.type is \"apikey\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"bearer\" or \"apikey\", got %q", c.Auth.Type))
	}

	return errors.Join(errs...)
}
