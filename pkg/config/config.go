// Package config provides configuration for the onion-server binary.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (explicit path, SONION_CONFIG, ./sonion.yaml)
//  3. Environment variable overrides (SONION_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for onion-server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	App       AppConfig       `yaml:"app"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
	Auth      AuthConfig      `yaml:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`                // default: ":8080"
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"` // default: 10s
	ReadTimeout       time.Duration `yaml:"read_timeout"`        // default: 30s
	WriteTimeout      time.Duration `yaml:"write_timeout"`       // default: 60s
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`    // default: 15s
	RequestTimeout    time.Duration `yaml:"request_timeout"`     // 0 disables the Timeout middleware
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`      // 0 disables the MaxBodySize middleware
	H2C               bool          `yaml:"h2c"`                 // serve cleartext HTTP/2 as well
}

// AppConfig holds settings of the application itself.
type AppConfig struct {
	Silent         bool   `yaml:"silent"`           // suppress default error logging
	ClientIPSource string `yaml:"client_ip_source"` // remote_addr, x_forwarded_for, x_real_ip, custom_header
	ClientIPHeader string `yaml:"client_ip_header"` // header name for custom_header
	TrustProxy     bool   `yaml:"trust_proxy"`      // default: false
	Greeting       string `yaml:"greeting"`         // body of the hello responder
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error; default: "info"
	Development bool   `yaml:"development"` // console encoder instead of JSON
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`         // default: true
	Path           string `yaml:"path"`            // default: "/metrics"
	Namespace      string `yaml:"namespace"`       // default: "sonion"
	IncludeRuntime bool   `yaml:"include_runtime"` // default: true
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Mode    string        `yaml:"mode"`   // "reject" (429) or "throttle" (pace), default: "reject"
	Limit   int           `yaml:"limit"`  // default: 100
	Window  time.Duration `yaml:"window"` // default: 1m
}

// CORSConfig holds CORS header settings.
type CORSConfig struct {
	Enabled bool          `yaml:"enabled"`
	Origins []string      `yaml:"origins"`
	Methods []string      `yaml:"methods"`
	Headers []string      `yaml:"headers"`
	MaxAge  time.Duration `yaml:"max_age"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type       string   `yaml:"type"`        // "none", "bearer", "apikey"; default: "none"
	Tokens     []string `yaml:"tokens"`      // accepted bearer tokens or API keys
	TokensFile string   `yaml:"tokens_file"` // _file variant for tokens, one per line
	Header     string   `yaml:"header"`      // API key header, default: "X-API-Key"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		App: AppConfig{
			ClientIPSource: "remote_addr",
			Greeting:       "Hello from SOnion",
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			Path:           "/metrics",
			Namespace:      "sonion",
			IncludeRuntime: true,
		},
		RateLimit: RateLimitConfig{
			Mode:   "reject",
			Limit:  100,
			Window: time.Minute,
		},
		CORS: CORSConfig{
			Methods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		},
		Auth: AuthConfig{
			Type:   "none",
			Header: "X-API-Key",
		},
	}
}
