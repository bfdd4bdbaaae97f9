package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, SONION_CONFIG env, ./sonion.yaml)
//  3. SONION_* environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path: the explicit argument, then
// SONION_CONFIG, then ./sonion.yaml. Returns "" when there is none.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("SONION_CONFIG"); envPath != "" {
		return envPath
	}
	if _, err := os.Stat("sonion.yaml"); err == nil {
		return "sonion.yaml"
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
// Unknown fields are rejected.
func loadYAMLFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides maps SONION_* environment variables to config fields.
// Malformed values are reported rather than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SONION_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if err := envBool("SONION_H2C", &cfg.Server.H2C); err != nil {
		return err
	}
	if err := envDuration("SONION_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout); err != nil {
		return err
	}
	if err := envDuration("SONION_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout); err != nil {
		return err
	}
	if v := os.Getenv("SONION_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SONION_MAX_BODY_BYTES: %w", err)
		}
		cfg.Server.MaxBodyBytes = n
	}
	if err := envBool("SONION_SILENT", &cfg.App.Silent); err != nil {
		return err
	}
	if v := os.Getenv("SONION_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if err := envBool("SONION_LOG_DEVELOPMENT", &cfg.Log.Development); err != nil {
		return err
	}
	if err := envBool("SONION_METRICS_ENABLED", &cfg.Metrics.Enabled); err != nil {
		return err
	}
	if err := envBool("SONION_RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled); err != nil {
		return err
	}
	if v := os.Getenv("SONION_RATE_LIMIT_MODE"); v != "" {
		cfg.RateLimit.Mode = v
	}
	if v := os.Getenv("SONION_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}
	// SONION_AUTH_TOKENS: comma separated list.
	if v := os.Getenv("SONION_AUTH_TOKENS"); v != "" {
		cfg.Auth.Tokens = splitList(v)
	}
	return nil
}

func envBool(name string, dst *bool) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = b
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
func resolveFileReferences(cfg *Config) error {
	// auth.tokens_file -> auth.tokens
	if cfg.Auth.TokensFile != "" && len(cfg.Auth.Tokens) == 0 {
		data, err := os.ReadFile(cfg.Auth.TokensFile)
		if err != nil {
			return fmt.Errorf("auth.tokens_file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
				cfg.Auth.Tokens = append(cfg.Auth.Tokens, line)
			}
		}
	}
	return nil
}
