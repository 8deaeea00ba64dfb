package jwtauth

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config holds immutable configuration for bearer authentication
type Config struct {
	verifier    *Verifier
	bypassPaths []string
	logger      *slog.Logger
}

// ConfigOption is a functional option for configuring the middleware
type ConfigOption func(*Config) error

// NewConfig creates a new immutable configuration with the given options
func NewConfig(opts ...ConfigOption) (*Config, error) {
	cfg := &Config{}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, NewValidationError(ErrConfigError, fmt.Sprintf("configuration error: %v", err), err)
		}
	}

	// Validate required fields
	if cfg.verifier == nil {
		return nil, NewValidationError(ErrConfigError, "a verifier must be configured (use WithVerifier)", nil)
	}

	return cfg, nil
}

// WithVerifier sets the verifier used to validate bearer tokens
func WithVerifier(v *Verifier) ConfigOption {
	return func(c *Config) error {
		if v == nil {
			return fmt.Errorf("verifier cannot be nil")
		}
		c.verifier = v
		return nil
	}
}

// WithBypassPaths exempts every request whose path starts with one of the
// given prefixes from authentication
func WithBypassPaths(paths ...string) ConfigOption {
	return func(c *Config) error {
		for _, p := range paths {
			p = strings.TrimSpace(p)
			if p == "" {
				return fmt.Errorf("bypass path cannot be empty")
			}
			c.bypassPaths = append(c.bypassPaths, p)
		}
		return nil
	}
}

// WithLogger sets a structured logger for security events
func WithLogger(logger *slog.Logger) ConfigOption {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// IsBypassed reports whether path matches a bypass prefix
func (c *Config) IsBypassed(path string) bool {
	for _, prefix := range c.bypassPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (c *Config) Verifier() *Verifier {
	return c.verifier
}

func (c *Config) BypassPaths() []string {
	return append([]string(nil), c.bypassPaths...)
}

func (c *Config) Logger() *slog.Logger {
	return c.logger
}
