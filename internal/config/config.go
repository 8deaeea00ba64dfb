// Package config loads the echo service configuration.
//
// Values are layered in this order, later sources overriding earlier ones:
//
//  1. built-in defaults (Default)
//  2. an optional YAML file
//  3. optional .env files
//  4. process environment variables
//
// Validate must be called after loading; it resolves the signing key pair.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Wang-tianhao/echo-auth-service/jwtauth"
)

// DefaultBypassPaths are reachable without a bearer token
var DefaultBypassPaths = []string{"/api/signin", "/api/echo", "/health", "/metrics"}

// AppConfig is the top-level service configuration
type AppConfig struct {
	// ServerName is used as the token issuer and the Server-Timing metric name
	ServerName string `yaml:"server_name" env:"SERVER_NAME"`
	Port       int    `yaml:"port" env:"PORT"`
	LogLevel   string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat  string `yaml:"log_format" env:"LOG_FORMAT"`

	Auth   AuthConfig   `yaml:"auth"`
	Timing TimingConfig `yaml:"timing"`
}

// AuthConfig configures token issuance and verification
type AuthConfig struct {
	PrivateKeyPEM  string `yaml:"private_key" env:"AUTH_PRIVATE_KEY"`
	PublicKeyPEM   string `yaml:"public_key" env:"AUTH_PUBLIC_KEY"`
	PrivateKeyFile string `yaml:"private_key_file" env:"AUTH_PRIVATE_KEY_FILE"`
	PublicKeyFile  string `yaml:"public_key_file" env:"AUTH_PUBLIC_KEY_FILE"`

	BypassPaths   []string      `yaml:"bypass_paths" env:"AUTH_BYPASS_PATHS" envSeparator:","`
	TokenDuration time.Duration `yaml:"token_duration" env:"AUTH_TOKEN_DURATION"`
	VerifyIssuer  bool          `yaml:"verify_issuer" env:"AUTH_VERIFY_ISSUER"`

	// KeysGenerated is set by Validate when no key pair was configured
	KeysGenerated bool `yaml:"-"`
}

// TimingConfig configures the Server-Timing layer
type TimingConfig struct {
	Description string `yaml:"description" env:"TIMING_DESCRIPTION"`
}

// Default returns the configuration used before any source is applied
func Default() *AppConfig {
	return &AppConfig{
		ServerName: "echo-service",
		Port:       3000,
		LogLevel:   "info",
		LogFormat:  "json",
		Auth: AuthConfig{
			BypassPaths:   append([]string(nil), DefaultBypassPaths...),
			TokenDuration: jwtauth.DefaultTokenDuration,
		},
	}
}

// Load builds a configuration from defaults, the YAML file at path (if not
// empty), the given .env files and the environment, then validates it.
// With no env files, a .env in the working directory is loaded if present.
func Load(path string, envFiles ...string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, errors.Join(ErrLoadingEnvFile, err)
		}
	} else {
		// a missing default .env is fine
		_ = godotenv.Load()
	}

	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays values from a YAML file onto cfg
func (c *AppConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Join(ErrReadingFile, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Join(ErrParsingFile, err)
	}
	return nil
}

// LoadEnv overlays values from environment variables onto cfg.
// Variables that are not set leave the current value untouched.
func (c *AppConfig) LoadEnv() error {
	if err := env.Parse(c); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// Validate checks ranges and resolves the key pair
func (c *AppConfig) Validate() error {
	var errs []error

	if c.ServerName == "" {
		errs = append(errs, fmt.Errorf("%w: server name is empty", ErrInvalidConfig))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("%w: log format %q (want json or text)", ErrInvalidConfig, c.LogFormat))
	}
	if c.Auth.TokenDuration <= 0 {
		errs = append(errs, fmt.Errorf("%w: token duration must be positive", ErrInvalidConfig))
	}
	for _, p := range c.Auth.BypassPaths {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("%w: bypass path %q must start with /", ErrInvalidConfig, p))
		}
	}

	if err := c.Auth.ResolveKeys(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SlogLevel parses LogLevel
func (c *AppConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return level, nil
}

// Addr returns the listen address
func (c *AppConfig) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// ResolveKeys reads key files, generates a pair when none is configured and
// checks that the public key belongs to the private key.
func (a *AuthConfig) ResolveKeys() error {
	var err error
	if a.PrivateKeyPEM, err = readKey(a.PrivateKeyPEM, a.PrivateKeyFile); err != nil {
		return err
	}
	if a.PublicKeyPEM, err = readKey(a.PublicKeyPEM, a.PublicKeyFile); err != nil {
		return err
	}
	// files are consumed once read
	a.PrivateKeyFile, a.PublicKeyFile = "", ""

	switch {
	case a.PrivateKeyPEM == "" && a.PublicKeyPEM == "":
		keys, err := jwtauth.GenerateKeyMaterial()
		if err != nil {
			return errors.Join(ErrInvalidKeyPair, err)
		}
		a.PrivateKeyPEM = keys.PrivateKeyPEM
		a.PublicKeyPEM = keys.PublicKeyPEM
		a.KeysGenerated = true
		return nil
	case a.PrivateKeyPEM == "" || a.PublicKeyPEM == "":
		return ErrIncompleteKeyPair
	}

	if err := a.KeyMaterial().Validate(); err != nil {
		return errors.Join(ErrInvalidKeyPair, err)
	}
	return nil
}

// KeyMaterial returns the resolved key pair
func (a *AuthConfig) KeyMaterial() *jwtauth.KeyMaterial {
	return &jwtauth.KeyMaterial{
		PrivateKeyPEM: a.PrivateKeyPEM,
		PublicKeyPEM:  a.PublicKeyPEM,
	}
}

func readKey(inline, file string) (string, error) {
	if file == "" {
		return inline, nil
	}
	if inline != "" {
		return "", fmt.Errorf("%w: %s", ErrConflictingKeySource, file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", errors.Join(ErrReadingKeyFile, err)
	}
	return string(data), nil
}
