package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment represents the application environment
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// currentEnvironment reads APP_ENV, defaulting to development
func currentEnvironment() Environment {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = string(Development)
	}
	return Environment(strings.ToLower(env))
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Provider defines the interface for configuration management
type Provider interface {
	// GetString retrieves a string configuration value
	GetString(ctx context.Context, key string) (string, error)
	// GetInt retrieves an integer configuration value
	GetInt(ctx context.Context, key string) (int, error)
	// GetBool retrieves a boolean configuration value
	GetBool(ctx context.Context, key string) (bool, error)
	// GetSecret retrieves a secret value
	GetSecret(ctx context.Context, key string) (string, error)
	// GetEnvironment returns the current environment
	GetEnvironment() Environment
}

// stringOr returns the value of key, or def when the key is not set
func stringOr(ctx context.Context, p Provider, key, def string) string {
	v, err := p.GetString(ctx, key)
	if err != nil || v == "" {
		return def
	}
	return v
}

// intOr returns the integer value of key, or def when the key is not set.
// A value that is set but malformed is an error.
func intOr(ctx context.Context, p Provider, key string, def int) (int, error) {
	if _, err := p.GetString(ctx, key); err != nil {
		return def, nil
	}
	v, err := p.GetInt(ctx, key)
	if err != nil {
		return 0, &ValidationError{Field: key, Message: "must be an integer"}
	}
	return v, nil
}

// durationOr parses key with time.ParseDuration, or returns def when unset
func durationOr(ctx context.Context, p Provider, key string, def time.Duration) (time.Duration, error) {
	raw, err := p.GetString(ctx, key)
	if err != nil || raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &ValidationError{Field: key, Message: "must be a duration such as 500ms or 2s"}
	}
	return d, nil
}
