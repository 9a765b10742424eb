package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvProvider implements Provider using environment variables
type EnvProvider struct {
	prefix      string
	environment Environment
}

// NewEnvProvider creates a new environment-based configuration provider.
// Variables from the given dotenv files are loaded first without overriding
// variables already set; missing files are skipped.
func NewEnvProvider(prefix string, envFiles ...string) Provider {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", file, err)
		}
	}
	return &EnvProvider{
		prefix:      prefix,
		environment: currentEnvironment(),
	}
}

// GetEnvironment returns the current environment
func (p *EnvProvider) GetEnvironment() Environment {
	return p.environment
}

// GetString retrieves a string configuration value from environment variables
func (p *EnvProvider) GetString(ctx context.Context, key string) (string, error) {
	value := os.Getenv(p.prefix + key)
	if value == "" {
		return "", fmt.Errorf("environment variable %s%s not set", p.prefix, key)
	}
	return value, nil
}

// GetInt retrieves an integer configuration value from environment variables
func (p *EnvProvider) GetInt(ctx context.Context, key string) (int, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// GetBool retrieves a boolean configuration value from environment variables
func (p *EnvProvider) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value)
}

// GetSecret retrieves a secret value from environment variables
func (p *EnvProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return p.GetString(ctx, key)
}
