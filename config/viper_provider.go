package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// ViperPrefix is the environment prefix ViperProvider reads, e.g. MENUTREE_DB_HOST
const ViperPrefix = "MENUTREE"

// ViperProvider implements Provider on top of a config file overlaid with
// MENUTREE_-prefixed environment variables. Keys are case-insensitive.
type ViperProvider struct {
	v           *viper.Viper
	environment Environment
}

// NewViperProvider reads configFile (YAML, TOML or JSON by extension) if it
// is not empty.
func NewViperProvider(configFile string) (Provider, error) {
	v := viper.New()
	v.SetEnvPrefix(ViperPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("app_env", string(Development))

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	return &ViperProvider{
		v:           v,
		environment: Environment(strings.ToLower(v.GetString("app_env"))),
	}, nil
}

// GetEnvironment returns the current environment
func (p *ViperProvider) GetEnvironment() Environment {
	return p.environment
}

// GetString retrieves a string configuration value
func (p *ViperProvider) GetString(ctx context.Context, key string) (string, error) {
	if !p.v.IsSet(key) {
		return "", fmt.Errorf("config key %s not set", key)
	}
	value := p.v.GetString(key)
	if value == "" {
		return "", fmt.Errorf("config key %s is empty", key)
	}
	return value, nil
}

// GetInt retrieves an integer configuration value
func (p *ViperProvider) GetInt(ctx context.Context, key string) (int, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// GetBool retrieves a boolean configuration value
func (p *ViperProvider) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value)
}

// GetSecret retrieves a secret value
func (p *ViperProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return p.GetString(ctx, key)
}
