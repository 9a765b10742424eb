package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Driver names a record store implementation
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
	DriverMemory   Driver = "memory"
)

// StoreConfig selects and locates the record store
type StoreConfig struct {
	Driver     Driver
	SQLitePath string
	// Database is set for the postgres driver only
	Database *DatabaseConfig
}

// DefaultSQLitePath is ~/.menutree/menutree.db, or ./menutree.db without a home directory
func DefaultSQLitePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "menutree.db"
	}
	return filepath.Join(homeDir, ".menutree", "menutree.db")
}

// GetStoreConfig reads STORE_DRIVER (default sqlite), SQLITE_PATH and, for
// postgres, the DB_* keys. The memory driver is rejected in production.
func GetStoreConfig(ctx context.Context, provider Provider) (*StoreConfig, error) {
	cfg := &StoreConfig{
		Driver:     Driver(strings.ToLower(stringOr(ctx, provider, "STORE_DRIVER", string(DriverSQLite)))),
		SQLitePath: stringOr(ctx, provider, "SQLITE_PATH", DefaultSQLitePath()),
	}

	switch cfg.Driver {
	case DriverPostgres:
		db, err := GetDatabaseConfig(ctx, provider)
		if err != nil {
			return nil, err
		}
		cfg.Database = db
	case DriverMemory:
		// data is lost on exit and every write copies the whole store
		if provider.GetEnvironment() == Production {
			return nil, &ValidationError{Field: "STORE_DRIVER", Message: "memory is not allowed in production"}
		}
	case DriverSQLite:
	default:
		return nil, &ValidationError{Field: "STORE_DRIVER", Message: "must be one of postgres, sqlite, memory"}
	}
	return cfg, nil
}

// EngineConfig tunes the hierarchy engine's transaction handling
type EngineConfig struct {
	// MaxRetries bounds how often an aborted transaction is retried
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number between retries
	RetryBackoff time.Duration
	// TxTimeout bounds each transaction; zero disables the bound
	TxTimeout time.Duration
}

// DefaultEngineConfig returns the settings used when nothing is configured
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxRetries:   3,
		RetryBackoff: 20 * time.Millisecond,
		TxTimeout:    10 * time.Second,
	}
}

// Validate checks if the engine configuration is valid
func (c EngineConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.RetryBackoff, validation.Min(time.Duration(0)), validation.Max(5*time.Second)),
		validation.Field(&c.TxTimeout, validation.Min(time.Duration(0))),
	)
}

// GetEngineConfig reads ENGINE_MAX_RETRIES, ENGINE_RETRY_BACKOFF and ENGINE_TX_TIMEOUT
func GetEngineConfig(ctx context.Context, provider Provider) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	var err error
	if cfg.MaxRetries, err = intOr(ctx, provider, "ENGINE_MAX_RETRIES", cfg.MaxRetries); err != nil {
		return cfg, err
	}
	if cfg.RetryBackoff, err = durationOr(ctx, provider, "ENGINE_RETRY_BACKOFF", cfg.RetryBackoff); err != nil {
		return cfg, err
	}
	if cfg.TxTimeout, err = durationOr(ctx, provider, "ENGINE_TX_TIMEOUT", cfg.TxTimeout); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid engine configuration: %w", err)
	}
	return cfg, nil
}

// CacheConfig selects the query cache used by the HTTP and Lambda surfaces
type CacheConfig struct {
	// Provider is one of none, memory, redis, dynamodb
	Provider      string
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DynamoDBTable string
}

// Validate checks if the cache configuration is valid
func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Provider, validation.Required, validation.In("none", "memory", "redis", "dynamodb")),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
		validation.Field(&c.RedisAddr, validation.When(c.Provider == "redis", validation.Required)),
		validation.Field(&c.RedisDB, validation.Min(0)),
		validation.Field(&c.DynamoDBTable, validation.When(c.Provider == "dynamodb", validation.Required)),
	)
}

// GetCacheConfig reads CACHE_PROVIDER (default memory), CACHE_TTL and the
// provider specific keys.
func GetCacheConfig(ctx context.Context, provider Provider) (CacheConfig, error) {
	cfg := CacheConfig{
		Provider:      strings.ToLower(stringOr(ctx, provider, "CACHE_PROVIDER", "memory")),
		RedisAddr:     stringOr(ctx, provider, "REDIS_ADDR", ""),
		DynamoDBTable: stringOr(ctx, provider, "DYNAMODB_TABLE", ""),
	}
	if password, err := provider.GetSecret(ctx, "REDIS_PASSWORD"); err == nil {
		cfg.RedisPassword = password
	}
	var err error
	if cfg.TTL, err = durationOr(ctx, provider, "CACHE_TTL", time.Minute); err != nil {
		return cfg, err
	}
	if cfg.RedisDB, err = intOr(ctx, provider, "REDIS_DB", 0); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid cache configuration: %w", err)
	}
	return cfg, nil
}

// ServerConfig holds the HTTP listener and logging settings
type ServerConfig struct {
	Addr     string
	LogLevel slog.Level
}

// GetServerConfig reads HTTP_ADDR (default :8080) and LOG_LEVEL (default info)
func GetServerConfig(ctx context.Context, provider Provider) (ServerConfig, error) {
	cfg := ServerConfig{Addr: stringOr(ctx, provider, "HTTP_ADDR", ":8080")}
	if err := cfg.LogLevel.UnmarshalText([]byte(stringOr(ctx, provider, "LOG_LEVEL", "info"))); err != nil {
		return cfg, &ValidationError{Field: "LOG_LEVEL", Message: "must be one of debug, info, warn, error"}
	}
	return cfg, nil
}
