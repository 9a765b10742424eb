package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var validSSLModes = map[string]bool{
	"disable":     true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

var dbNameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Validate checks if the database configuration is valid
func (c *DatabaseConfig) Validate(env Environment) error {
	production := env == Production
	return validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required, validation.By(resolvableHost)),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.User, validation.Required),
		validation.Field(&c.Password,
			validation.Required,
			validation.When(production,
				validation.Length(12, 0).Error("must be at least 12 characters long in production"),
				validation.Match(upperRe).Error("must contain an uppercase letter in production"),
				validation.Match(lowerRe).Error("must contain a lowercase letter in production"),
				validation.Match(digitRe).Error("must contain a number in production"),
				validation.Match(specialRe).Error("must contain a special character in production"),
			),
		),
		validation.Field(&c.DBName,
			validation.Required,
			validation.Match(dbNameRe).Error("must start with a letter and contain only letters, numbers, and underscores"),
		),
		validation.Field(&c.SSLMode,
			validation.Required,
			validation.In("disable", "require", "verify-ca", "verify-full").Error("invalid SSL mode"),
			validation.When(production, validation.NotIn("disable").Error("SSL cannot be disabled in production")),
		),
	)
}

func resolvableHost(value interface{}) error {
	host, _ := value.(string)
	if host == "" || net.ParseIP(host) != nil {
		return nil
	}
	if _, err := net.LookupHost(host); err != nil {
		return errors.New("invalid hostname or IP address")
	}
	return nil
}

// DSN renders the lib/pq key/value connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL renders the postgres:// URL golang-migrate expects
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// GetDatabaseConfig retrieves database configuration using the provided config provider
func GetDatabaseConfig(ctx context.Context, provider Provider) (*DatabaseConfig, error) {
	host, err := provider.GetString(ctx, "DB_HOST")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_HOST: %w", err)
	}

	port, err := provider.GetInt(ctx, "DB_PORT")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_PORT: %w", err)
	}

	user, err := provider.GetString(ctx, "DB_USER")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_USER: %w", err)
	}

	password, err := provider.GetSecret(ctx, "DB_PASSWORD")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_PASSWORD: %w", err)
	}

	dbname, err := provider.GetString(ctx, "DB_NAME")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_NAME: %w", err)
	}

	cfg := &DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		DBName:   dbname,
		SSLMode:  stringOr(ctx, provider, "DB_SSLMODE", "disable"),
	}

	if err := cfg.Validate(provider.GetEnvironment()); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	return cfg, nil
}
