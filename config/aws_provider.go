package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// secretRefreshInterval bounds how long fetched secrets are served from memory
const secretRefreshInterval = 5 * time.Minute

// SecretsManagerAPI is the subset of the Secrets Manager client the provider uses
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsProvider implements Provider using a single JSON secret in AWS
// Secrets Manager. Keys that are not in the secret fall back to environment
// variables, so non-sensitive settings can stay in the Lambda environment.
type AWSSecretsProvider struct {
	client      SecretsManagerAPI
	secretName  string
	mu          sync.Mutex
	cache       map[string]string
	lastFetch   time.Time
	environment Environment
	fallback    Provider
}

// NewAWSSecretsProvider creates a new AWS Secrets Manager based configuration provider
func NewAWSSecretsProvider(ctx context.Context, secretName string) (Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewAWSSecretsProviderWithClient(secretsmanager.NewFromConfig(cfg), secretName), nil
}

// NewAWSSecretsProviderWithClient creates the provider around an existing client
func NewAWSSecretsProviderWithClient(client SecretsManagerAPI, secretName string) *AWSSecretsProvider {
	return &AWSSecretsProvider{
		client:      client,
		secretName:  secretName,
		environment: currentEnvironment(),
		fallback:    NewEnvProvider(""),
	}
}

// NewAWSConfigProvider creates the provider for the secret named by AWS_SECRET_NAME
func NewAWSConfigProvider(ctx context.Context) (Provider, error) {
	secretName := os.Getenv("AWS_SECRET_NAME")
	if secretName == "" {
		return nil, fmt.Errorf("AWS_SECRET_NAME environment variable not set")
	}
	provider, err := NewAWSSecretsProvider(ctx, secretName)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS secrets provider: %w", err)
	}
	return provider, nil
}

// GetEnvironment returns the current environment
func (p *AWSSecretsProvider) GetEnvironment() Environment {
	return p.environment
}

// secrets returns the cached secret map, fetching it when stale
func (p *AWSSecretsProvider) secrets(ctx context.Context) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache != nil && time.Since(p.lastFetch) < secretRefreshInterval {
		return p.cache, nil
	}

	secret, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}
	if secret.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", p.secretName)
	}

	var secretMap map[string]string
	if err := json.Unmarshal([]byte(*secret.SecretString), &secretMap); err != nil {
		return nil, fmt.Errorf("failed to parse secret JSON: %w", err)
	}
	if err := validateSecretSchema(secretMap, p.environment); err != nil {
		return nil, fmt.Errorf("invalid secret schema: %w", err)
	}

	p.cache = secretMap
	p.lastFetch = time.Now()
	return secretMap, nil
}

// GetString retrieves a string configuration value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetString(ctx context.Context, key string) (string, error) {
	secretMap, err := p.secrets(ctx)
	if err != nil {
		return "", err
	}
	if value, ok := secretMap[key]; ok {
		return value, nil
	}
	if value, err := p.fallback.GetString(ctx, key); err == nil {
		return value, nil
	}
	return "", fmt.Errorf("secret key %s not found", key)
}

// GetInt retrieves an integer configuration value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetInt(ctx context.Context, key string) (int, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// GetBool retrieves a boolean configuration value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := p.GetString(ctx, key)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value)
}

// GetSecret retrieves a secret value from AWS Secrets Manager
func (p *AWSSecretsProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return p.GetString(ctx, key)
}

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// validateSecretSchema validates the structure of secrets stored in AWS Secrets Manager.
// Database keys are required unless the secret selects a non-postgres store.
func validateSecretSchema(secrets map[string]string, env Environment) error {
	driver := secrets["STORE_DRIVER"]
	if driver == "" || driver == string(DriverPostgres) {
		for _, key := range []string{"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME"} {
			if _, ok := secrets[key]; !ok {
				return &ValidationError{Field: key, Message: "required secret key not found"}
			}
		}
	}

	if port, ok := secrets["DB_PORT"]; ok {
		if _, err := strconv.Atoi(port); err != nil {
			return &ValidationError{Field: "DB_PORT", Message: "port must be a valid number"}
		}
	}

	if mode, ok := secrets["DB_SSLMODE"]; ok && !validSSLModes[mode] {
		return &ValidationError{Field: "DB_SSLMODE", Message: "invalid SSL mode"}
	}

	if env != Production {
		return nil
	}

	if strings.ToLower(secrets["DB_HOST"]) == "localhost" {
		return &ValidationError{Field: "DB_HOST", Message: "localhost is not allowed in production"}
	}
	if secrets["DB_SSLMODE"] == "disable" {
		return &ValidationError{Field: "DB_SSLMODE", Message: "SSL cannot be disabled in production"}
	}
	if password, ok := secrets["DB_PASSWORD"]; ok {
		if len(password) < 12 || !upperRe.MatchString(password) || !lowerRe.MatchString(password) ||
			!digitRe.MatchString(password) || !specialRe.MatchString(password) {
			return &ValidationError{
				Field:   "DB_PASSWORD",
				Message: "password must be at least 12 characters with upper, lower, digit and special characters in production",
			}
		}
	}
	return nil
}
