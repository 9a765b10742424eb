package config

import (
	"context"
	"fmt"
	"os"
)

// NewProvider picks the configuration source named by CONFIG_SOURCE:
//   - env (default): process environment plus an optional .env file
//   - file: the file named by CONFIG_FILE overlaid with MENUTREE_* variables
//   - aws: the Secrets Manager secret named by AWS_SECRET_NAME
func NewProvider(ctx context.Context) (Provider, error) {
	switch source := os.Getenv("CONFIG_SOURCE"); source {
	case "", "env":
		return NewEnvProvider("", ".env"), nil
	case "file":
		return NewViperProvider(os.Getenv("CONFIG_FILE"))
	case "aws":
		return NewAWSConfigProvider(ctx)
	default:
		return nil, fmt.Errorf("unknown CONFIG_SOURCE %q", source)
	}
}
