// Package secrets resolves the key used to hash worker identifiers.
package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// API is the subset of the Secrets Manager client used by Resolver.
type API interface {
	GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver looks the hash secret up in Secrets Manager when an id is
// configured, else in the environment.
type Resolver struct {
	client API
	aws    types.AWSConfig
	logger *slog.Logger
	getenv func(string) string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClient sets a custom Secrets Manager client (useful for testing).
func WithClient(c API) Option {
	return func(r *Resolver) { r.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithGetenv overrides the environment lookup.
func WithGetenv(fn func(string) string) Option {
	return func(r *Resolver) { r.getenv = fn }
}

// NewResolver creates a resolver using awsCfg for any Secrets Manager client
// it has to build.
func NewResolver(awsCfg types.AWSConfig, opts ...Option) *Resolver {
	r := &Resolver{aws: awsCfg, logger: slog.Default(), getenv: os.Getenv}
	for _, o := range opts {
		o(r)
	}
	return r
}

// HashSecret returns the configured secret. An absent secret is not an
// error: hashes stay stable but are not keyed, and a warning is logged.
func (r *Resolver) HashSecret(ctx context.Context, cfg *types.ProjectConfig) ([]byte, error) {
	var secret string
	if cfg.HashSecretID != "" {
		v, err := r.fromSecretsManager(ctx, cfg.HashSecretID)
		if err != nil {
			return nil, err
		}
		secret = v
	} else {
		name := cfg.HashSecretEnv
		if name == "" {
			name = types.DefaultHashSecretEnv
		}
		secret = r.getenv(name)
	}
	if secret == "" {
		r.logger.Warn("hash secret is empty; identifier hashes are not keyed")
	}
	return []byte(secret), nil
}

func (r *Resolver) fromSecretsManager(ctx context.Context, id string) (string, error) {
	if r.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if r.aws.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(r.aws.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return "", fmt.Errorf("loading AWS config: %w", err)
		}
		r.client = secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			if r.aws.Endpoint != "" {
				o.BaseEndpoint = aws.String(r.aws.Endpoint)
			}
		})
	}
	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		return "", fmt.Errorf("reading secret %s: %w", id, err)
	}
	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	return string(out.SecretBinary), nil
}
