// Package lambda provides shared initialization and handlers for the Lambda
// entry points.
package lambda

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/alert"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/config"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset/builtin"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/logging"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/secrets"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/session"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// Environment variables read by Init.
const (
	EnvSource       = "LIIA_SOURCE"
	EnvOutput       = "LIIA_OUTPUT"
	EnvArchive      = "LIIA_ARCHIVE"
	EnvDatasets     = "LIIA_DATASETS"
	EnvHashSecretID = "LIIA_HASH_SECRET_ID"
	EnvCombineMode  = "LIIA_COMBINE_MODE"
	EnvAlertTopic   = "LIIA_ALERT_TOPIC_ARN"
	EnvRegion       = "AWS_REGION"
)

// Deps holds shared dependencies for Lambda handlers.
type Deps struct {
	Config   *types.ProjectConfig
	Project  *session.Project
	Datasets *dataset.Registry
	Secret   []byte
	Alerts   *alert.Dispatcher
	Logger   *slog.Logger
}

// Init creates shared dependencies from environment variables.
// Reads: LIIA_SOURCE, LIIA_OUTPUT, LIIA_ARCHIVE, LIIA_DATASETS,
// LIIA_HASH_SECRET_ID, LIIA_COMBINE_MODE, LIIA_ALERT_TOPIC_ARN, AWS_REGION
// and the overrides honoured by the config package.
func Init(ctx context.Context) (*Deps, error) {
	cfg, err := ConfigFromEnv(os.Getenv, time.Now())
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg.Log.Level, "json")

	reg, err := builtin.Registry(logger)
	if err != nil {
		return nil, err
	}
	secret, err := secrets.NewResolver(cfg.AWS, secrets.WithLogger(logger)).HashSecret(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolving hash secret: %w", err)
	}
	proj, err := session.OpenProject(ctx, cfg)
	if err != nil {
		return nil, err
	}
	alerts, err := alert.NewDispatcher(cfg.Alerts, alert.WithLogger(logger), alert.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, err
	}
	return &Deps{Config: cfg, Project: proj, Datasets: reg, Secret: secret, Alerts: alerts, Logger: logger}, nil
}

// ConfigFromEnv builds a project config from environment variables.
func ConfigFromEnv(getenv func(string) string, now time.Time) (*types.ProjectConfig, error) {
	for _, key := range []string{EnvSource, EnvOutput, EnvDatasets} {
		if getenv(key) == "" {
			return nil, fmt.Errorf("%s environment variable required", key)
		}
	}
	cfg := &types.ProjectConfig{
		Source:       getenv(EnvSource),
		Output:       getenv(EnvOutput),
		Archive:      getenv(EnvArchive),
		Datasets:     splitList(getenv(EnvDatasets)),
		HashSecretID: getenv(EnvHashSecretID),
		CombineMode:  types.CombineMode(getenv(EnvCombineMode)),
		AWS:          types.AWSConfig{Region: getenv(EnvRegion)},
	}
	if arn := getenv(EnvAlertTopic); arn != "" {
		cfg.Alerts = []types.AlertConfig{{Type: types.AlertSNS, TopicARN: arn}}
	}
	if err := config.Finalize(cfg, now); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
