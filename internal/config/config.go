// Package config handles loading and validation of liia.yaml project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// FileName is the project config file looked up in the config directory.
const FileName = "liia.yaml"

// Environment variables that override the file.
const (
	EnvLACode       = "LIIA_LA_CODE"
	EnvLogLevel     = "LIIA_LOG_LEVEL"
	EnvLogFormat    = "LIIA_LOG_FORMAT"
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// RetentionYears is how far back the default minimum year reaches.
const RetentionYears = 6

// Load reads liia.yaml from dir. A .env file in dir is loaded into the
// process environment first without replacing variables already set, then
// environment overrides and defaults are applied. Relative local paths are
// resolved against dir.
func Load(dir string) (*types.ProjectConfig, error) {
	if err := loadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data, time.Now())
	if err != nil {
		return nil, err
	}
	ResolvePaths(cfg, dir)
	return cfg, nil
}

// ResolvePaths makes the relative local locations of cfg relative to dir.
// URLs such as s3:// and mem:// are left alone.
func ResolvePaths(cfg *types.ProjectConfig, dir string) {
	locs := []*string{&cfg.Source, &cfg.Output, &cfg.Archive}
	for i := range cfg.Alerts {
		locs = append(locs, &cfg.Alerts[i].Path)
	}
	for _, loc := range locs {
		if *loc == "" || strings.Contains(*loc, "://") || filepath.IsAbs(*loc) {
			continue
		}
		*loc = filepath.Join(dir, *loc)
	}
}

// Parse decodes a project config, applies overrides and defaults relative
// to now, and validates the result.
func Parse(data []byte, now time.Time) (*types.ProjectConfig, error) {
	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := Finalize(&cfg, now); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize applies environment overrides and defaults to cfg and validates it.
func Finalize(cfg *types.ProjectConfig, now time.Time) error {
	applyEnv(cfg)
	applyDefaults(cfg, now)
	if err := validate(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *types.ProjectConfig) {
	if v := os.Getenv(EnvLACode); v != "" {
		cfg.Authority = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv(EnvOTLPEndpoint); v != "" {
		cfg.Telemetry.Endpoint = v
	}
}

func applyDefaults(cfg *types.ProjectConfig, now time.Time) {
	if cfg.Archive == "" && cfg.Output != "" {
		cfg.Archive = strings.TrimRight(cfg.Output, "/") + "/archive"
	}
	if cfg.CombineMode == "" {
		cfg.CombineMode = types.CombineEager
	}
	if cfg.MinYear == 0 {
		cfg.MinYear = now.Year() - RetentionYears
	}
	if cfg.HashSecretEnv == "" {
		cfg.HashSecretEnv = types.DefaultHashSecretEnv
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "liia"
	}
	cfg.Authority = strings.ToUpper(strings.TrimSpace(cfg.Authority))
}

func validate(cfg *types.ProjectConfig) error {
	if cfg.Source == "" {
		return fmt.Errorf("source is required")
	}
	if cfg.Output == "" {
		return fmt.Errorf("output is required")
	}
	if len(cfg.Datasets) == 0 {
		return fmt.Errorf("at least one dataset is required")
	}
	seen := make(map[string]bool, len(cfg.Datasets))
	for _, d := range cfg.Datasets {
		if seen[d] {
			return fmt.Errorf("dataset %q listed twice", d)
		}
		seen[d] = true
	}
	switch cfg.CombineMode {
	case types.CombineEager, types.CombineAggregate, types.CombineNone:
	default:
		return fmt.Errorf("combineMode %q must be one of E, A, N", cfg.CombineMode)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", cfg.Log.Format)
	}
	if cfg.MinYear < 0 {
		return fmt.Errorf("minYear must not be negative")
	}
	for i, a := range cfg.Alerts {
		if err := validateAlert(a); err != nil {
			return fmt.Errorf("alerts[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAlert(a types.AlertConfig) error {
	switch a.Type {
	case types.AlertConsole:
	case types.AlertWebhook:
		if a.URL == "" {
			return fmt.Errorf("webhook alert requires url")
		}
	case types.AlertFile:
		if a.Path == "" {
			return fmt.Errorf("file alert requires path")
		}
	case types.AlertSNS:
		if a.TopicARN == "" {
			return fmt.Errorf("sns alert requires topicArn")
		}
	default:
		return fmt.Errorf("unknown alert type %q", a.Type)
	}
	switch a.MinLevel {
	case "", types.AlertLevelInfo, types.AlertLevelWarning, types.AlertLevelError:
	default:
		return fmt.Errorf("minLevel %q must be info, warning or error", a.MinLevel)
	}
	return nil
}
