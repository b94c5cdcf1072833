package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	content := `source: ./incoming
output: s3://liia-output/pipeline/
datasets: [ssda903, cin]
authority: bar
profiles: [pan]
combineMode: A
minYear: 2019
log:
  level: debug
  format: json
telemetry:
  endpoint: localhost:4317
  insecure: true
aws:
  region: eu-west-2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "incoming"), cfg.Source)
	assert.Equal(t, "s3://liia-output/pipeline/archive", cfg.Archive)
	assert.Equal(t, []string{"ssda903", "cin"}, cfg.Datasets)
	assert.Equal(t, "BAR", cfg.Authority)
	assert.Equal(t, types.CombineAggregate, cfg.CombineMode)
	assert.Equal(t, 2019, cfg.MinYear)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Telemetry.Insecure)
	assert.Equal(t, "liia", cfg.Telemetry.ServiceName)
	assert.Equal(t, "eu-west-2", cfg.AWS.Region)
	assert.Equal(t, types.DefaultHashSecretEnv, cfg.HashSecretEnv)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("source: in\noutput: out\ndatasets: [pnw]\n"), now)
	require.NoError(t, err)
	assert.Equal(t, "out/archive", cfg.Archive)
	assert.Equal(t, types.CombineEager, cfg.CombineMode)
	assert.Equal(t, 2018, cfg.MinYear)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Authority)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv(EnvLACode, "cam")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvOTLPEndpoint, "collector:4317")

	cfg, err := Parse([]byte("source: in\noutput: out\ndatasets: [pnw]\nauthority: BAR\n"), now)
	require.NoError(t, err)
	assert.Equal(t, "CAM", cfg.Authority)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
}

func TestResolvePaths(t *testing.T) {
	cfg := &types.ProjectConfig{Source: "in", Output: "/data/out", Archive: "mem://archive"}
	ResolvePaths(cfg, "/project")
	assert.Equal(t, "/project/in", cfg.Source)
	assert.Equal(t, "/data/out", cfg.Output)
	assert.Equal(t, "mem://archive", cfg.Archive)

	cfg = &types.ProjectConfig{Alerts: []types.AlertConfig{{Type: types.AlertFile, Path: "alerts.jsonl"}, {Type: types.AlertConsole}}}
	ResolvePaths(cfg, "/project")
	assert.Equal(t, "/project/alerts.jsonl", cfg.Alerts[0].Path)
	assert.Equal(t, "", cfg.Alerts[1].Path)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("source: in\noutput: out\ndatasets: [pnw]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LIIA_LA_CODE=HAC\n"), 0o644))
	// Setenv restores the variable after the test; .env only fills unset ones
	t.Setenv(EnvLACode, "")
	require.NoError(t, os.Unsetenv(EnvLACode))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "HAC", cfg.Authority)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("invalid: [yaml"), 0o644))
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	cases := map[string]struct {
		yaml string
		want string
	}{
		"missing source":   {"output: o\ndatasets: [a]\n", "source is required"},
		"missing output":   {"source: s\ndatasets: [a]\n", "output is required"},
		"no datasets":      {"source: s\noutput: o\n", "at least one dataset"},
		"duplicate":        {"source: s\noutput: o\ndatasets: [a, a]\n", "listed twice"},
		"bad combine mode": {"source: s\noutput: o\ndatasets: [a]\ncombineMode: X\n", "combineMode"},
		"bad log format":   {"source: s\noutput: o\ndatasets: [a]\nlog: {format: xml}\n", "log.format"},
		"webhook no url":   {"source: s\noutput: o\ndatasets: [a]\nalerts: [{type: webhook}]\n", "alerts[0]: webhook alert requires url"},
		"unknown alert":    {"source: s\noutput: o\ndatasets: [a]\nalerts: [{type: console}, {type: pager}]\n", "alerts[1]"},
		"bad min level":    {"source: s\noutput: o\ndatasets: [a]\nalerts: [{type: console, minLevel: loud}]\n", "minLevel"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml), now)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
