// Package commands implements the CLI subcommands for the liia binary.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/config"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset/builtin"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/logging"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/telemetry"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// ConfigFlag is the persistent flag naming the project directory.
const ConfigFlag = "config"

// configDir returns the project directory selected on the command line.
func configDir(cmd *cobra.Command) string {
	if f := cmd.Flag(ConfigFlag); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	return "."
}

// project is a loaded project configuration with its process-wide services.
type project struct {
	cfg      *types.ProjectConfig
	logger   *slog.Logger
	datasets *dataset.Registry
	shutdown telemetry.Shutdown
}

// loadProject reads liia.yaml, configures logging and telemetry, and loads
// the built-in datasets. Callers must defer close.
func loadProject(ctx context.Context, cmd *cobra.Command) (*project, error) {
	cfg, err := config.Load(configDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("starting telemetry: %w", err)
	}
	reg, err := builtin.Registry(logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	return &project{cfg: cfg, logger: logger, datasets: reg, shutdown: shutdown}, nil
}

func (p *project) close(ctx context.Context) {
	if err := p.shutdown(ctx); err != nil {
		p.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// loadDatasets returns the built-in datasets without a project config.
func loadDatasets() (*dataset.Registry, error) {
	return builtin.Registry(slog.Default())
}

// listInputs returns the files to clean for path. A directory yields every
// regular file directly inside it in name order; subdirectories and hidden files
// are skipped.
func listInputs(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	return files, nil
}
