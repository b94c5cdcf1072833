package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/config"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset/builtin"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var (
		authority string
		datasets  []string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "init [project-dir]",
		Short: "Initialize a new project",
		Long:  "Creates the source and output folders and a starter liia.yaml.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args[0], authority, datasets, force)
		},
	}

	cmd.Flags().StringVar(&authority, "authority", "", "Authority code of every file")
	cmd.Flags().StringSliceVar(&datasets, "datasets", nil, "Datasets to run (default: all)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing liia.yaml")
	return cmd
}

func runInit(dir, authority string, datasets []string, force bool) error {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Initializing project: %s\n", dir)

	if len(datasets) == 0 {
		for _, def := range builtin.Definitions() {
			datasets = append(datasets, def.Name)
		}
	}

	for _, sub := range []string{"source", "output"} {
		path := filepath.Join(dir, sub)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", path, err)
		}
		if len(datasets) > 1 && sub == "source" {
			for _, name := range datasets {
				if err := os.MkdirAll(filepath.Join(path, name), 0o755); err != nil {
					return fmt.Errorf("creating directory %s: %w", name, err)
				}
			}
		}
	}

	configPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.WriteFile(configPath, []byte(starterConfig(authority, datasets)), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); errors.Is(err, os.ErrNotExist) {
		env := types.DefaultHashSecretEnv + "=\n"
		if err := os.WriteFile(envPath, []byte(env), 0o600); err != nil {
			return fmt.Errorf("writing .env: %w", err)
		}
	}

	color.Green("  ✓ Project scaffolded")
	fmt.Println()
	_, _ = bold.Println("Next steps:")
	fmt.Printf("  set %s in %s\n", types.DefaultHashSecretEnv, envPath)
	if len(datasets) > 1 {
		fmt.Printf("  copy returns into %s/source/<dataset>/\n", dir)
	} else {
		fmt.Printf("  copy returns into %s/source/\n", dir)
	}
	fmt.Printf("  liia run --config %s\n", dir)
	return nil
}

func starterConfig(authority string, datasets []string) string {
	var b strings.Builder
	b.WriteString("source: ./source\n")
	b.WriteString("output: ./output\n")
	b.WriteString("datasets: [" + strings.Join(datasets, ", ") + "]\n")
	if authority != "" {
		b.WriteString("authority: " + strings.ToUpper(authority) + "\n")
	}
	b.WriteString(`combineMode: E
log:
  level: info
  format: text
`)
	return b.String()
}
