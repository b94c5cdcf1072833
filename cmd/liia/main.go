package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "liia",
		Short: "Clean, archive and share children's services returns",
		Long: `liia takes statutory returns from local authorities, validates them against
the schema for their collection year, minimises the personal data they hold
and keeps a per-authority archive from which shared views are published.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP(commands.ConfigFlag, "c", ".", "Project directory containing liia.yaml")

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewRunCmd(),
		commands.NewCleanCmd(),
		commands.NewSchemaCmd(),
		commands.NewArchiveCmd(),
		commands.NewWatchCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
