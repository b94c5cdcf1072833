package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/session"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
)

// NewCleanCmd creates the clean command.
func NewCleanCmd() *cobra.Command {
	var (
		output string
		year   int
		term   string
	)

	cmd := &cobra.Command{
		Use:   "clean [dataset] [file-or-dir]",
		Short: "Clean files without running a session",
		Long: `Cleans one file, or every file in a directory, against the dataset schema
and writes <name>_<table>.csv and <name>_errors.csv to the output directory.
Nothing is archived.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, args[0], args[1], output, year, term)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", ".", "Output directory")
	cmd.Flags().IntVar(&year, "year", 0, "Collection year (default: discovered from each file)")
	cmd.Flags().StringVar(&term, "term", "", "Collection term, used with --year")
	return cmd
}

func runClean(cmd *cobra.Command, name, input, output string, year int, term string) error {
	reg, err := loadDatasets()
	if err != nil {
		return err
	}
	ds, err := reg.Lookup(name)
	if err != nil {
		return err
	}
	files, err := listInputs(input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	out, err := vfs.NewLocal(output)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}

	var failed int
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		res, err := session.CleanFile(cmd.Context(), ds, out, session.CleanRequest{
			Filename: path,
			Data:     data,
			Year:     year,
			Term:     term,
		})
		if err != nil {
			failed++
			color.Red("  ✗ %s: %v", path, err)
			continue
		}
		status := color.GreenString("✓")
		if res.Errors.Len() > 0 {
			status = color.YellowString("○")
		}
		fmt.Printf("  %s %s: %d tables, %d errors\n", status, path, res.Tables.Len(), res.Errors.Len())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be cleaned", failed, len(files))
	}
	return nil
}
