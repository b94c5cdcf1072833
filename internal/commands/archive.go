package commands

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/archive"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/session"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
)

// NewArchiveCmd creates the archive command group.
func NewArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect and maintain the per-authority archive",
	}
	cmd.AddCommand(
		newArchiveListCmd(),
		newArchiveCurrentCmd(),
		newArchiveRollupCmd(),
		newArchiveDeleteCmd(),
	)
	return cmd
}

// withArchive opens the archive of one dataset from the project config.
func withArchive(cmd *cobra.Command, name string, fn func(context.Context, *archive.Archive) error) error {
	ctx := cmd.Context()
	p, err := loadProject(ctx, cmd)
	if err != nil {
		return err
	}
	defer p.close(context.WithoutCancel(ctx))

	ds, err := p.datasets.Lookup(name)
	if err != nil {
		return err
	}
	proj, err := session.OpenProject(ctx, p.cfg)
	if err != nil {
		return err
	}
	a, err := proj.DatasetArchive(ds, p.logger)
	if err != nil {
		return err
	}
	return fn(ctx, a)
}

func newArchiveListCmd() *cobra.Command {
	var rollupsOnly bool
	cmd := &cobra.Command{
		Use:   "list [dataset]",
		Short: "List snapshots by authority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd, args[0], func(ctx context.Context, a *archive.Archive) error {
				list := a.ListSnapshots
				if rollupsOnly {
					list = a.ListRollups
				}
				snaps, err := list(ctx)
				if err != nil {
					return err
				}
				printSnapshots(snaps)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&rollupsOnly, "rollups", false, "Only list roll-ups")
	return cmd
}

func printSnapshots(snaps map[string][]string) {
	if len(snaps) == 0 {
		fmt.Println("Archive is empty.")
		return
	}
	bold := color.New(color.Bold)
	for _, la := range slices.Sorted(maps.Keys(snaps)) {
		_, _ = bold.Printf("%s\n", la)
		for _, id := range snaps[la] {
			if archive.IsRollup(id) {
				fmt.Printf("  %s\n", color.CyanString(id))
			} else {
				fmt.Printf("  %s\n", id)
			}
		}
	}
}

func newArchiveCurrentCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "current [dataset] [authority]",
		Short: "Show or export the combined current view of an authority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, la := args[0], strings.ToUpper(args[1])
			return withArchive(cmd, name, func(ctx context.Context, a *archive.Archive) error {
				c, err := a.Current(ctx, la)
				if err != nil {
					return err
				}
				for _, table := range c.Names() {
					f, _ := c.Get(table)
					fmt.Printf("  %-20s %d rows\n", table, f.Len())
				}
				if output == "" {
					return nil
				}
				out, err := vfs.NewLocal(output)
				if err != nil {
					return err
				}
				err = c.WriteTables(ctx, out, frame.FormatCSV, func(table string) string {
					return name + "_" + table + ".csv"
				})
				if err != nil {
					return err
				}
				color.Green("  ✓ Written to %s", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the view as CSV files to this directory")
	return cmd
}

func newArchiveRollupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollup [dataset]",
		Short: "Fold each authority's current session into a roll-up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd, args[0], func(ctx context.Context, a *archive.Archive) error {
				rolled, err := a.Rollup(ctx, ulid.Make().String())
				if err != nil {
					return err
				}
				if len(rolled) == 0 {
					fmt.Println("Nothing to roll up.")
				}
				for _, la := range slices.Sorted(maps.Keys(rolled)) {
					color.Green("  ✓ %s: %s", la, rolled[la])
				}
				return nil
			})
		},
	}
}

func newArchiveDeleteCmd() *cobra.Command {
	var allowRollups bool
	cmd := &cobra.Command{
		Use:   "delete [dataset] [authority] [snapshot...]",
		Short: "Delete snapshots of an authority",
		Long:  "Deletes the named snapshots. Roll-ups are protected unless --allow-rollups is given.",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, la, ids := args[0], strings.ToUpper(args[1]), args[2:]
			return withArchive(cmd, name, func(ctx context.Context, a *archive.Archive) error {
				if err := a.Delete(ctx, la, ids, allowRollups); err != nil {
					return err
				}
				color.Green("  ✓ Deleted %d snapshots of %s", len(ids), la)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&allowRollups, "allow-rollups", false, "Allow roll-ups to be deleted")
	return cmd
}
