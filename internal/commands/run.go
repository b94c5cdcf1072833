package commands

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/alert"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/secrets"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/session"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

const runTimeout = 30 * time.Minute

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var authority string

	cmd := &cobra.Command{
		Use:   "run [dataset...]",
		Short: "Run a session for each configured dataset",
		Long: `Takes in every file in the source location, cleans, enriches and degrades
it, archives the result per authority and refreshes the current and export
views. Datasets default to those listed in liia.yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(cmd, args, authority)
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "Authority code for every file (overrides liia.yaml)")
	return cmd
}

func runSessions(cmd *cobra.Command, datasets []string, authority string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	p, err := loadProject(ctx, cmd)
	if err != nil {
		return err
	}
	defer p.close(context.WithoutCancel(ctx))

	if len(datasets) > 0 {
		p.cfg.Datasets = datasets
	}
	if authority != "" {
		p.cfg.Authority = authority
	}

	runners, alerts, err := p.sessionRunners(ctx)
	if err != nil {
		return err
	}

	for _, r := range runners {
		color.Cyan("Running %s session...\n", r.Dataset().Name())
		report, err := r.Run(ctx)
		if err != nil {
			color.Red("Session failed: %v", err)
			return fmt.Errorf("%s session: %w", r.Dataset().Name(), err)
		}
		printReport(report)
		alerts.Dispatch(ctx, alert.FromReport(r.Dataset().Name(), report, time.Now()))
	}
	return nil
}

// sessionRunners resolves the hash secret and opens a runner for every
// configured dataset, along with the alert dispatcher.
func (p *project) sessionRunners(ctx context.Context) ([]*session.Runner, *alert.Dispatcher, error) {
	secret, err := secrets.NewResolver(p.cfg.AWS, secrets.WithLogger(p.logger)).HashSecret(ctx, p.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving hash secret: %w", err)
	}
	proj, err := session.OpenProject(ctx, p.cfg)
	if err != nil {
		return nil, nil, err
	}
	runners, err := proj.Runners(p.datasets, secret, p.logger)
	if err != nil {
		return nil, nil, err
	}
	alerts, err := alert.NewDispatcher(p.cfg.Alerts, alert.WithLogger(p.logger), alert.WithRegion(p.cfg.AWS.Region))
	if err != nil {
		return nil, nil, err
	}
	return runners, alerts, nil
}

func printReport(report *session.Report) {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Session %s (%s)\n", report.SessionID, report.Folder)

	for _, f := range report.Files {
		stage := string(f.Stage)
		switch f.Stage {
		case types.StageArchived:
			stage = color.GreenString(stage)
		case types.StageFailed:
			stage = color.RedString(stage)
		}
		fmt.Printf("  %-40s %-10s la=%-4s year=%-4d errors=%d\n", f.Filename, stage, f.LA, f.Year, f.Errors)
	}
	if len(report.Files) == 0 {
		fmt.Println("  No files in source.")
	}

	if failed := report.Failed(); len(failed) > 0 {
		color.Yellow("  %d of %d files failed; see %s/%s", len(failed), len(report.Files), report.Folder, session.ErrorSummary)
	}
	for _, la := range slices.Sorted(maps.Keys(report.Rollups)) {
		fmt.Printf("  rollup %s: %s\n", la, report.Rollups[la])
	}
	fmt.Println()
}
