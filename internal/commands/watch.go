package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/alert"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/session"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/watcher"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the source and run a session whenever files arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", watcher.DefaultInterval, "Polling interval")
	return cmd
}

func runWatch(cmd *cobra.Command, interval time.Duration) error {
	ctx := cmd.Context()
	p, err := loadProject(ctx, cmd)
	if err != nil {
		return err
	}
	defer p.close(context.WithoutCancel(ctx))

	runners, alerts, err := p.sessionRunners(ctx)
	if err != nil {
		return err
	}

	w := watcher.New(interval, func(ctx context.Context, dataset string, report *session.Report) {
		printReport(report)
		alerts.Dispatch(ctx, alert.FromReport(dataset, report, time.Now()))
	}, p.logger)
	for _, r := range runners {
		w.Add(r.Dataset().Name(), r)
	}

	color.Cyan("Watching %s every %s (Ctrl-C to stop)", p.cfg.Source, interval)
	w.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		color.Yellow("\nReceived %s, shutting down...", sig)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	w.Stop(shutdownCtx)
	color.Green("Watcher stopped")
	return nil
}
