// Package watcher polls dataset sources and runs a session whenever files
// are waiting.
package watcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/session"
)

// DefaultInterval is used when no positive interval is configured.
const DefaultInterval = 30 * time.Second

// Runner is the part of a session runner the watcher drives.
type Runner interface {
	Pending(ctx context.Context) (int, error)
	Run(ctx context.Context) (*session.Report, error)
}

// ReportFunc receives the report of every session the watcher runs.
type ReportFunc func(ctx context.Context, dataset string, report *session.Report)

// Watcher periodically checks each dataset source and runs a session for
// those holding files.
type Watcher struct {
	runners  map[string]Runner
	order    []string
	onReport ReportFunc
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Watcher.
func New(interval time.Duration, onReport ReportFunc, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		runners:  make(map[string]Runner),
		onReport: onReport,
		interval: interval,
		logger:   logger,
	}
}

// Add registers the runner for a dataset. Datasets are polled in the order
// they were added.
func (w *Watcher) Add(dataset string, r Runner) {
	if _, ok := w.runners[dataset]; !ok {
		w.order = append(w.order, dataset)
	}
	w.runners[dataset] = r
}

// Start begins the watcher polling loop.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.logger.Info("watcher started", "interval", w.interval, "datasets", w.order)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		// Run immediately on start
		w.Poll(ctx)

		for {
			select {
			case <-ctx.Done():
				w.logger.Info("watcher stopping")
				return
			case <-ticker.C:
				w.Poll(ctx)
			}
		}
	}()
}

// Stop gracefully shuts down the watcher. A session in progress is allowed
// to finish until ctx expires.
func (w *Watcher) Stop(ctx context.Context) {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("watcher stopped")
	case <-ctx.Done():
		w.logger.Warn("watcher stop timed out")
	}
}

// Poll runs one pass over every dataset and returns the number of sessions
// run. Failures are logged and the pass moves on to the next dataset.
func (w *Watcher) Poll(ctx context.Context) int {
	ran := 0
	for _, name := range w.order {
		if ctx.Err() != nil {
			return ran
		}
		r := w.runners[name]
		n, err := r.Pending(ctx)
		if err != nil {
			w.logger.Error("failed to check source", "dataset", name, "error", err)
			continue
		}
		if n == 0 {
			continue
		}

		w.logger.Info("files waiting", "dataset", name, "files", n)
		report, err := r.Run(ctx)
		if err != nil {
			w.logger.Error("session failed", "dataset", name, "error", err)
			continue
		}
		ran++
		if w.onReport != nil {
			w.onReport(ctx, name, report)
		}
	}
	return ran
}
