// Package alert sends session outcomes to the sinks configured for a
// project.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/session"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// Sink is an alert destination.
type Sink interface {
	Send(ctx context.Context, alert types.Alert) error
	Name() string
}

type routedSink struct {
	Sink
	minLevel types.AlertLevel
}

// Dispatcher routes alerts to configured sinks.
type Dispatcher struct {
	sinks  []routedSink
	logger *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*dispatcherOptions)

type dispatcherOptions struct {
	logger    *slog.Logger
	snsClient SNSAPI
	region    string
}

// WithLogger sets the logger used for sink failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *dispatcherOptions) { o.logger = l }
}

// WithRegion sets the AWS region of sns sinks.
func WithRegion(region string) Option {
	return func(o *dispatcherOptions) { o.region = region }
}

// WithSNS sets the client used by sns sinks.
func WithSNS(c SNSAPI) Option {
	return func(o *dispatcherOptions) { o.snsClient = c }
}

// NewDispatcher creates a dispatcher from alert configs.
func NewDispatcher(configs []types.AlertConfig, opts ...Option) (*Dispatcher, error) {
	o := dispatcherOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	d := &Dispatcher{logger: o.logger}
	for _, cfg := range configs {
		sink, err := newSink(cfg, o)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.Add(sink, cfg.MinLevel)
	}
	return d, nil
}

// Add registers a sink that receives alerts at or above level.
func (d *Dispatcher) Add(s Sink, level types.AlertLevel) {
	d.sinks = append(d.sinks, routedSink{Sink: s, minLevel: level})
}

// Len returns the number of sinks.
func (d *Dispatcher) Len() int { return len(d.sinks) }

// Dispatch sends an alert to every sink whose level it meets. A failing sink
// is logged and does not stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert) {
	for _, sink := range d.sinks {
		if alert.Level.Rank() < sink.minLevel.Rank() {
			continue
		}
		if err := sink.Send(ctx, alert); err != nil {
			d.logger.Error("alert delivery failed", "sink", sink.Name(), "dataset", alert.Dataset, "error", err)
		}
	}
}

// FromReport builds the alert for a finished session. Sessions with failed
// files raise a warning, sessions where every file failed raise an error.
func FromReport(dataset string, report *session.Report, now time.Time) types.Alert {
	a := types.Alert{
		Level:     types.AlertLevelInfo,
		Dataset:   dataset,
		SessionID: report.SessionID,
		Files:     len(report.Files),
		Timestamp: now.UTC(),
	}
	if report.Errors != nil {
		a.Errors = report.Errors.Len()
	}
	for _, f := range report.Failed() {
		a.FailedFiles = append(a.FailedFiles, f.Filename)
	}

	failed := len(a.FailedFiles)
	switch {
	case a.Files == 0:
		a.Message = "no files to process"
	case failed == 0:
		a.Message = fmt.Sprintf("%d files archived", a.Files)
	case failed == a.Files:
		a.Level = types.AlertLevelError
		a.Message = fmt.Sprintf("all %d files failed", a.Files)
	default:
		a.Level = types.AlertLevelWarning
		a.Message = fmt.Sprintf("%d of %d files failed", failed, a.Files)
	}
	return a
}

func newSink(cfg types.AlertConfig, o dispatcherOptions) (Sink, error) {
	switch cfg.Type {
	case types.AlertConsole:
		return NewConsoleSink(), nil
	case types.AlertWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("webhook URL required")
		}
		return NewWebhookSink(cfg.URL, o.logger), nil
	case types.AlertFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		return NewFileSink(cfg.Path)
	case types.AlertSNS:
		snsOpts := []SNSSinkOption{WithSNSRegion(o.region)}
		if o.snsClient != nil {
			snsOpts = append(snsOpts, WithSNSClient(o.snsClient))
		}
		return NewSNSSink(cfg.TopicARN, snsOpts...)
	default:
		return nil, fmt.Errorf("unknown alert type %q", cfg.Type)
	}
}
