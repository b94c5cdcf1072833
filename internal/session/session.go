// Package session runs one pass of the returns pipeline for a dataset: it
// takes in every source file, cleans, enriches and degrades it, appends the
// result to the archive and refreshes the per-authority and export views.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/archive"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/authority"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/errorlist"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/metrics"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/schema"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/telemetry"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/transform"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// Session folder layout, relative to the dataset output root.
const (
	SessionsDir  = "sessions"
	IncomingDir  = "incoming"
	CleanedDir   = "cleaned"
	EnrichedDir  = "enriched"
	DegradedDir  = "degraded"
	CurrentDir   = "current"
	ExportDir    = "export"
	ErrorSummary = "error_summary.csv"
	MetaSuffix   = "_meta.yaml"

	// FolderLayout formats the session folder name.
	FolderLayout = "20060102T150405.000000"
)

// Runner runs sessions for one dataset.
type Runner struct {
	ds          *dataset.Dataset
	source      vfs.FS
	output      vfs.FS
	archive     *archive.Archive
	transforms  *transform.Registry
	authorities *authority.Registry

	laCode    string
	profiles  []string
	minYear   int
	logger    *slog.Logger
	now       func() time.Time
	newUUID   func() string
	newSessID func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock overrides the time source used to name session folders.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithAuthority fixes the authority of every file instead of discovering it
// from file names.
func WithAuthority(code string) Option {
	return func(r *Runner) { r.laCode = code }
}

// WithAuthorities sets the registry used to discover authorities.
func WithAuthorities(a *authority.Registry) Option {
	return func(r *Runner) { r.authorities = a }
}

// WithProfiles limits the export profiles written. The default is every
// profile named in the pipeline config.
func WithProfiles(p ...string) Option {
	return func(r *Runner) { r.profiles = p }
}

// WithMinYear rejects files whose collection year is below y.
func WithMinYear(y int) Option {
	return func(r *Runner) { r.minYear = y }
}

// WithIDs overrides the file uuid and session id generators.
func WithIDs(file, session func() string) Option {
	return func(r *Runner) {
		if file != nil {
			r.newUUID = file
		}
		if session != nil {
			r.newSessID = session
		}
	}
}

// New creates a runner reading from source and writing sessions and views
// to output. The dataset's own transforms are registered on transforms.
func New(ds *dataset.Dataset, source, output vfs.FS, arch *archive.Archive, transforms *transform.Registry, opts ...Option) *Runner {
	r := &Runner{
		ds:          ds,
		source:      source,
		output:      output,
		archive:     arch,
		transforms:  transforms,
		authorities: authority.Default(),
		logger:      slog.Default(),
		now:         time.Now,
		newUUID:     uuid.NewString,
		newSessID:   func() string { return ulid.Make().String() },
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With("dataset", ds.Name())
	ds.Register(transforms)
	return r
}

// Dataset returns the dataset the runner processes.
func (r *Runner) Dataset() *dataset.Dataset { return r.ds }

// FileResult is the outcome of one file.
type FileResult struct {
	UUID     string
	Filename string
	LA       string
	Year     int
	Term     string
	Stage    types.FileStage
	Snapshot string
	Errors   int
}

// Report summarises a session.
type Report struct {
	SessionID string
	Folder    string
	Files     []FileResult
	Errors    *errorlist.List
	Rollups   map[string]string
}

// Failed returns the files that did not reach the archive.
func (r *Report) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Stage == types.StageFailed {
			out = append(out, f)
		}
	}
	return out
}

// Run executes a session. Per-file problems are recorded in the report's
// error list and never stop the session; schema or filesystem failures do.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	id := r.newSessID()
	folder := vfs.Join(SessionsDir, r.now().UTC().Format(FolderLayout))
	logger := r.logger.With("session_id", id)

	ctx, span := telemetry.Tracer().Start(ctx, "session.run", trace.WithAttributes(
		attribute.String("dataset", r.ds.Name()),
		attribute.String("session_id", id),
	))
	defer span.End()

	report, err := r.run(ctx, id, folder, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	metrics.SessionsRun.Add(ctx, 1, attribute.String("dataset", r.ds.Name()))
	logger.Info("session complete", "files", len(report.Files), "failed", len(report.Failed()), "errors", report.Errors.Len())
	return report, nil
}

func (r *Runner) run(ctx context.Context, id, folder string, logger *slog.Logger) (*Report, error) {
	report := &Report{SessionID: id, Folder: folder, Errors: &errorlist.List{}}
	for _, dir := range []string{IncomingDir, CleanedDir, EnrichedDir, DegradedDir} {
		if err := r.output.MkdirAll(ctx, vfs.Join(folder, dir)); err != nil {
			return report, fmt.Errorf("creating session folder: %w", err)
		}
	}

	locators, err := r.intake(ctx, folder)
	if err != nil {
		return report, err
	}
	logger.Info("files taken in", "files", len(locators), "folder", folder)

	for _, loc := range locators {
		res, errs, err := r.processFile(ctx, id, folder, loc)
		if err != nil {
			return report, err
		}
		if err := errs.SetProperty(errorlist.PropSessionID, id); err != nil {
			return report, err
		}
		report.Files = append(report.Files, res)
		report.Errors.Extend(errs)
	}

	if err := vfs.WriteFile(ctx, r.output, vfs.Join(folder, ErrorSummary), report.Errors.WriteCSV); err != nil {
		return report, fmt.Errorf("writing error summary: %w", err)
	}
	metrics.ErrorsRecorded.Add(ctx, int64(report.Errors.Len()), attribute.String("dataset", r.ds.Name()))

	rollups, err := r.archive.Rollup(ctx, id)
	if err != nil {
		return report, fmt.Errorf("rolling up archive: %w", err)
	}
	report.Rollups = rollups

	if err := r.writeCurrent(ctx); err != nil {
		return report, err
	}
	if err := r.writeExports(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// fatal reports whether a per-file error should end the whole session.
// Broken schema files affect every file of the dataset.
func fatal(err error) bool {
	var pe *schema.ParseError
	return errors.As(err, &pe) || errors.Is(err, schema.ErrInvalidSchemaDiff) || errors.Is(err, schema.ErrSchemaPathMissing)
}
