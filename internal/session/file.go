package session

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/adapter"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/dataset"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/errorlist"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/lifecycle"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/metrics"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/schema"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/telemetry"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/transform"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// fileError is a per-file failure that stops processing of that file.
type fileError struct {
	kind types.ErrorKind
	err  error
}

func (e *fileError) Error() string { return e.err.Error() }
func (e *fileError) Unwrap() error { return e.err }

func failFile(kind types.ErrorKind, err error) error {
	return &fileError{kind: kind, err: err}
}

type fileRun struct {
	r       *Runner
	session string
	folder  string
	loc     Locator
	tracker *lifecycle.Tracker
	result  FileResult
	errs    *errorlist.List
}

// processFile runs one incoming file through every stage. The returned error
// is non-nil only when the whole session has to stop.
func (r *Runner) processFile(ctx context.Context, session, folder string, loc Locator) (FileResult, *errorlist.List, error) {
	fr := &fileRun{
		r:       r,
		session: session,
		folder:  folder,
		loc:     loc,
		tracker: lifecycle.NewTracker(),
		result:  FileResult{UUID: loc.Meta.UUID, Filename: loc.Meta.Name, Stage: types.StageIncoming},
		errs:    &errorlist.List{},
	}
	ctx, span := telemetry.Tracer().Start(ctx, "session.file", trace.WithAttributes(
		attribute.String("uuid", loc.Meta.UUID),
		attribute.String("filename", loc.Meta.Name),
	))
	defer span.End()

	logger := r.logger.With("uuid", loc.Meta.UUID, "filename", loc.Meta.Name)
	attrs := attribute.String("dataset", r.ds.Name())

	err := fr.run(ctx)
	fr.result.Stage = fr.tracker.Stage()
	switch {
	case err == nil:
		metrics.FilesProcessed.Add(ctx, 1, attrs)
		logger.Info("file archived", "la", fr.result.LA, "year", fr.result.Year, "snapshot", fr.result.Snapshot, "errors", fr.errs.Len())
	case fatal(err):
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fr.result, fr.errs, fmt.Errorf("%s: %w", loc.Meta.Name, err)
	default:
		reached := fr.result.Stage
		fr.tracker.Fail()
		fr.result.Stage = types.StageFailed
		kind := types.ErrOther
		var fe *fileError
		if errors.As(err, &fe) {
			kind = fe.kind
		}
		rec := errorlist.New(kind, "file failed after reaching %s", reached)
		rec.Exception = err.Error()
		fr.errs.Append(rec)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.FilesFailed.Add(ctx, 1, attrs)
		logger.Warn("file failed", "type", kind, "error", err)
	}

	if err := fr.errs.SetProperty(errorlist.PropUUID, loc.Meta.UUID); err != nil {
		return fr.result, fr.errs, err
	}
	if err := fr.errs.SetDefault(errorlist.PropFilename, loc.Meta.Name); err != nil {
		return fr.result, fr.errs, err
	}
	fr.result.Errors = fr.errs.Len()
	return fr.result, fr.errs, nil
}

func (f *fileRun) run(ctx context.Context) error {
	r, meta := f.r, f.loc.Meta
	data, err := vfs.ReadFile(ctx, r.output, f.loc.Path)
	if err != nil {
		return failFile(types.ErrStream, err)
	}
	src, err := adapter.Open(meta.Name, data)
	if err != nil {
		return failFile(types.ErrEncoding, err)
	}

	year, term, err := r.ds.DiscoverYear(meta.Name, src)
	if err != nil {
		return failFile(types.ErrMissingYear, err)
	}
	f.result.Year, f.result.Term = year, term
	if r.minYear > 0 && year < r.minYear {
		return failFile(types.ErrOldYear, fmt.Errorf("%s: year %d is before %d", meta.Name, year, r.minYear))
	}

	la, laName, err := r.authorityFor(meta.Name)
	if err != nil {
		return failFile(types.ErrMissingAuthority, err)
	}
	f.result.LA = la

	res, err := r.ds.Clean(src, meta.Name, year, term)
	if err != nil {
		switch {
		case errors.Is(err, schema.ErrNoSchemaForYear):
			return failFile(types.ErrNoSchemaForYear, err)
		case errors.Is(err, dataset.ErrStream):
			return failFile(types.ErrStream, err)
		}
		return err
	}
	f.errs.Extend(res.Errors)
	if err := f.advance(ctx, types.StageCleaned, CleanedDir, res.Tables); err != nil {
		return err
	}

	tmeta := types.Metadata{
		Dataset:   r.ds.Name(),
		LACode:    la,
		LAName:    laName,
		Year:      year,
		Term:      term,
		UUID:      meta.UUID,
		SessionID: f.session,
		Filename:  meta.Name,
	}
	enriched, err := r.transforms.Enrich(res.Tables, r.ds.Pipeline(), tmeta)
	if err != nil {
		return transformFailure(err)
	}
	if err := f.advance(ctx, types.StageEnriched, EnrichedDir, enriched); err != nil {
		return err
	}
	degraded, err := r.transforms.Degrade(enriched, r.ds.Pipeline(), tmeta)
	if err != nil {
		return transformFailure(err)
	}
	if err := f.advance(ctx, types.StageDegraded, DegradedDir, degraded); err != nil {
		return err
	}

	id, err := r.archive.Add(ctx, la, f.session, degraded)
	if err != nil {
		return fmt.Errorf("archiving %s: %w", meta.Name, err)
	}
	f.result.Snapshot = id
	return f.tracker.Advance(types.StageArchived)
}

func transformFailure(err error) error {
	if errors.Is(err, transform.ErrTransform) {
		return failFile(types.ErrTransform, err)
	}
	return err
}

// advance exports c as the artefacts of stage and moves the tracker on.
func (f *fileRun) advance(ctx context.Context, stage types.FileStage, dir string, c *frame.Container) error {
	err := c.WriteTables(ctx, f.r.output, frame.FormatParquet, func(table string) string {
		return vfs.Join(f.folder, dir, f.loc.Meta.UUID+"_"+table+".parquet")
	})
	if err != nil {
		return fmt.Errorf("exporting %s tables: %w", dir, err)
	}
	return f.tracker.Advance(stage)
}

// authorityFor returns the code and name of the authority a file belongs to.
func (r *Runner) authorityFor(filename string) (string, string, error) {
	if r.laCode != "" {
		return r.laCode, r.authorities.Name(r.laCode), nil
	}
	if a, ok := r.authorities.FromFilename(filename); ok {
		return a.Code, a.Name, nil
	}
	return "", "", fmt.Errorf("%s: no authority configured or found in file name", filename)
}
