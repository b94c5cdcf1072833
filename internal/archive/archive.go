package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/metrics"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// ErrRollupProtected is returned when deleting a roll-up without allowing it.
var ErrRollupProtected = errors.New("roll-up snapshots are protected")

// ManifestName is the file inside a roll-up listing the snapshots it folded.
const ManifestName = "snapshots.txt"

const tableExt = ".parquet"

// Archive is the snapshot store of one dataset.
type Archive struct {
	fs     vfs.FS
	cfg    *types.PipelineConfig
	mode   types.CombineMode
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Archive) { a.logger = l }
}

// WithClock overrides the time source used to name snapshots.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) { a.now = now }
}

// WithCombineMode sets how snapshots are folded into the current view.
func WithCombineMode(m types.CombineMode) Option {
	return func(a *Archive) { a.mode = m }
}

// New creates an archive rooted at fsys for the tables in cfg.
func New(fsys vfs.FS, cfg *types.PipelineConfig, opts ...Option) *Archive {
	a := &Archive{
		fs:     fsys,
		cfg:    cfg,
		mode:   types.CombineEager,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Add writes c as a new snapshot for la and returns its id.
func (a *Archive) Add(ctx context.Context, la, session string, c *frame.Container) (string, error) {
	return a.write(ctx, la, session, c, false)
}

func (a *Archive) write(ctx context.Context, la, session string, c *frame.Container, rollup bool) (string, error) {
	if la == "" {
		return "", fmt.Errorf("archive: authority code is required")
	}
	if session == "" || strings.Contains(session, "/") {
		return "", fmt.Errorf("archive: invalid session id %q", session)
	}
	if err := a.fs.MkdirAll(ctx, la); err != nil {
		return "", fmt.Errorf("creating %s: %w", la, err)
	}
	existing, err := a.snapshots(ctx, la)
	if err != nil {
		return "", err
	}

	id := SnapshotID{Timestamp: a.now().UTC().Format(TimestampLayout), Session: session, Rollup: rollup}
	for _, name := range existing {
		prev, err := ParseSnapshotID(name)
		if err != nil || prev.Timestamp != id.Timestamp {
			continue
		}
		if prev.Index >= id.Index {
			id.Index = prev.Index + 1
		}
	}

	dir := vfs.Join(la, id.String())
	if err := a.fs.MkdirAll(ctx, dir); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	for _, tc := range a.cfg.TableList {
		f, ok := c.Get(tc.ID)
		if !ok {
			continue
		}
		norm := Normalise(f, tc)
		path := vfs.Join(dir, tc.ID+tableExt)
		if err := vfs.WriteFile(ctx, a.fs, path, norm.WriteParquet); err != nil {
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
	}

	metrics.SnapshotsWritten.Add(ctx, 1, attribute.String("la", la))
	a.logger.Info("snapshot written", "la", la, "snapshot", id.String(), "tables", c.Len())
	return id.String(), nil
}

// snapshots returns the sorted snapshot ids of la.
func (a *Archive) snapshots(ctx context.Context, la string) ([]string, error) {
	names, err := a.fs.ListDir(ctx, la)
	if errors.Is(err, vfs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", la, err)
	}
	var ids []string
	for _, n := range names {
		if _, err := ParseSnapshotID(n); err == nil {
			ids = append(ids, n)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Authorities returns the authorities that have an archive directory.
func (a *Archive) Authorities(ctx context.Context) ([]string, error) {
	names, err := a.fs.ListDir(ctx, "")
	if errors.Is(err, vfs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing archive: %w", err)
	}
	return names, nil
}

// ListSnapshots returns every authority's snapshot ids in order.
func (a *Archive) ListSnapshots(ctx context.Context) (map[string][]string, error) {
	las, err := a.Authorities(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(las))
	for _, la := range las {
		ids, err := a.snapshots(ctx, la)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			out[la] = ids
		}
	}
	return out, nil
}

// ListRollups returns every authority's roll-up ids in order.
func (a *Archive) ListRollups(ctx context.Context) (map[string][]string, error) {
	all, err := a.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for la, ids := range all {
		for _, id := range ids {
			if IsRollup(id) {
				out[la] = append(out[la], id)
			}
		}
	}
	return out, nil
}

// ListCurrentSession returns, per authority, the newest roll-up and every
// snapshot after it, or all snapshots when there is no roll-up.
func (a *Archive) ListCurrentSession(ctx context.Context) (map[string][]string, error) {
	all, err := a.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(all))
	for la, ids := range all {
		out[la] = currentSession(ids)
	}
	return out, nil
}

func currentSession(ids []string) []string {
	for i := len(ids) - 1; i >= 0; i-- {
		if IsRollup(ids[i]) {
			return slices.Clone(ids[i:])
		}
	}
	return slices.Clone(ids)
}

// Load reads one snapshot. Tables without a file in the snapshot are absent
// from the result.
func (a *Archive) Load(ctx context.Context, la, id string) (*frame.Container, error) {
	dir := vfs.Join(la, id)
	ok, err := a.fs.Exists(ctx, dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("snapshot %s/%s: %w", la, id, vfs.ErrNotExist)
	}
	c := frame.NewContainer()
	for _, tc := range a.cfg.TableList {
		path := vfs.Join(dir, tc.ID+tableExt)
		data, err := vfs.ReadFile(ctx, a.fs, path)
		if errors.Is(err, vfs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		f, err := frame.ReadParquetBytes(data)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		c.Set(tc.ID, Normalise(f, tc))
	}
	return c, nil
}

// Current combines the current-session snapshots of la.
func (a *Archive) Current(ctx context.Context, la string) (*frame.Container, error) {
	ids, err := a.snapshots(ctx, la)
	if err != nil {
		return nil, err
	}
	return a.combineIDs(ctx, la, currentSession(ids))
}

func (a *Archive) combineIDs(ctx context.Context, la string, ids []string) (*frame.Container, error) {
	snaps := make([]*frame.Container, 0, len(ids))
	for _, id := range ids {
		c, err := a.Load(ctx, la, id)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, c)
	}
	return Combine(a.cfg, snaps, a.mode), nil
}

// Rollup folds each authority's current session into a new roll-up snapshot
// and returns the new ids by authority. An authority whose current session is
// already a single roll-up is left alone. Nothing is removed.
func (a *Archive) Rollup(ctx context.Context, session string) (map[string]string, error) {
	sessions, err := a.ListCurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	las := make([]string, 0, len(sessions))
	for la := range sessions {
		las = append(las, la)
	}
	sort.Strings(las)

	out := make(map[string]string, len(las))
	for _, la := range las {
		ids := sessions[la]
		if len(ids) == 0 || (len(ids) == 1 && IsRollup(ids[0])) {
			continue
		}
		c, err := a.combineIDs(ctx, la, ids)
		if err != nil {
			return nil, fmt.Errorf("rolling up %s: %w", la, err)
		}
		id, err := a.write(ctx, la, session, c, true)
		if err != nil {
			return nil, fmt.Errorf("rolling up %s: %w", la, err)
		}
		var manifest bytes.Buffer
		for _, s := range ids {
			manifest.WriteString(s)
			manifest.WriteByte('\n')
		}
		if err := vfs.WriteBytes(ctx, a.fs, vfs.Join(la, id, ManifestName), manifest.Bytes()); err != nil {
			return nil, fmt.Errorf("writing roll-up manifest: %w", err)
		}
		metrics.RollupsWritten.Add(ctx, 1, attribute.String("la", la))
		a.logger.Info("roll-up written", "la", la, "snapshot", id, "rolled_up", len(ids))
		out[la] = id
	}
	return out, nil
}

// Manifest returns the snapshot ids folded into a roll-up.
func (a *Archive) Manifest(ctx context.Context, la, id string) ([]string, error) {
	data, err := vfs.ReadFile(ctx, a.fs, vfs.Join(la, id, ManifestName))
	if err != nil {
		return nil, err
	}
	return strings.Fields(string(data)), nil
}

// Delete removes snapshots of la. If any id is a roll-up and allowRollups is
// false, nothing is removed and the error wraps ErrRollupProtected.
func (a *Archive) Delete(ctx context.Context, la string, ids []string, allowRollups bool) error {
	for _, id := range ids {
		if _, err := ParseSnapshotID(id); err != nil {
			return err
		}
		if IsRollup(id) && !allowRollups {
			return fmt.Errorf("deleting %s/%s: %w", la, id, ErrRollupProtected)
		}
	}
	for _, id := range ids {
		if err := a.fs.RemoveAll(ctx, vfs.Join(la, id)); err != nil {
			return fmt.Errorf("deleting %s/%s: %w", la, id, err)
		}
		a.logger.Info("snapshot deleted", "la", la, "snapshot", id)
	}
	return nil
}
