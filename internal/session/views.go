package session

import (
	"context"
	"fmt"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/transform"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/vfs"
)

// viewName names a table file in the current and export views.
func (r *Runner) viewName(table string) string {
	return r.ds.Name() + "_" + table + ".csv"
}

// currentViews loads the combined current view of every archived authority.
func (r *Runner) currentViews(ctx context.Context) (map[string]*frame.Container, []string, error) {
	las, err := r.archive.Authorities(ctx)
	if err != nil {
		return nil, nil, err
	}
	out := make(map[string]*frame.Container, len(las))
	for _, la := range las {
		c, err := r.archive.Current(ctx, la)
		if err != nil {
			return nil, nil, fmt.Errorf("combining %s: %w", la, err)
		}
		out[la] = c
	}
	return out, las, nil
}

// writeCurrent replaces current/<la>/ with the authority's combined view.
func (r *Runner) writeCurrent(ctx context.Context) error {
	views, las, err := r.currentViews(ctx)
	if err != nil {
		return err
	}
	for _, la := range las {
		dir := vfs.Join(CurrentDir, la)
		if err := r.output.RemoveAll(ctx, dir); err != nil {
			return fmt.Errorf("clearing %s: %w", dir, err)
		}
		if err := r.output.MkdirAll(ctx, dir); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		err := views[la].WriteTables(ctx, r.output, frame.FormatCSV, func(table string) string {
			return vfs.Join(dir, r.viewName(table))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// writeExports writes one shared view per profile. Each table is the union
// of every authority's current view, projected for the profile.
func (r *Runner) writeExports(ctx context.Context) error {
	views, las, err := r.currentViews(ctx)
	if err != nil {
		return err
	}
	merged := frame.NewContainer()
	for _, tc := range r.ds.Pipeline().TableList {
		var parts []*frame.Frame
		for _, la := range las {
			if f, ok := views[la].Get(tc.ID); ok {
				parts = append(parts, f)
			}
		}
		if len(parts) > 0 {
			merged.Set(tc.ID, frame.Concat(parts...))
		}
	}

	profiles := r.profiles
	if len(profiles) == 0 {
		profiles = r.ds.Pipeline().Profiles()
	}
	for _, p := range profiles {
		dir := vfs.Join(ExportDir, p)
		if err := r.output.RemoveAll(ctx, dir); err != nil {
			return fmt.Errorf("clearing %s: %w", dir, err)
		}
		if err := r.output.MkdirAll(ctx, dir); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		out := transform.PrepareExport(merged, r.ds.Pipeline(), p)
		err := out.WriteTables(ctx, r.output, frame.FormatCSV, func(table string) string {
			return vfs.Join(dir, r.viewName(table))
		})
		if err != nil {
			return err
		}
		r.logger.Debug("export written", "profile", p, "tables", out.Len())
	}
	return nil
}
