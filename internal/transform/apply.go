package transform

import (
	"fmt"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// Enrich applies every column's enrich chain to the configured tables in c.
// Functions in a chain run in order, each seeing the previous one's result.
// Columns named by the config but absent from a table are added. Tables
// without a config pass through unchanged.
func (r *Registry) Enrich(c *frame.Container, cfg *types.PipelineConfig, meta types.Metadata) (*frame.Container, error) {
	out := c.Clone()
	for _, tc := range cfg.TableList {
		f, ok := out.Get(tc.ID)
		if !ok {
			continue
		}
		for _, col := range tc.Columns {
			if len(col.Enrich) == 0 {
				continue
			}
			fns := make([]Func, len(col.Enrich))
			for i, name := range col.Enrich {
				fn, err := r.lookup(r.enrich, name)
				if err != nil {
					return nil, fmt.Errorf("enrich %s.%s: %w", tc.ID, col.ID, err)
				}
				fns[i] = fn
			}
			if err := apply(f, col, meta, fns, col.Enrich); err != nil {
				return nil, fmt.Errorf("%w: enrich %s.%s: %v", ErrTransform, tc.ID, col.ID, err)
			}
		}
		r.logger.Debug("enriched table", "table", tc.ID, "rows", f.Len())
	}
	return out, nil
}

// Degrade applies every column's degrade function to the configured tables.
// It is all or nothing: on any failure the result is an empty container and
// an error wrapping ErrTransform.
func (r *Registry) Degrade(c *frame.Container, cfg *types.PipelineConfig, meta types.Metadata) (*frame.Container, error) {
	out := c.Clone()
	for _, tc := range cfg.TableList {
		f, ok := out.Get(tc.ID)
		if !ok {
			continue
		}
		for _, col := range tc.Columns {
			if col.Degrade == "" {
				continue
			}
			fn, err := r.lookup(r.degrade, col.Degrade)
			if err != nil {
				return frame.NewContainer(), fmt.Errorf("degrade %s.%s: %w", tc.ID, col.ID, err)
			}
			if !f.HasColumn(col.ID) {
				continue
			}
			if err := apply(f, col, meta, []Func{fn}, []string{col.Degrade}); err != nil {
				return frame.NewContainer(), fmt.Errorf("%w: degrade %s.%s: %v", ErrTransform, tc.ID, col.ID, err)
			}
		}
		r.logger.Debug("degraded table", "table", tc.ID, "rows", f.Len())
	}
	return out, nil
}

func apply(f *frame.Frame, col types.ColumnConfig, meta types.Metadata, fns []Func, names []string) error {
	f.AddColumn(col.ID)
	if col.Type != "" {
		f.SetKind(col.ID, frame.KindFor(col.Type))
	}
	for i, row := range f.Rows() {
		v := row[col.ID]
		for j, fn := range fns {
			next, err := fn(meta, v, row)
			if err != nil {
				return fmt.Errorf("row %d: %s: %w", i, names[j], err)
			}
			v = next
		}
		row[col.ID] = v
	}
	return nil
}

// PrepareExport projects c for a profile. Only tables whose retain list
// includes profile are kept, each restricted to the columns whose exclude
// list omits it, in config order. An empty profile keeps every configured
// table and column. Selected columns missing from a table are null.
func PrepareExport(c *frame.Container, cfg *types.PipelineConfig, profile string) *frame.Container {
	out := frame.NewContainer()
	for _, tc := range cfg.TableList {
		if profile != "" && !tc.Retain.Contains(profile) {
			continue
		}
		f, ok := c.Get(tc.ID)
		if !ok {
			continue
		}
		var cols []string
		for _, col := range tc.Columns {
			if profile != "" && col.Exclude.Contains(profile) {
				continue
			}
			cols = append(cols, col.ID)
		}
		p := f.Project(cols)
		for _, col := range tc.Columns {
			if col.Type != "" && p.HasColumn(col.ID) {
				p.SetKind(col.ID, frame.KindFor(col.Type))
			}
		}
		out.Set(tc.ID, p)
	}
	return out
}
