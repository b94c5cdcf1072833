package archive

import (
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// Normalise projects f onto the configured columns in config order, adding
// missing ones as null, and declares each column's storage kind.
func Normalise(f *frame.Frame, tc types.TableConfig) *frame.Frame {
	out := f.Project(tc.ColumnIDs())
	for _, col := range tc.Columns {
		if k := frame.KindFor(col.Type); k != frame.KindUnknown {
			out.SetKind(col.ID, k)
		}
	}
	return out
}

// Dedup sorts f stably by the table's sort keys and keeps the last row for
// each unique-key tuple. Without unique keys only the sort is applied.
func Dedup(f *frame.Frame, tc types.TableConfig) *frame.Frame {
	out := f.Clone()
	out.SortStable(tc.SortKeys()...)
	keys := tc.UniqueKeys()
	if len(keys) == 0 {
		return out
	}
	return out.DropDuplicates(keys...)
}

// Combine folds snapshots together table by table, in the order given.
func Combine(cfg *types.PipelineConfig, snapshots []*frame.Container, mode types.CombineMode) *frame.Container {
	out := frame.NewContainer()
	for _, tc := range cfg.TableList {
		var acc *frame.Frame
		for _, snap := range snapshots {
			f, ok := snap.Get(tc.ID)
			if !ok {
				continue
			}
			f = Normalise(f, tc)
			if acc == nil {
				acc = f
			} else {
				acc = Normalise(frame.Concat(acc, f), tc)
			}
			if mode == types.CombineEager {
				acc = Dedup(acc, tc)
			}
		}
		if acc == nil {
			continue
		}
		if mode == types.CombineAggregate {
			acc = Dedup(acc, tc)
		}
		out.Set(tc.ID, acc)
	}
	return out
}
