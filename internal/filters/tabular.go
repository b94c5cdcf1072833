// Package filters implements the stream transformers that match headers to
// tables, attach column definitions, coerce cell types, record errors and
// assemble rows and tables. Filters are composed with events.Pipe; the
// collectors hand their results back through explicit holders.
package filters

import (
	"errors"
	"strings"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/errorlist"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/events"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/schema"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// Property names an inheritable event attribute.
type Property string

// Inheritable properties.
const (
	PropTableName Property = "table_name"
	PropTableSpec Property = "table_spec"
	PropFilename  Property = "filename"
)

// StripText trims cell and text values. Text nodes left empty are dropped;
// empty cells pass through.
func StripText() events.Filter {
	return func(in events.Stream) events.Stream {
		return func(yield func(events.Event) bool) {
			for ev := range in {
				switch ev.Kind {
				case events.TextNode:
					s := strings.TrimSpace(ev.Text())
					if s == "" {
						continue
					}
					ev.Value = s
				case events.Cell:
					if s, ok := ev.Value.(string); ok {
						ev.Value = strings.TrimSpace(s)
					}
				}
				if !yield(ev) {
					return
				}
			}
		}
	}
}

// AddFilename sets the filename on every event.
func AddFilename(name string) events.Filter {
	return events.Map(func(ev events.Event) events.Event {
		ev.Filename = name
		return ev
	})
}

// AddTableName identifies each table from its headers. Unmatched tables
// carry an UnidentifiedTable error and tables with only blank headers a
// BlankHeaders error.
func AddTableName(ds *schema.DataSchema) events.Filter {
	return events.Map(func(ev events.Event) events.Event {
		if ev.Kind != events.StartTable {
			return ev
		}
		if allBlank(ev.Headers) {
			return ev.WithError(errorlist.New(types.ErrBlankHeaders, "table %s has no headers", ev.Tag))
		}
		name, ok, err := ds.TableFromHeaders(ev.Headers)
		if err != nil {
			rec := errorlist.New(types.ErrUnidentifiedTable, "could not identify table %s", ev.Tag)
			rec.Exception = err.Error()
			return ev.WithError(rec)
		}
		if !ok {
			return ev.WithError(errorlist.New(types.ErrUnidentifiedTable,
				"could not identify table %s from headers %s", ev.Tag, strings.Join(ev.Headers, ", ")))
		}
		ev.TableName = name
		ev.TableSpec = ds.Table(name)
		return ev
	})
}

func allBlank(vals []string) bool {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// InheritProperty copies props from the enclosing StartTable onto every
// event up to its EndTable. Unless override is set, values already on an
// event are kept.
func InheritProperty(override bool, props ...Property) events.Filter {
	return func(in events.Stream) events.Stream {
		return func(yield func(events.Event) bool) {
			var table *events.Event
			for ev := range in {
				switch ev.Kind {
				case events.StartTable:
					t := ev
					table = &t
				case events.EndTable:
					if table != nil {
						ev = inherit(ev, *table, override, props)
					}
					table = nil
				default:
					if table != nil {
						ev = inherit(ev, *table, override, props)
					}
				}
				if !yield(ev) {
					return
				}
			}
		}
	}
}

func inherit(ev, from events.Event, override bool, props []Property) events.Event {
	for _, p := range props {
		switch p {
		case PropTableName:
			if override || ev.TableName == "" {
				ev.TableName = from.TableName
			}
		case PropTableSpec:
			if override || ev.TableSpec == nil {
				ev.TableSpec = from.TableSpec
			}
		case PropFilename:
			if override || ev.Filename == "" {
				ev.Filename = from.Filename
			}
		}
	}
	return ev
}

// ConvertHeaderToMatch rewrites a cell's header to the key of the column it
// matches by alias or header regex.
func ConvertHeaderToMatch() events.Filter {
	return events.Map(func(ev events.Event) events.Event {
		if ev.Kind != events.Cell || ev.TableSpec == nil {
			return ev
		}
		col, err := ev.TableSpec.ColumnForHeader(ev.Header)
		if err == nil && col != nil {
			ev.Header = col.Key
		}
		return ev
	})
}

// MatchConfigToCell attaches the column definition named by a cell's header.
func MatchConfigToCell() events.Filter {
	return events.Map(func(ev events.Event) events.Event {
		if ev.Kind != events.Cell || ev.TableSpec == nil {
			return ev
		}
		if col := ev.TableSpec.Column(ev.Header); col != nil {
			ev.ColumnSpec = col
		}
		return ev
	})
}

// LogBlanks records a Blank error for each required value that is empty:
// cells directly, and leaf elements on their EndElement when no text was seen.
func LogBlanks() events.Filter {
	return func(in events.Stream) events.Stream {
		return func(yield func(events.Event) bool) {
			sawText := false
			for ev := range in {
				switch ev.Kind {
				case events.Cell:
					if required(ev.ColumnSpec) && schema.IsBlank(ev.Value) {
						ev = ev.WithError(blank(ev.ColumnSpec.Key))
					}
				case events.StartElement:
					sawText = false
				case events.TextNode:
					if !schema.IsBlank(ev.Value) {
						sawText = true
					}
				case events.EndElement:
					if ev.Element != nil && ev.Element.Leaf() && required(ev.Element.Column) && !sawText {
						ev = ev.WithError(blank(ev.Element.Name))
					}
					sawText = false
				}
				if !yield(ev) {
					return
				}
			}
		}
	}
}

func required(c *schema.Column) bool {
	return c != nil && !c.CanBeBlank
}

func blank(name string) errorlist.Record {
	return errorlist.New(types.ErrBlank, "%s is required but blank", name)
}

// ConformCellTypes coerces cell and text values to their column type. A
// value that fails is emptied, or kept when preserveValue is set, and the
// event records the failure.
func ConformCellTypes(preserveValue bool) events.Filter {
	return events.Map(func(ev events.Event) events.Event {
		if ev.Kind != events.Cell && ev.Kind != events.TextNode {
			return ev
		}
		if ev.ColumnSpec == nil {
			return ev
		}
		v, err := ev.ColumnSpec.Convert(ev.Value)
		if err == nil {
			ev.Value = v
			return ev
		}
		if !preserveValue {
			ev.Value = ""
		}
		if ev.Invalid {
			return ev
		}
		kind := types.ErrConversion
		var ve *schema.ValueError
		if errors.As(err, &ve) {
			kind = ve.Kind
		}
		rec := errorlist.New(kind, "could not convert %s to %s", ev.ColumnSpec.Key, ev.ColumnSpec.Type())
		rec.Exception = err.Error()
		return ev.WithError(rec)
	})
}

// CollectCellValuesForRow attaches to each StartRow the map of canonical
// header to value of the row's cells. Cells with no column definition are
// left out of the map.
func CollectCellValuesForRow() events.Filter {
	return func(in events.Stream) events.Stream {
		return func(yield func(events.Event) bool) {
			var buf []events.Event
			inRow := false
			for ev := range in {
				switch {
				case ev.Kind == events.StartRow:
					inRow = true
					buf = append(buf[:0], ev)
					continue
				case inRow && ev.Kind != events.EndRow:
					buf = append(buf, ev)
					continue
				case inRow:
					inRow = false
					values := make(map[string]any)
					for _, c := range buf[1:] {
						if c.Kind == events.Cell && c.ColumnSpec != nil {
							values[c.Header] = c.Value
						}
					}
					buf[0].RowValues = values
					for _, b := range buf {
						if !yield(b) {
							return
						}
					}
				}
				if !yield(ev) {
					return
				}
			}
			if inRow {
				for _, b := range buf {
					if !yield(b) {
						return
					}
				}
			}
		}
	}
}
