package filters

import (
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/errorlist"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/events"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/schema"
)

// TableRow is one output row produced from a collected record.
type TableRow struct {
	Table  string
	Values map[string]any
}

// RecordMapper turns a collected element record into output rows.
type RecordMapper func(tag string, rec events.Record) []TableRow

// ExportTable fans every collected record out into rows. Each row is
// emitted as a StartRow/EndRow pair carrying the table name, its definition from
// ds and the row values, directly after the record's EndElement.
func ExportTable(ds *schema.DataSchema, mapper RecordMapper) events.Filter {
	return func(in events.Stream) events.Stream {
		return func(yield func(events.Event) bool) {
			for ev := range in {
				if !yield(ev) {
					return
				}
				if ev.Kind != events.EndElement || ev.Record == nil {
					continue
				}
				for i, row := range mapper(ev.Tag, ev.Record) {
					start := events.Event{Kind: events.StartRow, Tag: ev.Tag, Line: ev.Line, RowIx: i}
					start.Filename = ev.Filename
					start.TableName = row.Table
					start.TableSpec = ds.Table(row.Table)
					start.RowValues = row.Values
					end := events.Event{Kind: events.EndRow, Tag: ev.Tag, Line: ev.Line, RowIx: i}
					end.TableName = row.Table
					if !yield(start) || !yield(end) {
						return
					}
				}
			}
		}
	}
}

// TableCollector accumulates row values by table name. Values for keys the
// table definition does not declare are dropped. Its container is complete once
// the stream has been consumed.
type TableCollector struct {
	tables *frame.Container
}

// NewTableCollector creates an empty collector.
func NewTableCollector() *TableCollector {
	return &TableCollector{tables: frame.NewContainer()}
}

// Filter returns the collecting filter. Events pass through unchanged.
func (c *TableCollector) Filter() events.Filter {
	return func(in events.Stream) events.Stream {
		return func(yield func(events.Event) bool) {
			for ev := range in {
				if ev.Kind == events.StartRow && ev.TableName != "" && ev.RowValues != nil {
					c.add(ev)
				}
				if !yield(ev) {
					return
				}
			}
		}
	}
}

func (c *TableCollector) add(ev events.Event) {
	f, ok := c.tables.Get(ev.TableName)
	if !ok {
		f = newTableFrame(ev.TableSpec)
		c.tables.Set(ev.TableName, f)
	}
	row := make(frame.Row, len(ev.RowValues))
	for k, v := range ev.RowValues {
		if ev.TableSpec != nil && ev.TableSpec.Column(k) == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			v = nil
		}
		row[k] = v
	}
	f.Append(row)
}

func newTableFrame(spec *schema.Table) *frame.Frame {
	if spec == nil {
		return frame.New()
	}
	f := frame.New(spec.Keys()...)
	for _, col := range spec.Columns {
		f.SetKind(col.Key, frame.KindFor(col.Type()))
	}
	return f
}

// Container returns the collected tables in order of first appearance.
func (c *TableCollector) Container() *frame.Container {
	return c.tables
}

// ErrorCollector harvests the errors attached to events.
type ErrorCollector struct {
	list *errorlist.List
}

// NewErrorCollector creates an empty collector.
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{list: &errorlist.List{}}
}

// Filter returns the harvesting filter. Each record is completed with the
// event's filename, table name, header and, for tabular events, its row
// and column index.
func (c *ErrorCollector) Filter() events.Filter {
	return func(in events.Stream) events.Stream {
		return func(yield func(events.Event) bool) {
			for ev := range in {
				for _, rec := range ev.Errors {
					c.list.Append(complete(rec, ev))
				}
				if !yield(ev) {
					return
				}
			}
		}
	}
}

func complete(rec errorlist.Record, ev events.Event) errorlist.Record {
	if rec.Filename == "" {
		rec.Filename = ev.Filename
	}
	if rec.TableName == "" {
		rec.TableName = ev.TableName
	}
	if rec.Header == "" {
		rec.Header = ev.Header
	}
	if rec.Line == 0 {
		rec.Line = ev.Line
	}
	switch ev.Kind {
	case events.Cell:
		if rec.RowIx == nil {
			rec.RowIx = errorlist.Index(ev.RowIx)
		}
		if rec.ColIx == nil {
			rec.ColIx = errorlist.Index(ev.ColIx)
		}
	case events.StartRow, events.EndRow:
		if rec.RowIx == nil && ev.Line == 0 {
			rec.RowIx = errorlist.Index(ev.RowIx)
		}
	}
	return rec
}

// Errors returns the harvested errors.
func (c *ErrorCollector) Errors() *errorlist.List {
	return c.list
}

// Result is the outcome of running a stream to completion.
type Result struct {
	Tables *frame.Container
	Errors *errorlist.List
}

// Run applies filters to s, collects tables and errors, and consumes the
// stream.
func Run(s events.Stream, filters ...events.Filter) Result {
	tables := NewTableCollector()
	errs := NewErrorCollector()
	chain := append(append([]events.Filter{}, filters...), tables.Filter(), errs.Filter())
	events.Drain(events.Pipe(s, chain...))
	return Result{Tables: tables.Container(), Errors: errs.Errors()}
}
