// Package frame provides the small tabular model the pipeline passes between
// stages: named columns holding typed cells, and named collections of them.
package frame

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind is the storage type of a column.
type Kind int

const (
	KindUnknown Kind = iota
	KindString
	KindInt
	KindFloat
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Row maps column names to cell values. Cells are string, int64, float64,
// time.Time or nil (null).
type Row map[string]any

// Frame is an ordered set of columns over a list of rows.
type Frame struct {
	columns []string
	kinds   map[string]Kind
	rows    []Row
}

// New creates an empty frame with the given columns.
func New(cols ...string) *Frame {
	f := &Frame{kinds: make(map[string]Kind)}
	for _, c := range cols {
		f.AddColumn(c)
	}
	return f
}

// FromRows builds a frame from rows, taking columns in order of first appearance
// unless cols is given.
func FromRows(cols []string, rows ...Row) *Frame {
	f := New(cols...)
	f.Append(rows...)
	return f
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// HasColumn reports whether the frame has a column.
func (f *Frame) HasColumn(name string) bool {
	for _, c := range f.columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends an empty (null) column if it is not already present.
func (f *Frame) AddColumn(name string) {
	if f.HasColumn(name) {
		return
	}
	f.columns = append(f.columns, name)
}

// SetKind declares the storage type of a column.
func (f *Frame) SetKind(col string, k Kind) {
	f.kinds[col] = k
}

// Kind returns the declared storage type of a column, inferring it from the
// cells when none was declared.
func (f *Frame) Kind(col string) Kind {
	if k, ok := f.kinds[col]; ok && k != KindUnknown {
		return k
	}
	return f.inferKind(col)
}

func (f *Frame) inferKind(col string) Kind {
	kind := KindUnknown
	for _, r := range f.rows {
		var k Kind
		switch v := r[col].(type) {
		case nil:
			continue
		case string:
			if v == "" {
				continue
			}
			return KindString
		case int64, int:
			k = KindInt
		case float64:
			k = KindFloat
		case time.Time:
			k = KindDate
		default:
			return KindString
		}
		switch {
		case kind == KindUnknown:
			kind = k
		case kind == k:
		case (kind == KindInt && k == KindFloat) || (kind == KindFloat && k == KindInt):
			kind = KindFloat
		default:
			return KindString
		}
	}
	if kind == KindUnknown {
		return KindString
	}
	return kind
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.rows)
}

// Rows returns the rows. The slice is shared with the frame.
func (f *Frame) Rows() []Row {
	return f.rows
}

// Row returns row i.
func (f *Frame) Row(i int) Row {
	return f.rows[i]
}

// Append adds rows. Keys not yet known as columns are added, sorted by name.
func (f *Frame) Append(rows ...Row) {
	for _, r := range rows {
		var extra []string
		for k := range r {
			if !f.HasColumn(k) {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		for _, k := range extra {
			f.AddColumn(k)
		}
		f.rows = append(f.rows, r)
	}
}

// Column returns the values of a column, nil for missing cells.
func (f *Frame) Column(name string) []any {
	out := make([]any, len(f.rows))
	for i, r := range f.rows {
		out[i] = r[name]
	}
	return out
}

// Clone returns a deep copy of the frame's rows and column metadata.
func (f *Frame) Clone() *Frame {
	c := New(f.columns...)
	for k, v := range f.kinds {
		c.kinds[k] = v
	}
	c.rows = make([]Row, len(f.rows))
	for i, r := range f.rows {
		nr := make(Row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		c.rows[i] = nr
	}
	return c
}

// Project returns a new frame holding exactly cols in the given order. Columns
// absent from f are filled with null.
func (f *Frame) Project(cols []string) *Frame {
	out := New(cols...)
	for _, c := range cols {
		if k, ok := f.kinds[c]; ok {
			out.kinds[c] = k
		}
	}
	out.rows = make([]Row, len(f.rows))
	for i, r := range f.rows {
		nr := make(Row, len(cols))
		for _, c := range cols {
			nr[c] = r[c]
		}
		out.rows[i] = nr
	}
	return out
}

// Concat stacks frames vertically. The column order is the union of columns in
// order of first appearance.
func Concat(frames ...*Frame) *Frame {
	out := New()
	for _, f := range frames {
		if f == nil {
			continue
		}
		for _, c := range f.columns {
			out.AddColumn(c)
			if k, ok := f.kinds[c]; ok {
				if _, set := out.kinds[c]; !set {
					out.kinds[c] = k
				}
			}
		}
		out.rows = append(out.rows, f.Clone().rows...)
	}
	return out
}

// SortStable sorts rows ascending by the key columns, keeping the relative
// order of equal rows. Nulls sort last.
func (f *Frame) SortStable(keys ...string) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(f.rows, func(i, j int) bool {
		for _, k := range keys {
			if c := Compare(f.rows[i][k], f.rows[j][k]); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

// DropDuplicates returns a frame with one row per distinct key tuple, keeping
// the last occurrence. The surviving rows keep their original relative order.
func (f *Frame) DropDuplicates(keys ...string) *Frame {
	out := New(f.columns...)
	for k, v := range f.kinds {
		out.kinds[k] = v
	}
	if len(keys) == 0 {
		out.rows = append(out.rows, f.rows...)
		return out
	}
	last := make(map[string]int, len(f.rows))
	for i, r := range f.rows {
		last[rowKey(r, keys)] = i
	}
	for i, r := range f.rows {
		if last[rowKey(r, keys)] == i {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

func rowKey(r Row, keys []string) string {
	var b strings.Builder
	for _, k := range keys {
		v := normalise(r[k])
		fmt.Fprintf(&b, "%T:%v\x1f", v, v)
	}
	return b.String()
}

// normalise folds equivalent representations so they compare and hash alike.
func normalise(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case float64:
		if x == float64(int64(x)) {
			return int64(x)
		}
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	}
	return v
}

// Compare orders two cell values: numbers numerically, dates chronologically,
// strings bytewise. Nulls sort after everything; values of different kinds
// order by kind.
func Compare(a, b any) int {
	an, bn := a == nil, b == nil
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs)
	}
	ra, rb := rank(a), rank(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func rank(v any) int {
	switch v.(type) {
	case int64, int, float64:
		return 0
	case time.Time:
		return 1
	case string:
		return 2
	}
	return 3
}

// FormatValue renders a cell for delimited text output.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return fmt.Sprintf("%d", x)
	case int:
		return fmt.Sprintf("%d", x)
	case float64:
		return formatFloat(x)
	case time.Time:
		return x.Format(time.DateOnly)
	}
	return fmt.Sprint(v)
}
