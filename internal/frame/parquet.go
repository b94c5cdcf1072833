package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
)

// layoutKey stores the original column order and kinds, since parquet groups
// order their leaves by name.
const layoutKey = "liia.layout"

const secondsPerDay = 24 * 60 * 60

type layout struct {
	Columns []string        `json:"columns"`
	Kinds   map[string]Kind `json:"kinds"`
}

func nodeFor(k Kind) parquet.Node {
	switch k {
	case KindInt:
		return parquet.Int(64)
	case KindFloat:
		return parquet.Leaf(parquet.DoubleType)
	case KindDate:
		return parquet.Date()
	default:
		return parquet.String()
	}
}

// WriteParquet encodes the frame as a single parquet file. Every column is
// optional; empty strings in non-string columns are stored as null.
func (f *Frame) WriteParquet(w io.Writer) error {
	if len(f.columns) == 0 {
		return fmt.Errorf("cannot write a frame without columns")
	}
	lay := layout{Columns: f.Columns(), Kinds: make(map[string]Kind, len(f.columns))}
	group := parquet.Group{}
	for _, c := range f.columns {
		k := f.Kind(c)
		lay.Kinds[c] = k
		group[c] = parquet.Optional(nodeFor(k))
	}
	schema := parquet.NewSchema("frame", group)

	index := make(map[string]int, len(f.columns))
	for i, path := range schema.Columns() {
		index[path[0]] = i
	}

	meta, err := json.Marshal(lay)
	if err != nil {
		return fmt.Errorf("encoding layout: %w", err)
	}
	pw := parquet.NewWriter(w, schema, parquet.KeyValueMetadata(layoutKey, string(meta)))

	rows := make([]parquet.Row, 0, len(f.rows))
	for ri, r := range f.rows {
		row := make(parquet.Row, len(f.columns))
		for _, c := range f.columns {
			idx := index[c]
			v, ok, err := toParquet(lay.Kinds[c], r[c])
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", ri, c, err)
			}
			if !ok {
				row[idx] = parquet.NullValue().Level(0, 0, idx)
				continue
			}
			row[idx] = v.Level(0, 1, idx)
		}
		rows = append(rows, row)
	}
	if _, err := pw.WriteRows(rows); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	return pw.Close()
}

func toParquet(k Kind, v any) (parquet.Value, bool, error) {
	if v == nil {
		return parquet.Value{}, false, nil
	}
	if s, ok := v.(string); ok && s == "" && k != KindString {
		return parquet.Value{}, false, nil
	}
	switch k {
	case KindInt:
		switch x := v.(type) {
		case int64:
			return parquet.Int64Value(x), true, nil
		case int:
			return parquet.Int64Value(int64(x)), true, nil
		case float64:
			return parquet.Int64Value(int64(x)), true, nil
		}
	case KindFloat:
		switch x := v.(type) {
		case float64:
			return parquet.DoubleValue(x), true, nil
		case int64:
			return parquet.DoubleValue(float64(x)), true, nil
		case int:
			return parquet.DoubleValue(float64(x)), true, nil
		}
	case KindDate:
		if t, ok := v.(time.Time); ok {
			return parquet.Int32Value(int32(floorDiv(t.UTC().Unix(), secondsPerDay))), true, nil
		}
	default:
		return parquet.ByteArrayValue([]byte(FormatValue(v))), true, nil
	}
	return parquet.Value{}, false, fmt.Errorf("value %v (%T) does not fit a %s column", v, v, k)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ReadParquet decodes a parquet file written by WriteParquet. Files without
// layout metadata are read with leaf columns in schema order.
func ReadParquet(r io.ReaderAt, size int64) (*Frame, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening parquet: %w", err)
	}

	leaves := pf.Schema().Columns()
	names := make([]string, len(leaves))
	for i, p := range leaves {
		names[i] = p[len(p)-1]
	}

	var lay layout
	if raw, ok := pf.Lookup(layoutKey); ok {
		if err := json.Unmarshal([]byte(raw), &lay); err != nil {
			return nil, fmt.Errorf("decoding layout: %w", err)
		}
	} else {
		lay.Columns = names
	}

	f := New(lay.Columns...)
	for c, k := range lay.Kinds {
		f.kinds[c] = k
	}

	buf := make([]parquet.Row, 64)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, pr := range buf[:n] {
				row := make(Row, len(lay.Columns))
				for _, c := range lay.Columns {
					row[c] = nil
				}
				for _, v := range pr {
					col := v.Column()
					if col < 0 || col >= len(names) {
						continue
					}
					row[names[col]] = fromParquet(lay.Kinds[names[col]], v)
				}
				f.rows = append(f.rows, row)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("reading rows: %w", err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("closing row group: %w", err)
		}
	}
	return f, nil
}

// ReadParquetBytes is ReadParquet over an in-memory file.
func ReadParquetBytes(data []byte) (*Frame, error) {
	return ReadParquet(bytes.NewReader(data), int64(len(data)))
}

func fromParquet(k Kind, v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Int64:
		return v.Int64()
	case parquet.Double:
		return v.Double()
	case parquet.Int32:
		if k == KindDate {
			return time.Unix(int64(v.Int32())*secondsPerDay, 0).UTC()
		}
		return int64(v.Int32())
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Float:
		return float64(v.Float())
	}
	return v.String()
}
