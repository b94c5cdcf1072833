// Package errorlist implements the append-only container of structured error
// records gathered while a file moves through the pipeline.
package errorlist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/jszwec/csvutil"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/frame"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// Property names accepted by SetProperty and Filter. They double as the
// error summary column names.
const (
	PropSessionID = "session_id"
	PropUUID      = "uuid"
	PropFilename  = "filename"
	PropTableName = "table_name"
	PropHeader    = "header"
	PropRowIx     = "r_ix"
	PropColIx     = "c_ix"
	PropType      = "type"
	PropMessage   = "message"
	PropException = "exception"
	PropLine      = "line"
)

// Columns is the error summary column order.
var Columns = []string{
	PropSessionID, PropUUID, PropFilename, PropTableName, PropHeader,
	PropRowIx, PropColIx, PropType, PropMessage, PropException,
}

// Record is a single error with its processing context.
type Record struct {
	SessionID string          `csv:"session_id"`
	UUID      string          `csv:"uuid"`
	Filename  string          `csv:"filename"`
	TableName string          `csv:"table_name"`
	Header    string          `csv:"header"`
	RowIx     *int            `csv:"r_ix,omitempty"`
	ColIx     *int            `csv:"c_ix,omitempty"`
	Kind      types.ErrorKind `csv:"type"`
	Message   string          `csv:"message"`
	Exception string          `csv:"exception"`
	Line      int             `csv:"-"` // source line for hierarchical inputs
}

// New creates a record of the given kind.
func New(kind types.ErrorKind, format string, args ...any) Record {
	return Record{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Index returns a pointer to i, for populating RowIx and ColIx.
func Index(i int) *int {
	return &i
}

// Get returns the record's value for a property name, formatted as text.
func (r Record) Get(prop string) string {
	switch prop {
	case PropSessionID:
		return r.SessionID
	case PropUUID:
		return r.UUID
	case PropFilename:
		return r.Filename
	case PropTableName:
		return r.TableName
	case PropHeader:
		return r.Header
	case PropRowIx:
		return formatIndex(r.RowIx)
	case PropColIx:
		return formatIndex(r.ColIx)
	case PropType:
		return string(r.Kind)
	case PropMessage:
		return r.Message
	case PropException:
		return r.Exception
	case PropLine:
		if r.Line == 0 {
			return ""
		}
		return strconv.Itoa(r.Line)
	}
	return ""
}

// Set assigns a property by name. Index properties must be integers.
func (r *Record) Set(prop, value string) error {
	switch prop {
	case PropSessionID:
		r.SessionID = value
	case PropUUID:
		r.UUID = value
	case PropFilename:
		r.Filename = value
	case PropTableName:
		r.TableName = value
	case PropHeader:
		r.Header = value
	case PropRowIx, PropColIx, PropLine:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("property %s: %w", prop, err)
		}
		switch prop {
		case PropRowIx:
			r.RowIx = Index(n)
		case PropColIx:
			r.ColIx = Index(n)
		default:
			r.Line = n
		}
	case PropType:
		r.Kind = types.ErrorKind(value)
	case PropMessage:
		r.Message = value
	case PropException:
		r.Exception = value
	default:
		return fmt.Errorf("unknown error property %q", prop)
	}
	return nil
}

func formatIndex(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// List is an ordered, append-only collection of error records.
type List struct {
	records []Record
}

// Append adds records to the end of the list.
func (l *List) Append(recs ...Record) {
	l.records = append(l.records, recs...)
}

// Extend appends every record of other.
func (l *List) Extend(other *List) {
	if other == nil {
		return
	}
	l.records = append(l.records, other.records...)
}

// Len returns the number of records.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.records)
}

// Records returns a copy of the records in insertion order.
func (l *List) Records() []Record {
	if l == nil {
		return nil
	}
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// SetProperty assigns a property on every record.
func (l *List) SetProperty(prop, value string) error {
	for i := range l.records {
		if err := l.records[i].Set(prop, value); err != nil {
			return err
		}
	}
	return nil
}

// SetDefault assigns a property on every record where it is empty.
func (l *List) SetDefault(prop, value string) error {
	for i := range l.records {
		if l.records[i].Get(prop) != "" {
			continue
		}
		if err := l.records[i].Set(prop, value); err != nil {
			return err
		}
	}
	return nil
}

// Filter returns a new list holding the records whose property equals value.
func (l *List) Filter(prop, value string) *List {
	out := &List{}
	for _, r := range l.records {
		if r.Get(prop) == value {
			out.records = append(out.records, r)
		}
	}
	return out
}

// ByKind returns the records of a given kind.
func (l *List) ByKind(kind types.ErrorKind) *List {
	return l.Filter(PropType, string(kind))
}

// ToFrame projects the records onto the error summary columns.
func (l *List) ToFrame() *frame.Frame {
	f := frame.New(Columns...)
	for _, r := range l.records {
		row := make(frame.Row, len(Columns))
		for _, c := range Columns {
			row[c] = r.Get(c)
		}
		f.Append(row)
	}
	return f
}

// WriteCSV encodes the records as an error summary with a header row.
func (l *List) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(Record{}); err != nil {
		return fmt.Errorf("encoding error summary header: %w", err)
	}
	for _, r := range l.records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding error record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV decodes an error summary written by WriteCSV.
func ReadCSV(r io.Reader) (*List, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &List{}, nil
		}
		return nil, fmt.Errorf("reading error summary header: %w", err)
	}
	var recs []Record
	if err := dec.Decode(&recs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding error summary: %w", err)
	}
	return &List{records: recs}, nil
}
