// Package adapter turns delimited text, workbook and markup files into the
// shared parse event stream.
package adapter

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/events"
)

// Format is a recognised input format.
type Format string

// Input formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXML  Format = "xml"
)

var zipMagic = []byte("PK\x03\x04")

// Sniff guesses the format of raw input: zip containers are workbooks,
// text starting with '<' is markup and anything else is delimited text.
func Sniff(data []byte) Format {
	if bytes.HasPrefix(data, zipMagic) {
		return FormatXLSX
	}
	text, err := DecodeText(data)
	if err != nil {
		return FormatCSV
	}
	if bytes.HasPrefix(bytes.TrimLeft(text, " \t\r\n"), []byte("<")) {
		return FormatXML
	}
	return FormatCSV
}

// Source is a parsed input file. Events may be ranged over once; Err
// reports any failure that ended the stream early.
type Source struct {
	Name   string
	Format Format
	data   []byte
	err    error
}

// Open prepares data for parsing, sniffing its format and decoding text
// formats to UTF-8. Decoding failures wrap ErrEncoding.
func Open(name string, data []byte) (*Source, error) {
	return OpenAs(name, data, Sniff(data))
}

// OpenAs is like Open with an explicit format.
func OpenAs(name string, data []byte, format Format) (*Source, error) {
	s := &Source{Name: name, Format: format, data: data}
	if format == FormatXLSX {
		return s, nil
	}
	text, err := DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	s.data = text
	return s, nil
}

// Text returns the decoded text of a text format, or nil for workbooks.
func (s *Source) Text() []byte {
	if s.Format == FormatXLSX {
		return nil
	}
	return s.data
}

// Events returns the stream of parse events.
func (s *Source) Events() events.Stream {
	switch s.Format {
	case FormatXLSX:
		return s.workbookEvents()
	case FormatXML:
		return s.markupEvents()
	default:
		return s.delimitedEvents()
	}
}

// Err returns the error that stopped the stream, if any.
func (s *Source) Err() error { return s.err }

func (s *Source) fail(err error) {
	if s.err == nil {
		s.err = fmt.Errorf("parsing %s: %w", s.Name, err)
	}
}

// tableEvents emits one table of rows: the first row supplies headers.
// Rows shorter than the header row are padded with empty cells.
func tableEvents(yield func(events.Event) bool, tag string, rows func(func([]any) bool)) bool {
	var headers []string
	started := false
	rix := 0
	ok := true
	rows(func(row []any) bool {
		if !started {
			headers = make([]string, len(row))
			for i, v := range row {
				headers[i] = cellText(v)
			}
			started = true
			if !yield(events.Event{Kind: events.StartTable, Tag: tag, Headers: headers}) {
				ok = false
			}
			return ok
		}
		r := rix
		rix++
		if allBlank(row) {
			return true
		}
		for len(row) < len(headers) {
			row = append(row, "")
		}
		if !yield(events.Event{Kind: events.StartRow, Tag: tag, RowIx: r}) {
			ok = false
			return false
		}
		for c, v := range row {
			ev := events.Event{Kind: events.Cell, Tag: tag, RowIx: r, ColIx: c, Value: v}
			if c < len(headers) {
				ev.Header = headers[c]
			}
			if !yield(ev) {
				ok = false
				return false
			}
		}
		if !yield(events.Event{Kind: events.EndRow, Tag: tag, RowIx: r}) {
			ok = false
			return false
		}
		return true
	})
	if ok && started {
		ok = yield(events.Event{Kind: events.EndTable, Tag: tag})
	}
	return ok
}

func cellText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.Format(time.DateOnly)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func allBlank(row []any) bool {
	for _, v := range row {
		if strings.TrimSpace(cellText(v)) != "" {
			return false
		}
	}
	return true
}
