package adapter

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/events"
)

func (s *Source) workbookEvents() events.Stream {
	return func(yield func(events.Event) bool) {
		f, err := excelize.OpenReader(bytes.NewReader(s.data))
		if err != nil {
			s.fail(err)
			return
		}
		defer func() { _ = f.Close() }()

		if !yield(events.Event{Kind: events.StartContainer, Tag: s.Name}) {
			return
		}
		for _, sheet := range f.GetSheetList() {
			if !s.sheetEvents(yield, f, sheet) || s.err != nil {
				return
			}
		}
		yield(events.Event{Kind: events.EndContainer, Tag: s.Name})
	}
}

func (s *Source) sheetEvents(yield func(events.Event) bool, f *excelize.File, sheet string) bool {
	it, err := f.Rows(sheet)
	if err != nil {
		s.fail(fmt.Errorf("sheet %s: %w", sheet, err))
		return false
	}
	defer func() { _ = it.Close() }()

	dates := newDateCells(f)
	rows := func(emit func([]any) bool) {
		for rowNum := 1; it.Next(); rowNum++ {
			cols, err := it.Columns()
			if err != nil {
				s.fail(fmt.Errorf("sheet %s: %w", sheet, err))
				return
			}
			row := make([]any, len(cols))
			for i, v := range cols {
				row[i] = v
				if v == "" {
					continue
				}
				t, ok, err := dates.value(sheet, i+1, rowNum)
				if err != nil {
					s.fail(fmt.Errorf("sheet %s: %w", sheet, err))
					return
				}
				if ok {
					row[i] = t
				}
			}
			if !emit(row) {
				return
			}
		}
		if err := it.Error(); err != nil {
			s.fail(fmt.Errorf("sheet %s: %w", sheet, err))
		}
	}
	return tableEvents(yield, sheet, rows)
}

// dateCells recognises cells that hold a date serial under a date number
// format, caching the verdict per style.
type dateCells struct {
	f        *excelize.File
	date1904 bool
	styles   map[int]bool
}

func newDateCells(f *excelize.File) *dateCells {
	d := &dateCells{f: f, styles: map[int]bool{}}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d
}

// value returns the cell as a time when it is a date cell.
func (d *dateCells) value(sheet string, col, row int) (time.Time, bool, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return time.Time{}, false, err
	}
	id, err := d.f.GetCellStyle(sheet, ref)
	if err != nil {
		return time.Time{}, false, err
	}
	isDate, seen := d.styles[id]
	if !seen {
		isDate = d.isDateStyle(id)
		d.styles[id] = isDate
	}
	if !isDate {
		return time.Time{}, false, nil
	}
	raw, err := d.f.GetCellValue(sheet, ref, excelize.Options{RawCellValue: true})
	if err != nil {
		return time.Time{}, false, err
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	t, err := excelize.ExcelDateToTime(serial, d.date1904)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func (d *dateCells) isDateStyle(id int) bool {
	if id == 0 {
		return false
	}
	style, err := d.f.GetStyle(id)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormat(*style.CustomNumFmt)
	}
	return builtinDateFormats[style.NumFmt]
}

// builtinDateFormats are the built-in number formats that render a date.
var builtinDateFormats = map[int]bool{14: true, 15: true, 16: true, 17: true, 22: true}

// isDateFormat reports whether a custom number format renders a date: it
// has a day or year token outside quoted text and bracketed sections.
func isDateFormat(code string) bool {
	quoted, bracket := false, false
	for i := 0; i < len(code); i++ {
		switch c := code[i]; {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '\\':
			i++
		case c == '[':
			bracket = true
		case c == ']':
			bracket = false
		case bracket:
		case c == 'd' || c == 'D' || c == 'y' || c == 'Y':
			return true
		}
	}
	return false
}
