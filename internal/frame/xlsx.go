package frame

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the longest sheet name a workbook accepts.
const maxSheetName = 31

// WriteWorkbook writes every table to its own sheet of a single workbook.
func (c *Container) WriteWorkbook(w io.Writer) error {
	wb := excelize.NewFile()
	defer func() { _ = wb.Close() }()

	const defaultSheet = "Sheet1"
	usedDefault := false
	for i, name := range c.Names() {
		sheet := name
		if len(sheet) > maxSheetName {
			sheet = sheet[:maxSheetName]
		}
		if sheet == defaultSheet {
			usedDefault = true
		}
		idx, err := wb.NewSheet(sheet)
		if err != nil {
			return fmt.Errorf("creating sheet %s: %w", sheet, err)
		}
		if i == 0 {
			wb.SetActiveSheet(idx)
		}
		if err := writeSheet(wb, sheet, c.tables[name]); err != nil {
			return err
		}
	}
	if !usedDefault && c.Len() > 0 {
		if err := wb.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("removing default sheet: %w", err)
		}
	}
	return wb.Write(w)
}

// dateFormat is the number format applied to date cells.
const dateFormat = "yyyy-mm-dd"

func writeSheet(wb *excelize.File, sheet string, f *Frame) error {
	header := make([]any, len(f.columns))
	for i, c := range f.columns {
		header[i] = c
	}
	if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing %s header: %w", sheet, err)
	}
	dateStyle := -1
	for ri, r := range f.rows {
		cells := make([]any, len(f.columns))
		var dates []int
		for i, c := range f.columns {
			switch v := r[c].(type) {
			case time.Time:
				cells[i] = v
				dates = append(dates, i)
			case nil:
				cells[i] = ""
			default:
				cells[i] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, ri+2)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, ri, err)
		}
		for _, i := range dates {
			if dateStyle < 0 {
				format := dateFormat
				if dateStyle, err = wb.NewStyle(&excelize.Style{CustomNumFmt: &format}); err != nil {
					return fmt.Errorf("creating date style: %w", err)
				}
			}
			ref, err := excelize.CoordinatesToCellName(i+1, ri+2)
			if err != nil {
				return err
			}
			if err := wb.SetCellStyle(sheet, ref, ref, dateStyle); err != nil {
				return fmt.Errorf("styling %s %s: %w", sheet, ref, err)
			}
		}
	}
	return nil
}
