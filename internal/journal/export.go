package journal

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

var exportColumns = []string{"Time", "Action", "Table", "Viewed date", "Result", "Error"}

// ParseMonth parses a YYYY-MM key into the half-open range it covers in loc.
func ParseMonth(month string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation("2006-01", month, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q; expected YYYY-MM", month)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// Export writes the entries of month (YYYY-MM, in loc) to w as an xlsx workbook.
func (s *Store) Export(ctx context.Context, w io.Writer, month string, loc *time.Location) error {
	from, to, err := ParseMonth(month, loc)
	if err != nil {
		return err
	}
	entries, err := s.List(ctx, from, to)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := month
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	if err := writeRow(f, sheet, 1, toRow(exportColumns)); err != nil {
		return err
	}
	// Apply bold style to header
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		end, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = f.SetCellStyle(sheet, "A1", end, style)
	}

	for i, e := range entries {
		result := "finished"
		if !e.Succeeded() {
			result = "failed"
		}
		row := []any{e.At.In(from.Location()).Format("2006-01-02 15:04:05"), e.Type, e.TableID, e.Date, result, e.Error}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func writeRow(f *excelize.File, sheet string, rowNum int, row []any) error {
	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, val); err != nil {
			return err
		}
	}
	return nil
}

func toRow(values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}
