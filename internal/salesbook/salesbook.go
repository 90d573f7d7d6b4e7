// Package salesbook exports the fiscal journal as an XLSX workbook in
// the layout accountants expect: one row per fiscal document, grouped by
// day, with daily totals.
package salesbook

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"printhub/internal/journal"
)

const sheetName = "Sales book"

var header = []string{
	"Date", "Time", "Document number", "Printer number",
	"Document type", "Customer CRIB", "Total", "Operation",
}

// Export writes the journal entries between start and end (inclusive
// dates) to an XLSX file at path. It returns the number of rows written.
func Export(j journal.Journal, start, end time.Time, path string) (int, error) {
	entries, err := j.ByDateRange(start, end)
	if err != nil {
		return 0, err
	}
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Time.Before(entries[b].Time)
	})

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", sheetName)

	for col, title := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return 0, err
		}
	}
	_ = f.SetColWidth(sheetName, "A", "B", 12)
	_ = f.SetColWidth(sheetName, "C", "C", 22)
	_ = f.SetColWidth(sheetName, "D", "H", 16)

	row := 2
	written := 0
	var day string
	var dayTotal float64
	flushDay := func() {
		if day == "" {
			return
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetName, cell, fmt.Sprintf("Total %s", day))
		cell, _ = excelize.CoordinatesToCellName(7, row)
		_ = f.SetCellValue(sheetName, cell, dayTotal)
		row += 2
		dayTotal = 0
	}

	for _, e := range entries {
		d := e.Time.Format("2006-01-02")
		if d != day {
			flushDay()
			day = d
		}
		values := []interface{}{
			d,
			e.Time.Format("15:04:05"),
			e.DocumentNumber,
			e.PrinterNumber,
			e.DocumentType,
			e.CustomerCRIB,
			e.Total,
			e.Operation,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return 0, err
			}
		}
		if t, perr := parseAmount(e.Total); perr == nil {
			dayTotal += t
		}
		row++
		written++
	}
	flushDay()

	if err := f.SaveAs(path); err != nil {
		return 0, err
	}
	return written, nil
}

func parseAmount(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	var v float64
	if _, err := fmt.Sscanf(s, "%f", &v); err != nil {
		return 0, err
	}
	return v, nil
}
