package salesbook

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"printhub/internal/journal"
)

func seedJournal(t *testing.T) journal.Journal {
	t.Helper()
	j, err := journal.NewFileJournal(filepath.Join(t.TempDir(), "journal.json"))
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	at := func(day, hour int) time.Time {
		return time.Date(2026, 8, day, hour, 0, 0, 0, time.Local)
	}
	entries := []journal.Entry{
		{Time: at(1, 10), Operation: "print_document", DocumentNumber: "A122202235111000001", Total: "12.50"},
		{Time: at(1, 15), Operation: "print_document", DocumentNumber: "A122202235111000002", Total: "7.50"},
		{Time: at(2, 11), Operation: "print_document", DocumentNumber: "A122202235111000003", Total: "40.00"},
		{Time: at(9, 11), Operation: "print_document", DocumentNumber: "A122202235111000004", Total: "99.00"},
	}
	for _, e := range entries {
		if _, err := j.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return j
}

func TestExportWritesRowsInRange(t *testing.T) {
	j := seedJournal(t)
	path := filepath.Join(t.TempDir(), "salesbook.xlsx")

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2026, 8, 2, 0, 0, 0, 0, time.Local)
	rows, err := Export(j, start, end, path)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if rows != 3 {
		t.Errorf("exported %d rows, want 3", rows)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue(sheetName, "A1"); got != "Date" {
		t.Errorf("header A1 = %q", got)
	}
	if got, _ := f.GetCellValue(sheetName, "C2"); got != "A122202235111000001" {
		t.Errorf("first document C2 = %q", got)
	}
	// Two documents on day one, then the daily total row.
	if got, _ := f.GetCellValue(sheetName, "A4"); got != "Total 2026-08-01" {
		t.Errorf("daily total row A4 = %q", got)
	}
	if got, _ := f.GetCellValue(sheetName, "G4"); got != "20" {
		t.Errorf("daily total G4 = %q", got)
	}
}

func TestExportEmptyRange(t *testing.T) {
	j := seedJournal(t)
	path := filepath.Join(t.TempDir(), "salesbook.xlsx")

	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2026, 7, 2, 0, 0, 0, 0, time.Local)
	rows, err := Export(j, start, end, path)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if rows != 0 {
		t.Errorf("exported %d rows from an empty range", rows)
	}
}
