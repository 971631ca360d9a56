package csvio

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

// writeTestWorkbook creates an xlsx file with the given sheet and rows.
func writeTestWorkbook(t *testing.T, sheetName string, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheetName != "Sheet1" {
		if _, err := f.NewSheet(sheetName); err != nil {
			t.Fatalf("Failed to create sheet: %v", err)
		}
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			t.Fatalf("Failed to set row: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "input.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save workbook: %v", err)
	}
	return path
}

// TestXLSXReaderRead verifies header canonicalization and row parsing from
// the default sheet.
func TestXLSXReaderRead(t *testing.T) {
	path := writeTestWorkbook(t, "Sheet1", [][]string{
		{"login_id", "Role"},
		{"user1", "student"},
		{"user2", "teacher"},
	})

	reader := NewXLSXReader("", nil, true)
	table, err := reader.Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !reflect.DeepEqual(table.Headers, []string{"LOGIN_ID", "ROLE"}) {
		t.Errorf("Headers = %v", table.Headers)
	}
	expected := []Record{
		{"LOGIN_ID": "user1", "ROLE": "student"},
		{"LOGIN_ID": "user2", "ROLE": "teacher"},
	}
	if !reflect.DeepEqual(table.Records, expected) {
		t.Errorf("Records =\n %#v\nwant\n %#v", table.Records, expected)
	}
}

// TestXLSXReaderSheetByName verifies named-sheet selection.
func TestXLSXReaderSheetByName(t *testing.T) {
	path := writeTestWorkbook(t, "Roster", [][]string{
		{"LOGIN_ID"},
		{"alice"},
	})

	reader := NewXLSXReader("Roster", nil, true)
	table, err := reader.Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(table.Records) != 1 || table.Records[0]["LOGIN_ID"] != "alice" {
		t.Errorf("Records = %#v", table.Records)
	}
}

// TestXLSXReaderMissingSheet verifies a clear error for an unknown sheet.
func TestXLSXReaderMissingSheet(t *testing.T) {
	path := writeTestWorkbook(t, "Sheet1", [][]string{{"A"}, {"1"}})
	reader := NewXLSXReader("Nope", nil, true)
	if _, err := reader.Read(path); err == nil {
		t.Errorf("Expected error for missing sheet")
	}
}

// TestXLSXReaderMissingFile verifies open errors are surfaced.
func TestXLSXReaderMissingFile(t *testing.T) {
	reader := NewXLSXReader("", nil, true)
	if _, err := reader.Read("/nonexistent/input.xlsx"); err == nil {
		t.Errorf("Expected error for missing file")
	}
}
