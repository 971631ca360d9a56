package csvio

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"canvas-batch/internal/logging"
)

// XLSXReader implements TableReader for Excel (.xlsx) files. Third-party
// gradebook exports frequently arrive in this format.
type XLSXReader struct {
	SheetName        string
	SheetIndex       *int
	UppercaseHeaders bool
}

// NewXLSXReader creates an XLSXReader with sheet preferences. SheetName takes
// precedence over SheetIndex; with neither set the active sheet is used.
func NewXLSXReader(sheetName string, sheetIndex *int, uppercaseHeaders bool) *XLSXReader {
	return &XLSXReader{
		SheetName:        sheetName,
		SheetIndex:       sheetIndex,
		UppercaseHeaders: uppercaseHeaders,
	}
}

// Read loads the selected sheet into a Table using the same header and
// blank-row conventions as the CSV reader.
func (xr *XLSXReader) Read(filePath string) (*Table, error) {
	logging.Logf(logging.Debug, "XLSXReader reading file: %s (SheetName: '%s', SheetIndex: %v)", filePath, xr.SheetName, xr.SheetIndex)

	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("XLSXReader failed to open file '%s': %w", filePath, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Logf(logging.Error, "XLSXReader failed to close file '%s': %v", filePath, err)
		}
	}()

	targetSheet, err := xr.resolveSheet(f, filePath)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(targetSheet)
	if err != nil {
		return nil, fmt.Errorf("XLSXReader failed to read rows from sheet '%s' in '%s': %w", targetSheet, filePath, err)
	}
	if len(rows) == 0 {
		logging.Logf(logging.Warning, "XLSX sheet '%s' in '%s' is empty", targetSheet, filePath)
		return &Table{Headers: nil, Records: []Record{}}, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header := strings.TrimSpace(h)
		if xr.UppercaseHeaders {
			header = strings.ToUpper(header)
		}
		headers[i] = header
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		rec := make(Record, len(headers))
		for colIdx, value := range row {
			if colIdx >= len(headers) || headers[colIdx] == "" {
				continue
			}
			rec[headers[colIdx]] = value
		}
		records = append(records, rec)
	}

	logging.Logf(logging.Debug, "XLSXReader loaded %d records from sheet '%s' of %s", len(records), targetSheet, filePath)
	return &Table{Headers: nonEmptyHeaders(headers), Records: records}, nil
}

// resolveSheet picks the sheet to read by name, index, or active sheet.
func (xr *XLSXReader) resolveSheet(f *excelize.File, filePath string) (string, error) {
	if xr.SheetName != "" {
		for _, name := range f.GetSheetList() {
			if name == xr.SheetName {
				return xr.SheetName, nil
			}
		}
		return "", fmt.Errorf("XLSXReader: specified sheet name '%s' not found in '%s'", xr.SheetName, filePath)
	}

	if xr.SheetIndex != nil {
		name := f.GetSheetName(*xr.SheetIndex)
		if name == "" {
			sheetCount := len(f.GetSheetList())
			return "", fmt.Errorf("XLSXReader: specified sheet index %d is out of bounds (0 to %d) in '%s'", *xr.SheetIndex, sheetCount-1, filePath)
		}
		return name, nil
	}

	name := f.GetSheetName(f.GetActiveSheetIndex())
	if name == "" {
		name = f.GetSheetName(0)
	}
	if name == "" {
		return "", fmt.Errorf("XLSXReader: file '%s' contains no sheets", filePath)
	}
	return name, nil
}
