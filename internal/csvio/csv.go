package csvio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"canvas-batch/internal/logging"
)

// Record is one parsed data row as a header-to-value mapping. A header absent
// from the map means the row had no cell for that column; an empty string
// means the cell was present but blank. The distinction matters for the
// record-shape check in the schema validator.
type Record map[string]string

// Table is the result of parsing one uploaded file: the header row (in file
// order, canonicalized when requested) and the data rows.
type Table struct {
	Headers []string
	Records []Record
}

// TableReader loads a Table from a file path.
type TableReader interface {
	Read(filePath string) (*Table, error)
}

// Column extracts one column of values in row order. Absent cells yield "".
func (t *Table) Column(header string) []string {
	values := make([]string, len(t.Records))
	for i, rec := range t.Records {
		values[i] = rec[header]
	}
	return values
}

// HasHeader reports whether the table's header row contains name.
func (t *Table) HasHeader(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// CSVReader implements TableReader for CSV files. Headers are trimmed and,
// when UppercaseHeaders is set, upper-cased to the canonical form the schema
// validators match against. Blank lines are skipped.
type CSVReader struct {
	Delimiter        rune
	UppercaseHeaders bool
}

// NewCSVReader creates a CSVReader. An empty delimiter string means comma.
func NewCSVReader(delimiter string, uppercaseHeaders bool) (*CSVReader, error) {
	var delim rune = ','
	if delimiter != "" {
		if utf8.RuneCountInString(delimiter) != 1 {
			return nil, fmt.Errorf("invalid delimiter '%s': must be a single character", delimiter)
		}
		delim = []rune(delimiter)[0]
	}
	return &CSVReader{Delimiter: delim, UppercaseHeaders: uppercaseHeaders}, nil
}

// Read parses a CSV file into a Table. The first row is the header row; rows
// shorter than the header leave the trailing columns absent, and cells beyond
// the header count are dropped.
func (cr *CSVReader) Read(filePath string) (*Table, error) {
	logging.Logf(logging.Debug, "CSVReader reading file: %s (Delimiter: '%c')", filePath, cr.Delimiter)

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("CSVReader failed to open file '%s': %w", filePath, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = cr.Delimiter
	reader.FieldsPerRecord = -1

	allRows, err := reader.ReadAll()
	if err != nil {
		if parseErr, ok := err.(*csv.ParseError); ok {
			return nil, fmt.Errorf("CSVReader parse error in '%s' on line %d, column %d: %w", filePath, parseErr.Line, parseErr.Column, parseErr.Err)
		}
		return nil, fmt.Errorf("CSVReader failed to read rows from '%s': %w", filePath, err)
	}

	if len(allRows) == 0 {
		logging.Logf(logging.Warning, "CSV file '%s' is empty", filePath)
		return &Table{Headers: nil, Records: []Record{}}, nil
	}

	headers := cr.canonicalHeaders(allRows[0])
	records := make([]Record, 0, len(allRows)-1)
	for _, row := range allRows[1:] {
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

	logging.Logf(logging.Debug, "CSVReader loaded %d records from %s", len(records), filePath)
	return &Table{Headers: nonEmptyHeaders(headers), Records: records}, nil
}

// canonicalHeaders trims and optionally upper-cases the raw header row.
// Duplicate header names are kept; the last occurring column wins per row.
func (cr *CSVReader) canonicalHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for i, h := range raw {
		header := strings.TrimSpace(h)
		if cr.UppercaseHeaders {
			header = strings.ToUpper(header)
		}
		headers[i] = header
	}
	return headers
}

func nonEmptyHeaders(headers []string) []string {
	out := make([]string, 0, len(headers))
	for _, h := range headers {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// WriteCSV writes records as a CSV file with the given column order. Absent
// cells are written as empty strings. The parent directory is created when
// needed. Used for the reconciled gradebook output.
func WriteCSV(filePath string, headers []string, records []Record) error {
	dir := filepath.Dir(filePath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for '%s': %w", filePath, err)
		}
	}

	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file '%s': %w", filePath, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write header to '%s': %w", filePath, err)
	}
	for i, rec := range records {
		row := make([]string, len(headers))
		for j, header := range headers {
			row[j] = rec[header]
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write data row %d to '%s': %w", i+1, filePath, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("error flushing CSV output to '%s': %w", filePath, err)
	}
	logging.Logf(logging.Debug, "Wrote %d records to %s", len(records), filePath)
	return nil
}

// OutputFileName derives an output file name from an input name by appending
// a suffix before the extension, e.g. ("grades.csv", "-formatted") yields
// "grades-formatted.csv".
func OutputFileName(inputName, suffix string) string {
	parts := strings.Split(inputName, ".")
	nameIndex := 0
	if len(parts) >= 2 {
		nameIndex = len(parts) - 2
	}
	parts[nameIndex] = parts[nameIndex] + suffix
	return strings.Join(parts, ".")
}
