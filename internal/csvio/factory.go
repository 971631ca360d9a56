package csvio

import (
	"context"
	"fmt"
	"strings"

	"canvas-batch/internal/config"
	"canvas-batch/internal/logging"
)

// NewTableReader creates the appropriate TableReader for an input source.
// uppercaseHeaders selects the canonical upper-cased header form used by
// every operation except gradebook reconciliation, whose headers stay in
// their Canvas-export casing.
func NewTableReader(input config.InputConfig, uppercaseHeaders bool) (TableReader, error) {
	switch strings.ToLower(input.Type) {
	case config.SourceTypeCSV:
		return NewCSVReader(input.Delimiter, uppercaseHeaders)
	case config.SourceTypeXLSX:
		return NewXLSXReader(input.SheetName, input.SheetIndex, uppercaseHeaders), nil
	default:
		return nil, fmt.Errorf("unsupported input type: '%s'", input.Type)
	}
}

// RosterSource provides the student login IDs gradebook reconciliation
// matches against.
type RosterSource interface {
	LoginIDs(ctx context.Context) ([]string, error)
}

// fileRosterSource reads login IDs from one column of a CSV or XLSX file.
type fileRosterSource struct {
	reader   TableReader
	filePath string
	column   string
}

// LoginIDs reads the roster file and extracts the configured column,
// skipping blank cells.
func (fs *fileRosterSource) LoginIDs(_ context.Context) ([]string, error) {
	table, err := fs.reader.Read(fs.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}
	if !table.HasHeader(fs.column) {
		return nil, fmt.Errorf("roster file '%s' has no '%s' column", fs.filePath, fs.column)
	}
	var loginIDs []string
	for _, value := range table.Column(fs.column) {
		if strings.TrimSpace(value) == "" {
			continue
		}
		loginIDs = append(loginIDs, value)
	}
	logging.Logf(logging.Debug, "Loaded %d login IDs from roster file %s", len(loginIDs), fs.filePath)
	return loginIDs, nil
}

// NewRosterSource creates a RosterSource from configuration. dbConnStr is
// only consulted for postgres rosters.
func NewRosterSource(roster config.RosterConfig, dbConnStr string) (RosterSource, error) {
	switch strings.ToLower(roster.Type) {
	case config.SourceTypeCSV:
		reader, err := NewCSVReader(roster.Delimiter, true)
		if err != nil {
			return nil, err
		}
		return &fileRosterSource{reader: reader, filePath: roster.File, column: roster.Column}, nil
	case config.SourceTypeXLSX:
		return &fileRosterSource{
			reader:   NewXLSXReader(roster.SheetName, nil, true),
			filePath: roster.File,
			column:   roster.Column,
		}, nil
	case config.SourceTypePostgres:
		if dbConnStr == "" {
			return nil, fmt.Errorf("postgres roster requires a connection string (-db flag or DB_CREDENTIALS)")
		}
		return NewPostgresRosterSource(dbConnStr, roster.Query), nil
	default:
		return nil, fmt.Errorf("unsupported roster type: '%s'", roster.Type)
	}
}
