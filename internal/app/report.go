package app

import (
	"encoding/json"
	"fmt"
	"os"

	"canvas-batch/internal/batch"
	"canvas-batch/internal/config"
	"canvas-batch/internal/gradebook"
	"canvas-batch/internal/logging"
	"canvas-batch/internal/validate"
)

// Report is the JSON outcome document for one run. Exactly one of the
// invalidation groups or the success/error pair is populated depending on
// how far the pipeline got.
type Report struct {
	RunID     string `json:"runId"`
	Operation string `json:"operation"`
	DryRun    bool   `json:"dryRun,omitempty"`
	// RowCount is the number of data rows parsed from the input file,
	// before any filtering.
	RowCount int `json:"rowCount"`

	SchemaInvalidations    []validate.SchemaInvalidation `json:"schemaInvalidations,omitempty"`
	RowInvalidations       []validate.RowInvalidation    `json:"rowInvalidations,omitempty"`
	GradebookInvalidations []gradebook.Invalidation      `json:"gradebookInvalidations,omitempty"`

	// Successes holds the operation-specific success values: created
	// sections, enrollments, or merged/unmerged section identities.
	Successes interface{} `json:"successes,omitempty"`
	// CreatedUsers and ExistingUsers account for the provisioning half of
	// the external-user flow.
	CreatedUsers  []string           `json:"createdUsers,omitempty"`
	ExistingUsers []string           `json:"existingUsers,omitempty"`
	ErrorReport   *batch.ErrorReport `json:"errorReport,omitempty"`

	// OutputFile names the formatted gradebook CSV when one was written.
	OutputFile string `json:"outputFile,omitempty"`
}

// writeReport serializes the report as indented JSON. For most operations
// it goes to the configured output file, or stdout when none is set. The
// gradebook operation owns its output file for the formatted CSV, so its
// report always goes to stdout.
func writeReport(report *Report, outputFile, operation string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize outcome report: %w", err)
	}
	data = append(data, '\n')
	if outputFile == "" || operation == config.OperationFormatGradebook {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write outcome report to '%s': %w", outputFile, err)
	}
	logging.Logf(logging.Info, "Wrote outcome report to %s", outputFile)
	return nil
}
