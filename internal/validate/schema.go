package validate

import (
	"fmt"
	"strings"

	"canvas-batch/internal/csvio"
)

// SchemaInvalidation is a structural defect in an uploaded file, detected
// before any row content is inspected. A file with any SchemaInvalidation
// never proceeds to row validation.
type SchemaInvalidation struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// SchemaValidator checks the shape of an uploaded file: required headers
// present, and row count within bounds. Header matching is case-sensitive
// against the canonical form produced by the parser.
type SchemaValidator struct {
	RequiredHeaders []string
	// MaxRows bounds the number of data rows; 0 disables the check.
	MaxRows int
}

// NewSchemaValidator creates a SchemaValidator.
func NewSchemaValidator(requiredHeaders []string, maxRows int) *SchemaValidator {
	return &SchemaValidator{RequiredHeaders: requiredHeaders, MaxRows: maxRows}
}

// ValidateHeaders fails when any required header is absent. A nil header
// slice (nothing parsed) fails the same way.
func (s *SchemaValidator) ValidateHeaders(headers []string) *SchemaInvalidation {
	quoted := make([]string, len(s.RequiredHeaders))
	for i, h := range s.RequiredHeaders {
		quoted[i] = fmt.Sprintf("%q", h)
	}
	invalidation := &SchemaInvalidation{
		Message: "The headers are invalid. The first line must include the following headers: " +
			strings.Join(quoted, ", "),
		Severity: SeverityError,
	}

	if headers == nil {
		return invalidation
	}
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}
	for _, required := range s.RequiredHeaders {
		if _, ok := present[required]; !ok {
			return invalidation
		}
	}
	return nil
}

// ValidateLength fails when the file has no data rows or exceeds MaxRows.
// There is no minimum beyond zero.
func (s *SchemaValidator) ValidateLength(records []csvio.Record) *SchemaInvalidation {
	if len(records) == 0 {
		return &SchemaInvalidation{Message: "No data was found in the file.", Severity: SeverityError}
	}
	if s.MaxRows > 0 && len(records) > s.MaxRows {
		return &SchemaInvalidation{
			Message: fmt.Sprintf(
				"The CSV file has too many records. The maximum number of non-header records allowed is %d.",
				s.MaxRows,
			),
			Severity: SeverityError,
		}
	}
	return nil
}

// Validate runs the header and length checks. Both run regardless of each
// other, so a single pass can report more than one structural defect.
func (s *SchemaValidator) Validate(headers []string, records []csvio.Record) []SchemaInvalidation {
	var invalidations []SchemaInvalidation
	if inv := s.ValidateHeaders(headers); inv != nil {
		invalidations = append(invalidations, *inv)
	}
	if inv := s.ValidateLength(records); inv != nil {
		invalidations = append(invalidations, *inv)
	}
	return invalidations
}

// CheckRecordShapes reports whether every record carries all required
// columns. Failing files get the single coarse-grained invalidation below
// rather than a per-row enumeration.
func (s *SchemaValidator) CheckRecordShapes(records []csvio.Record) *SchemaInvalidation {
	for _, rec := range records {
		for _, required := range s.RequiredHeaders {
			if _, ok := rec[required]; !ok {
				return &SchemaInvalidation{
					Message:  "Some of the required columns in the CSV are missing data.",
					Severity: SeverityError,
				}
			}
		}
	}
	return nil
}
