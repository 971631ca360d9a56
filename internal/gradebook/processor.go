package gradebook

import (
	"fmt"
	"strings"

	"canvas-batch/internal/csvio"
	"canvas-batch/internal/logging"
	"canvas-batch/internal/validate"
)

// LoginIDHeader is the column that identifies a student in a Canvas
// gradebook export.
const LoginIDHeader = "SIS Login ID"

// PointsPossibleText is the marker value Canvas places in the first data row
// of a gradebook export.
const PointsPossibleText = "Points Possible"

// otherRequiredHeaders are the Canvas gradebook columns besides the login
// ID. Missing ones are backfilled with empty values on output.
var otherRequiredHeaders = []string{"Student Name", "Student ID", "SIS User ID", "Section"}

// RequiredOrderedHeaders is the fixed column order of a Canvas-importable
// gradebook file; the assignment column follows these.
var RequiredOrderedHeaders = []string{"Student Name", "Student ID", "SIS User ID", LoginIDHeader, "Section"}

// Invalidation is a file-level defect or notability found while reconciling
// a third-party gradebook.
type Invalidation struct {
	Message  string            `json:"message"`
	Severity validate.Severity `json:"severity"`
}

// Result is the outcome of one reconciliation pass. When Valid is false,
// Invalidations holds at least one error and no records are returned. When
// Valid is true, Invalidations may still hold warnings (e.g. roster members
// missing from the file) and the caller decides whether to proceed.
type Result struct {
	Valid            bool
	ProcessedRecords []csvio.Record
	AssignmentHeader string
	Invalidations    []Invalidation
}

// Errors returns the error-severity invalidations.
func (r Result) Errors() []Invalidation {
	return r.filter(validate.SeverityError)
}

// Warnings returns the warning-severity invalidations.
func (r Result) Warnings() []Invalidation {
	return r.filter(validate.SeverityWarning)
}

func (r Result) filter(severity validate.Severity) []Invalidation {
	var out []Invalidation
	for _, inv := range r.Invalidations {
		if inv.Severity == severity {
			out = append(out, inv)
		}
	}
	return out
}

// Processor aligns a third-party gradebook export against a roster of known
// student login IDs, producing a Canvas-importable file with exactly one new
// assignment column. It holds no state beyond the roster; Process is a pure
// function of its input.
type Processor struct {
	studentLoginIDs []string
}

// NewProcessor creates a Processor for a roster of student login IDs.
func NewProcessor(studentLoginIDs []string) *Processor {
	return &Processor{studentLoginIDs: studentLoginIDs}
}

// detectPointsPossible checks that the first data row carries the points
// marker in at least one cell.
func detectPointsPossible(firstRecord csvio.Record) *Invalidation {
	for _, value := range firstRecord {
		if value == PointsPossibleText {
			return nil
		}
	}
	return &Invalidation{
		Message:  fmt.Sprintf("The file you uploaded is missing a %s row.", PointsPossibleText),
		Severity: validate.SeverityError,
	}
}

// detectAssignment finds the single column that is not one of the required
// gradebook headers. Zero or multiple extra columns are both errors.
func detectAssignment(headers []string) (string, *Invalidation) {
	required := make(map[string]struct{}, len(RequiredOrderedHeaders))
	for _, h := range RequiredOrderedHeaders {
		required[h] = struct{}{}
	}
	var extras []string
	for _, h := range headers {
		if _, ok := required[h]; !ok {
			extras = append(extras, h)
		}
	}

	if len(extras) == 1 {
		return extras[0], nil
	}
	message := "No assignment column was found."
	if len(extras) > 1 {
		message = "Multiple assignment columns were found; only one assignment column at a time is supported."
	}
	return "", &Invalidation{Message: message, Severity: validate.SeverityError}
}

// validateAssignmentHeader applies the Canvas name rules to the surviving
// assignment column name.
func validateAssignmentHeader(name string) []Invalidation {
	var invalidations []Invalidation
	for _, fv := range validate.NameValidators("assignment header") {
		if inv := fv.Validate(name); inv != nil {
			invalidations = append(invalidations, Invalidation{Message: inv.Message, Severity: inv.Severity})
			break
		}
	}
	return invalidations
}

// Process reconciles the uploaded records against the roster. headers is
// the file's header row in original order; records are the data rows, the
// first of which must be the points-possible row.
func (p *Processor) Process(headers []string, records []csvio.Record) Result {
	var invalidations []Invalidation

	if len(records) == 0 {
		invalidations = append(invalidations, Invalidation{
			Message:  "No data was found in the file.",
			Severity: validate.SeverityError,
		})
		return Result{Valid: false, Invalidations: invalidations}
	}

	if inv := detectPointsPossible(records[0]); inv != nil {
		invalidations = append(invalidations, *inv)
	}

	assignmentHeader, assignmentInv := detectAssignment(headers)
	if assignmentInv != nil {
		invalidations = append(invalidations, *assignmentInv)
	} else {
		invalidations = append(invalidations, validateAssignmentHeader(assignmentHeader)...)
	}
	if len(invalidations) > 0 {
		return Result{Valid: false, Invalidations: invalidations}
	}

	pointsPossibleRecord := records[0]
	recordsToFilter := records[1:]

	// Match each roster member against the student rows. Exactly one match
	// keeps the record; zero goes to the combined missing-students warning;
	// more than one is an error naming the login ID.
	var filteredRecords []csvio.Record
	var studentsWithoutRecords []string
	for _, loginID := range p.studentLoginIDs {
		var matches []csvio.Record
		for _, rec := range recordsToFilter {
			if rec[LoginIDHeader] == loginID {
				matches = append(matches, rec)
			}
		}
		switch {
		case len(matches) == 1:
			filteredRecords = append(filteredRecords, matches[0])
		case len(matches) > 1:
			invalidations = append(invalidations, Invalidation{
				Message:  fmt.Sprintf("Student with %s %s found multiple times in file.", LoginIDHeader, loginID),
				Severity: validate.SeverityError,
			})
		default:
			studentsWithoutRecords = append(studentsWithoutRecords, loginID)
		}
	}

	if len(studentsWithoutRecords) > 0 {
		invalidations = append(invalidations, Invalidation{
			Message: "One or more students from the section(s) you selected were not present in the provided file: " +
				strings.Join(studentsWithoutRecords, ", "),
			Severity: validate.SeverityWarning,
		})
	}
	if len(filteredRecords) == 0 {
		invalidations = append(invalidations, Invalidation{
			Message:  "None of the students from the section(s) you selected were present in the provided file.",
			Severity: validate.SeverityError,
		})
	}

	for _, inv := range invalidations {
		if inv.Severity == validate.SeverityError {
			return Result{Valid: false, Invalidations: invalidations}
		}
	}

	// Re-attach the points row ahead of the matched records, backfilling
	// required-but-unused headers so the output has a uniform shape, and
	// relabel the points row for Canvas import.
	outputRecords := make([]csvio.Record, 0, len(filteredRecords)+1)
	outputRecords = append(outputRecords, addRequiredHeaders(pointsPossibleRecord))
	for _, rec := range filteredRecords {
		outputRecords = append(outputRecords, addRequiredHeaders(rec))
	}
	outputRecords[0][LoginIDHeader] = ""
	outputRecords[0][RequiredOrderedHeaders[0]] = PointsPossibleText

	logging.Logf(logging.Debug, "Gradebook reconciliation matched %d of %d roster members", len(filteredRecords), len(p.studentLoginIDs))
	return Result{
		Valid:            true,
		ProcessedRecords: outputRecords,
		AssignmentHeader: assignmentHeader,
		Invalidations:    invalidations,
	}
}

// OutputHeaders returns the fixed column order for the reconciled file.
func OutputHeaders(assignmentHeader string) []string {
	headers := make([]string, 0, len(RequiredOrderedHeaders)+1)
	headers = append(headers, RequiredOrderedHeaders...)
	return append(headers, assignmentHeader)
}

// addRequiredHeaders copies a record, filling any absent required header
// with an empty value.
func addRequiredHeaders(rec csvio.Record) csvio.Record {
	out := make(csvio.Record, len(rec)+len(otherRequiredHeaders))
	for k, v := range rec {
		out[k] = v
	}
	for _, header := range otherRequiredHeaders {
		if _, ok := out[header]; !ok {
			out[header] = ""
		}
	}
	return out
}
