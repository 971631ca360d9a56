package validate

import (
	"fmt"
	"strings"
)

// RowInvalidation is a per-row defect. RowNumber is 1-based and counts data
// rows only (the header row is excluded), matching the row's position in the
// uploaded file.
type RowInvalidation struct {
	RowNumber int      `json:"rowNumber"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
}

// RowValidator checks one column of values, where values[i] belongs to data
// row i+1. Validators compose by explicit lists; callers concatenate the
// outputs of every validator rather than short-circuiting.
type RowValidator interface {
	Validate(values []string) []RowInvalidation
}

// ColumnValidator applies a chain of field validators to every value in a
// column. The first failing rule per value wins, so a blank value reports
// only the blank message.
type ColumnValidator struct {
	validators []FieldValidator
}

// NewColumnValidator creates a ColumnValidator from field rules applied in
// order.
func NewColumnValidator(validators ...FieldValidator) *ColumnValidator {
	return &ColumnValidator{validators: validators}
}

// Validate implements RowValidator.
func (c *ColumnValidator) Validate(values []string) []RowInvalidation {
	var invalidations []RowInvalidation
	for i, value := range values {
		for _, fv := range c.validators {
			if inv := fv.Validate(value); inv != nil {
				invalidations = append(invalidations, RowInvalidation{
					RowNumber: i + 1,
					Message:   inv.Message,
					Severity:  inv.Severity,
				})
				break
			}
		}
	}
	return invalidations
}

// DuplicateIdentifierValidator flags values that appear more than once in a
// column, ignoring case. Every occurrence is flagged, not just the second,
// and each message carries the value's original casing.
type DuplicateIdentifierValidator struct {
	ValueName string
}

// Validate implements RowValidator.
func (d DuplicateIdentifierValidator) Validate(values []string) []RowInvalidation {
	duplicates := FindDuplicates(values)
	if len(duplicates) == 0 {
		return nil
	}
	var invalidations []RowInvalidation
	for i, value := range values {
		if _, ok := duplicates[strings.ToUpper(value)]; ok {
			invalidations = append(invalidations, RowInvalidation{
				RowNumber: i + 1,
				Message:   fmt.Sprintf("Duplicate %s found in this file: \"%s\"", d.ValueName, value),
				Severity:  SeverityError,
			})
		}
	}
	return invalidations
}

// RoleValidator checks that each value is a member of a fixed role
// enumeration and, when an allow-list is supplied, that the submitter may
// assign it. The two failure modes have distinct messages.
type RoleValidator struct {
	// ValidRoles is the full enumeration of recognized role names.
	ValidRoles []string
	// AllowedRoles restricts what the submitter may assign; empty means any
	// valid role is allowed.
	AllowedRoles []string
}

// Validate implements RowValidator.
func (r RoleValidator) Validate(values []string) []RowInvalidation {
	var invalidations []RowInvalidation
	for i, role := range values {
		if !containsString(r.ValidRoles, role) {
			invalidations = append(invalidations, RowInvalidation{
				RowNumber: i + 1,
				Message:   fmt.Sprintf("Value for role is invalid: \"%s\"", role),
				Severity:  SeverityError,
			})
		} else if len(r.AllowedRoles) > 0 && !containsString(r.AllowedRoles, role) {
			invalidations = append(invalidations, RowInvalidation{
				RowNumber: i + 1,
				Message:   fmt.Sprintf("You are not allowed to enroll users with the provided role: \"%s\"", role),
				Severity:  SeverityError,
			})
		}
	}
	return invalidations
}

// ReferenceValidator flags values absent from a separately supplied set of
// known identifiers, e.g. section IDs fetched from the target course. This
// is the one row rule whose context comes from I/O rather than the column
// itself.
type ReferenceValidator struct {
	ValueName string
	Known     map[string]struct{}
}

// Validate implements RowValidator.
func (r ReferenceValidator) Validate(values []string) []RowInvalidation {
	var invalidations []RowInvalidation
	for i, value := range values {
		if _, ok := r.Known[strings.TrimSpace(value)]; !ok {
			invalidations = append(invalidations, RowInvalidation{
				RowNumber: i + 1,
				Message:   fmt.Sprintf("Value for the %s is not one of those found in the course: \"%s\"", r.ValueName, value),
				Severity:  SeverityError,
			})
		}
	}
	return invalidations
}

// ColumnCheck pairs a validator with the column of values it inspects.
type ColumnCheck struct {
	Validator RowValidator
	Values    []string
}

// RunChecks runs every check in order and concatenates the results. Columns
// are independent; no validator blocks another.
func RunChecks(checks []ColumnCheck) []RowInvalidation {
	var all []RowInvalidation
	for _, check := range checks {
		all = append(all, check.Validator.Validate(check.Values)...)
	}
	return all
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
