package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Knetic/govaluate"

	"canvas-batch/internal/canvas"
)

// Known valid enum values for configuration fields.
var (
	knownLogLevels = []string{"none", "error", "warn", "warning", "info", "debug"}
	knownOperations = []string{
		OperationCreateSections, OperationEnrollUsers, OperationEnrollExternalUsers,
		OperationMergeSections, OperationUnmergeSections, OperationFormatGradebook,
	}
	knownInputTypes  = []string{SourceTypeCSV, SourceTypeXLSX}
	knownRosterTypes = []string{SourceTypeCSV, SourceTypeXLSX, SourceTypePostgres}
)

// isValidEnumValue checks if a value is in a list of allowed values
// (case-insensitive).
func isValidEnumValue(value string, allowedValues []string) bool {
	lowerValue := strings.ToLower(value)
	for _, allowed := range allowedValues {
		if lowerValue == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// ValidateConfig performs comprehensive validation of the batch configuration.
// All problems are collected into a single error so the user can fix the file
// in one pass.
func ValidateConfig(cfg *BatchConfig) error {
	var allErrors []string

	if !isValidEnumValue(cfg.Logging.Level, knownLogLevels) {
		allErrors = append(allErrors, fmt.Sprintf("- Config.Logging.Level: invalid log level '%s', must be one of %v", cfg.Logging.Level, knownLogLevels))
	}

	if cfg.Canvas.BaseURL == "" {
		allErrors = append(allErrors, "- Config.Canvas.BaseURL: required field is missing or empty")
	}

	allErrors = append(allErrors, validateOperationConfig("Config.Operation", &cfg.Operation)...)
	allErrors = append(allErrors, validateInputConfig("Config.Input", &cfg.Input)...)

	if cfg.Operation.Type == OperationFormatGradebook {
		if cfg.Roster == nil {
			allErrors = append(allErrors, "- Config.Roster: required for the format-gradebook operation")
		} else {
			allErrors = append(allErrors, validateRosterConfig("Config.Roster", cfg.Roster)...)
		}
	}

	if cfg.Filter != "" {
		if _, err := govaluate.NewEvaluableExpression(cfg.Filter); err != nil {
			allErrors = append(allErrors, fmt.Sprintf("- Config.Filter: invalid expression syntax: %v", err))
		}
	}

	if len(allErrors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(allErrors, "\n"))
	}
	return nil
}

// validateOperationConfig checks the operation type and its required target
// identifiers.
func validateOperationConfig(path string, op *OperationConfig) []string {
	var errs []string

	if op.Type == "" {
		errs = append(errs, fmt.Sprintf("- %s.Type: required field is missing or empty", path))
		return errs
	}
	if !isValidEnumValue(op.Type, knownOperations) {
		errs = append(errs, fmt.Sprintf("- %s.Type: invalid operation '%s', must be one of %v", path, op.Type, knownOperations))
		return errs
	}

	switch strings.ToLower(op.Type) {
	case OperationCreateSections:
		if op.CourseID <= 0 {
			errs = append(errs, fmt.Sprintf("- %s.CourseID: required for %s and must be positive", path, op.Type))
		}
	case OperationEnrollUsers:
		// SectionID may be omitted when the input carries a SECTION_ID
		// column, in which case CourseID scopes the reference lookup.
		if op.SectionID <= 0 && op.CourseID <= 0 {
			errs = append(errs, fmt.Sprintf("- %s: either SectionID or CourseID is required for %s", path, op.Type))
		}
	case OperationEnrollExternalUsers:
		if op.AccountID <= 0 {
			errs = append(errs, fmt.Sprintf("- %s.AccountID: required for %s and must be positive", path, op.Type))
		}
		if op.SectionID <= 0 {
			errs = append(errs, fmt.Sprintf("- %s.SectionID: required for %s and must be positive", path, op.Type))
		}
	case OperationMergeSections:
		if op.TargetCourseID <= 0 {
			errs = append(errs, fmt.Sprintf("- %s.TargetCourseID: required for %s and must be positive", path, op.Type))
		}
	}

	for _, role := range op.AllowedRoles {
		if !canvas.IsValidRole(role) {
			errs = append(errs, fmt.Sprintf("- %s.AllowedRoles: invalid role '%s', must be one of %v", path, role, canvas.ValidRoles()))
		}
	}

	return errs
}

// validateInputConfig checks the input source definition.
func validateInputConfig(path string, input *InputConfig) []string {
	var errs []string

	if !isValidEnumValue(input.Type, knownInputTypes) {
		errs = append(errs, fmt.Sprintf("- %s.Type: invalid input type '%s', must be one of %v", path, input.Type, knownInputTypes))
	}
	if input.File == "" {
		errs = append(errs, fmt.Sprintf("- %s.File: required field is missing or empty", path))
	}
	if input.Delimiter != "" && utf8.RuneCountInString(input.Delimiter) != 1 {
		errs = append(errs, fmt.Sprintf("- %s.Delimiter: must be a single character, got '%s'", path, input.Delimiter))
	}

	return errs
}

// validateRosterConfig checks the roster source definition for gradebook
// reconciliation.
func validateRosterConfig(path string, roster *RosterConfig) []string {
	var errs []string

	if !isValidEnumValue(roster.Type, knownRosterTypes) {
		errs = append(errs, fmt.Sprintf("- %s.Type: invalid roster type '%s', must be one of %v", path, roster.Type, knownRosterTypes))
		return errs
	}

	switch strings.ToLower(roster.Type) {
	case SourceTypePostgres:
		if roster.Query == "" {
			errs = append(errs, fmt.Sprintf("- %s.Query: required for postgres rosters", path))
		}
	default:
		if roster.File == "" {
			errs = append(errs, fmt.Sprintf("- %s.File: required for %s rosters", path, roster.Type))
		}
	}

	return errs
}
