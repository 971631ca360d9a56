package validate

import (
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Severity distinguishes blocking invalidations from advisory ones.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// String returns the user-facing severity name.
func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// MarshalJSON renders the severity name in reports.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Invalidation is a single defect found in a scalar value.
type Invalidation struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// FieldValidator checks one scalar value against one rule. A nil return
// means the value passed.
type FieldValidator interface {
	Validate(value string) *Invalidation
}

// CanvasMaxNameLength is the length bound Canvas applies to names, emails,
// and login IDs.
const CanvasMaxNameLength = 255

// RequiredValidator fails when the trimmed value is empty.
type RequiredValidator struct {
	FieldName string
}

// Validate implements FieldValidator.
func (v RequiredValidator) Validate(value string) *Invalidation {
	if strings.TrimSpace(value) == "" {
		return &Invalidation{
			Message:  fmt.Sprintf("Value for the %s may not be blank.", v.FieldName),
			Severity: SeverityError,
		}
	}
	return nil
}

// MaxLengthValidator fails when the value exceeds Max runes.
type MaxLengthValidator struct {
	FieldName string
	Max       int
}

// Validate implements FieldValidator.
func (v MaxLengthValidator) Validate(value string) *Invalidation {
	if utf8.RuneCountInString(value) > v.Max {
		return &Invalidation{
			Message:  fmt.Sprintf("Value for the %s must be %d characters in length or less.", v.FieldName, v.Max),
			Severity: SeverityError,
		}
	}
	return nil
}

// PositiveIntegerValidator fails when the value is not a positive integer.
// Canvas identifiers (section IDs, course IDs) use this rule. Non-numeric
// input and non-positive numbers get distinct messages.
type PositiveIntegerValidator struct {
	FieldName string
}

// Validate implements FieldValidator.
func (v PositiveIntegerValidator) Validate(value string) *Invalidation {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return &Invalidation{
			Message:  fmt.Sprintf("Value for the %s may not be blank.", v.FieldName),
			Severity: SeverityError,
		}
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return &Invalidation{
			Message:  fmt.Sprintf("Value for the %s must be a number (e.g., it cannot contain letters).", v.FieldName),
			Severity: SeverityError,
		}
	}
	if n <= 0 {
		return &Invalidation{
			Message:  fmt.Sprintf("Value for the %s must be a positive integer.", v.FieldName),
			Severity: SeverityError,
		}
	}
	return nil
}

// EmailValidator fails when the value does not parse as an email address.
// Blank and length rules are separate validators; compose them explicitly.
type EmailValidator struct{}

// Validate implements FieldValidator.
func (v EmailValidator) Validate(value string) *Invalidation {
	if _, err := mail.ParseAddress(value); err != nil {
		return &Invalidation{
			Message:  "The value is not a valid email address.",
			Severity: SeverityError,
		}
	}
	return nil
}

// NameValidators returns the standard rule chain for a Canvas name-like
// field: non-blank, then at most 255 characters.
func NameValidators(fieldName string) []FieldValidator {
	return []FieldValidator{
		RequiredValidator{FieldName: fieldName},
		MaxLengthValidator{FieldName: fieldName, Max: CanvasMaxNameLength},
	}
}

// FindDuplicates returns the set of case-insensitively duplicated values in
// a column, keyed by the upper-cased form. It stable-sorts a normalized copy
// and scans adjacent pairs, so the input order is never disturbed.
func FindDuplicates(values []string) map[string]struct{} {
	sorted := make([]string, len(values))
	for i, v := range values {
		sorted[i] = strings.ToUpper(v)
	}
	sort.Strings(sorted)

	duplicates := make(map[string]struct{})
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1] == sorted[i] {
			duplicates[sorted[i]] = struct{}{}
		}
	}
	return duplicates
}
