package config

// Operation names, input source types, and pipeline defaults.
const (
	OperationCreateSections      = "create-sections"
	OperationEnrollUsers         = "enroll-users"
	OperationEnrollExternalUsers = "enroll-external-users"
	OperationMergeSections       = "merge-sections"
	OperationUnmergeSections     = "unmerge-sections"
	OperationFormatGradebook     = "format-gradebook"

	SourceTypeCSV      = "csv"
	SourceTypeXLSX     = "xlsx"
	SourceTypePostgres = "postgres"

	DefaultLogLevel     = "info"
	DefaultCSVDelimiter = ","
	DefaultConcurrency  = 5

	// Row-count bounds per operation. Exceeding a bound is a schema-level
	// rejection, never a silent truncation.
	MaxSectionRows      = 60
	MaxEnrollmentRows   = 400
	MaxExternalUserRows = 200

	// Upper bound on the section-ID reference set fetched from the target
	// course for per-row section enrollment.
	MaxSectionReferenceEntries = 250
)

// BatchConfig is the root structure of the YAML configuration file.
type BatchConfig struct {
	// Logging specifies the verbosity level.
	Logging LoggingConfig `yaml:"logging"`
	// Canvas holds the API endpoint and credentials.
	Canvas CanvasConfig `yaml:"canvas"`
	// Operation selects the bulk operation and its target identifiers.
	Operation OperationConfig `yaml:"operation"`
	// Input describes the uploaded file to process.
	Input InputConfig `yaml:"input"`
	// Output describes where results are written. Optional; reports default
	// to stdout and the gradebook output name is derived from the input.
	Output OutputConfig `yaml:"output,omitempty"`
	// Roster configures the student roster source used by gradebook
	// reconciliation. Required for the format-gradebook operation.
	Roster *RosterConfig `yaml:"roster,omitempty"`
	// Filter is an optional expression (govaluate syntax) evaluated against
	// each raw input row before any validation. Rows for which the
	// expression evaluates to false are dropped.
	// Example: "ROLE != 'observer'"
	Filter string `yaml:"filter,omitempty"`
	// Concurrency bounds the number of Canvas calls in flight at once.
	// Defaults to DefaultConcurrency.
	Concurrency int `yaml:"concurrency,omitempty"`
}

// LoggingConfig holds settings related to logging verbosity.
type LoggingConfig struct {
	// Level defines the logging detail ("none", "error", "warn", "info",
	// "debug"). Defaults to "info".
	Level string `yaml:"level"`
}

// CanvasConfig holds the remote API settings.
type CanvasConfig struct {
	// BaseURL is the API root, e.g. "https://canvas.example.edu/api/v1".
	BaseURL string `yaml:"baseUrl"`
	// Token is the API bearer token. Environment variables are expanded, so
	// "$CANVAS_TOKEN" keeps the credential out of the file.
	Token string `yaml:"token,omitempty"`
}

// OperationConfig selects the bulk operation and its target identifiers.
// Which identifiers are required depends on the operation type.
type OperationConfig struct {
	// Type is one of the Operation* constants. Required.
	Type string `yaml:"type"`
	// CourseID is the target course for section creation, per-row section
	// enrollment validation, and the Postgres-less roster fetch.
	CourseID int `yaml:"courseId,omitempty"`
	// SectionID is the target section for enrollment operations when the
	// input has no SECTION_ID column.
	SectionID int `yaml:"sectionId,omitempty"`
	// TargetCourseID is the course sections are merged into.
	TargetCourseID int `yaml:"targetCourseId,omitempty"`
	// AccountID is the account external users are created under.
	AccountID int `yaml:"accountId,omitempty"`
	// AllowedRoles restricts which roles the submitter may assign. Empty
	// means any valid role.
	AllowedRoles []string `yaml:"allowedRoles,omitempty"`
}

// InputConfig describes the uploaded file.
type InputConfig struct {
	// Type is "csv" or "xlsx". Defaults to "csv".
	Type string `yaml:"type,omitempty"`
	// File is the path to the input file. Environment variables are
	// expanded. Required.
	File string `yaml:"file"`
	// Delimiter is the CSV field delimiter (default ",").
	Delimiter string `yaml:"delimiter,omitempty"`
	// SheetName selects the XLSX sheet to read; takes precedence over
	// SheetIndex. Defaults to the active sheet.
	SheetName string `yaml:"sheetName,omitempty"`
	// SheetIndex selects the XLSX sheet by 0-based index when SheetName is
	// not set. Pointer distinguishes 0 from unset.
	SheetIndex *int `yaml:"sheetIndex,omitempty"`
}

// OutputConfig describes where results are written.
type OutputConfig struct {
	// File is the output path. For batch operations the JSON outcome report
	// is written there (stdout when empty); for format-gradebook the
	// reconciled CSV is written there (name derived from input when empty).
	File string `yaml:"file,omitempty"`
}

// RosterConfig configures the student roster source for gradebook
// reconciliation.
type RosterConfig struct {
	// Type is "csv", "xlsx", or "postgres". Required.
	Type string `yaml:"type"`
	// File is the roster file path for file-based types. Environment
	// variables are expanded.
	File string `yaml:"file,omitempty"`
	// Column is the header of the login-ID column in file-based rosters.
	// Defaults to "LOGIN_ID" (canonical upper-cased form).
	Column string `yaml:"column,omitempty"`
	// Delimiter is the CSV field delimiter (default ",").
	Delimiter string `yaml:"delimiter,omitempty"`
	// SheetName selects the XLSX sheet for xlsx rosters.
	SheetName string `yaml:"sheetName,omitempty"`
	// Query is the SQL query for "postgres" rosters; it must return one
	// text column of login IDs. The connection string comes from the -db
	// flag or the DB_CREDENTIALS environment variable.
	Query string `yaml:"query,omitempty"`
}
