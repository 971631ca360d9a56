package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"canvas-batch/internal/batch"
	"canvas-batch/internal/canvas"
	"canvas-batch/internal/config"
	"canvas-batch/internal/csvio"
)

// stubReader returns a fixed table regardless of the file path.
type stubReader struct {
	table *csvio.Table
	err   error
}

func (s *stubReader) Read(string) (*csvio.Table, error) {
	return s.table, s.err
}

// stubRoster returns fixed login IDs.
type stubRoster struct {
	loginIDs []string
	err      error
}

func (s *stubRoster) LoginIDs(context.Context) ([]string, error) {
	return s.loginIDs, s.err
}

// stubCanvas is a minimal canvas.Client for pipeline tests.
type stubCanvas struct {
	createSectionFunc func(courseID int, name string) (canvas.CourseSection, error)
	enrollUserFunc    func(sectionID int, loginID, role string) (canvas.Enrollment, error)
	listSectionsFunc  func(courseID int) ([]canvas.CourseSection, error)
	createUserFunc    func(accountID int, user canvas.NewUser) (canvas.User, error)
	mergeSectionFunc  func(sectionID, targetCourseID int) (canvas.CourseSectionBase, error)
	unmergeFunc       func(sectionID int) (canvas.CourseSectionBase, error)
}

func (s *stubCanvas) CreateSection(_ context.Context, courseID int, name string) (canvas.CourseSection, error) {
	return s.createSectionFunc(courseID, name)
}

func (s *stubCanvas) EnrollUser(_ context.Context, sectionID int, loginID, role string) (canvas.Enrollment, error) {
	return s.enrollUserFunc(sectionID, loginID, role)
}

func (s *stubCanvas) MergeSection(_ context.Context, sectionID, targetCourseID int) (canvas.CourseSectionBase, error) {
	return s.mergeSectionFunc(sectionID, targetCourseID)
}

func (s *stubCanvas) UnmergeSection(_ context.Context, sectionID int) (canvas.CourseSectionBase, error) {
	return s.unmergeFunc(sectionID)
}

func (s *stubCanvas) ListSections(_ context.Context, courseID int) ([]canvas.CourseSection, error) {
	return s.listSectionsFunc(courseID)
}

func (s *stubCanvas) CreateUser(_ context.Context, accountID int, user canvas.NewUser) (canvas.User, error) {
	return s.createUserFunc(accountID, user)
}

// useStubReader swaps the table reader factory for the duration of a test.
func useStubReader(t *testing.T, table *csvio.Table) {
	t.Helper()
	original := newTableReaderFunc
	newTableReaderFunc = func(config.InputConfig, bool) (csvio.TableReader, error) {
		return &stubReader{table: table}, nil
	}
	t.Cleanup(func() { newTableReaderFunc = original })
}

func sectionTable(names ...string) *csvio.Table {
	records := make([]csvio.Record, len(names))
	for i, name := range names {
		records[i] = csvio.Record{"SECTION_NAME": name}
	}
	return &csvio.Table{Headers: []string{"SECTION_NAME"}, Records: records}
}

// TestRunCreateSectionsSuccess verifies the full validate-submit-report path.
func TestRunCreateSectionsSuccess(t *testing.T) {
	useStubReader(t, sectionTable("One", "Two"))
	p := &pipeline{
		cfg: &config.BatchConfig{
			Operation:   config.OperationConfig{Type: config.OperationCreateSections, CourseID: 42},
			Concurrency: 2,
		},
		client: &stubCanvas{
			createSectionFunc: func(courseID int, name string) (canvas.CourseSection, error) {
				return canvas.CourseSection{
					CourseSectionBase: canvas.CourseSectionBase{ID: 1, Name: name, CourseID: courseID},
				}, nil
			},
		},
		runID: "test-run",
	}

	report, err := p.run(context.Background())
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if report.RowCount != 2 || report.ErrorReport != nil {
		t.Errorf("Unexpected report: %#v", report)
	}
	sections, ok := report.Successes.([]canvas.CourseSection)
	if !ok || len(sections) != 2 {
		t.Errorf("Successes = %#v", report.Successes)
	}
}

// TestRunCreateSectionsValidationFailure verifies duplicates block submission
// and are reported with row numbers.
func TestRunCreateSectionsValidationFailure(t *testing.T) {
	useStubReader(t, sectionTable("Same", "Other", "same"))
	called := false
	p := &pipeline{
		cfg: &config.BatchConfig{
			Operation: config.OperationConfig{Type: config.OperationCreateSections, CourseID: 42},
		},
		client: &stubCanvas{
			createSectionFunc: func(int, string) (canvas.CourseSection, error) {
				called = true
				return canvas.CourseSection{}, nil
			},
		},
		runID: "test-run",
	}

	report, err := p.run(context.Background())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected ErrValidation, got: %v", err)
	}
	if called {
		t.Errorf("No Canvas call should happen after validation failure")
	}
	if len(report.RowInvalidations) != 2 {
		t.Fatalf("Expected 2 duplicate invalidations, got %#v", report.RowInvalidations)
	}
	if report.RowInvalidations[0].RowNumber != 1 || report.RowInvalidations[1].RowNumber != 3 {
		t.Errorf("Row numbers = %d, %d; want 1, 3",
			report.RowInvalidations[0].RowNumber, report.RowInvalidations[1].RowNumber)
	}
}

// TestRunCreateSectionsSchemaFailure verifies a missing header stops before
// row validation.
func TestRunCreateSectionsSchemaFailure(t *testing.T) {
	useStubReader(t, &csvio.Table{
		Headers: []string{"NAME"},
		Records: []csvio.Record{{"NAME": "One"}},
	})
	p := &pipeline{
		cfg: &config.BatchConfig{
			Operation: config.OperationConfig{Type: config.OperationCreateSections, CourseID: 42},
		},
		runID: "test-run",
	}
	report, err := p.run(context.Background())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected ErrValidation, got: %v", err)
	}
	if len(report.SchemaInvalidations) != 1 {
		t.Fatalf("Expected 1 schema invalidation, got %#v", report.SchemaInvalidations)
	}
	if !strings.Contains(report.SchemaInvalidations[0].Message, `"SECTION_NAME"`) {
		t.Errorf("Message does not name the missing header: %q", report.SchemaInvalidations[0].Message)
	}
}

// TestRunCreateSectionsDryRun verifies no Canvas calls are made in dry-run
// mode.
func TestRunCreateSectionsDryRun(t *testing.T) {
	useStubReader(t, sectionTable("One"))
	p := &pipeline{
		cfg: &config.BatchConfig{
			Operation: config.OperationConfig{Type: config.OperationCreateSections, CourseID: 42},
		},
		dryRun: true,
		runID:  "test-run",
	}
	report, err := p.run(context.Background())
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !report.DryRun || report.Successes != nil {
		t.Errorf("Unexpected dry-run report: %#v", report)
	}
}

// TestRunEnrollUsersBatchFailure verifies partial failures surface as
// ErrBatchFailures with an aggregated report.
func TestRunEnrollUsersBatchFailure(t *testing.T) {
	useStubReader(t, &csvio.Table{
		Headers: []string{"LOGIN_ID", "ROLE"},
		Records: []csvio.Record{
			{"LOGIN_ID": "good", "ROLE": "student"},
			{"LOGIN_ID": "bad", "ROLE": "student"},
		},
	})
	p := &pipeline{
		cfg: &config.BatchConfig{
			Operation: config.OperationConfig{Type: config.OperationEnrollUsers, SectionID: 11},
		},
		client: &stubCanvas{
			enrollUserFunc: func(sectionID int, loginID, role string) (canvas.Enrollment, error) {
				if loginID == "bad" {
					return canvas.Enrollment{}, &canvas.StatusError{StatusCode: 404, Message: "user not found"}
				}
				return canvas.Enrollment{CourseSectionID: sectionID}, nil
			},
		},
		runID: "test-run",
	}

	report, err := p.run(context.Background())
	if !errors.Is(err, ErrBatchFailures) {
		t.Fatalf("Expected ErrBatchFailures, got: %v", err)
	}
	if report.ErrorReport == nil || report.ErrorReport.StatusCode != 404 {
		t.Errorf("Unexpected error report: %#v", report.ErrorReport)
	}
}

// TestRunEnrollUsersPerRowSections verifies section reference validation
// against the target course.
func TestRunEnrollUsersPerRowSections(t *testing.T) {
	useStubReader(t, &csvio.Table{
		Headers: []string{"LOGIN_ID", "ROLE", "SECTION_ID"},
		Records: []csvio.Record{
			{"LOGIN_ID": "a", "ROLE": "student", "SECTION_ID": "101"},
			{"LOGIN_ID": "b", "ROLE": "student", "SECTION_ID": "999"},
		},
	})
	p := &pipeline{
		cfg: &config.BatchConfig{
			Operation: config.OperationConfig{Type: config.OperationEnrollUsers, CourseID: 7},
		},
		client: &stubCanvas{
			listSectionsFunc: func(courseID int) ([]canvas.CourseSection, error) {
				return []canvas.CourseSection{
					{CourseSectionBase: canvas.CourseSectionBase{ID: 101, CourseID: courseID}},
				}, nil
			},
		},
		runID: "test-run",
	}

	report, err := p.run(context.Background())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected ErrValidation, got: %v", err)
	}
	if len(report.RowInvalidations) != 1 || report.RowInvalidations[0].RowNumber != 2 {
		t.Fatalf("Unexpected invalidations: %#v", report.RowInvalidations)
	}
	if !strings.Contains(report.RowInvalidations[0].Message, `"999"`) {
		t.Errorf("Message does not name the unknown section: %q", report.RowInvalidations[0].Message)
	}
}

// TestRunEnrollExternalUsers verifies the provision-then-enroll flow with an
// already existing user.
func TestRunEnrollExternalUsers(t *testing.T) {
	useStubReader(t, &csvio.Table{
		Headers: []string{"EMAIL", "ROLE", "FIRST_NAME", "LAST_NAME"},
		Records: []csvio.Record{
			{"EMAIL": "new@example.edu", "ROLE": "student", "FIRST_NAME": "New", "LAST_NAME": "Person"},
			{"EMAIL": "old@example.edu", "ROLE": "student", "FIRST_NAME": "Old", "LAST_NAME": "Person"},
		},
	})
	p := &pipeline{
		cfg: &config.BatchConfig{
			Operation: config.OperationConfig{
				Type:      config.OperationEnrollExternalUsers,
				AccountID: 3,
				SectionID: 11,
			},
		},
		client: &stubCanvas{
			createUserFunc: func(accountID int, user canvas.NewUser) (canvas.User, error) {
				if user.Email == "old@example.edu" {
					return canvas.User{}, &canvas.StatusError{StatusCode: 400, Message: "ID already in use"}
				}
				return canvas.User{ID: 1, LoginID: user.Email}, nil
			},
			enrollUserFunc: func(sectionID int, loginID, role string) (canvas.Enrollment, error) {
				return canvas.Enrollment{CourseSectionID: sectionID}, nil
			},
		},
		runID: "test-run",
	}

	report, err := p.run(context.Background())
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if len(report.CreatedUsers) != 1 || report.CreatedUsers[0] != "new@example.edu" {
		t.Errorf("CreatedUsers = %v", report.CreatedUsers)
	}
	if len(report.ExistingUsers) != 1 || report.ExistingUsers[0] != "old@example.edu" {
		t.Errorf("ExistingUsers = %v", report.ExistingUsers)
	}
	enrollments, ok := report.Successes.([]canvas.Enrollment)
	if !ok || len(enrollments) != 2 {
		t.Errorf("Successes = %#v", report.Successes)
	}
}

// TestRunFormatGradebook verifies the reconciliation flow including the
// warning acknowledgment gate.
func TestRunFormatGradebook(t *testing.T) {
	table := &csvio.Table{
		Headers: []string{"Student Name", "SIS Login ID", "HW 1"},
		Records: []csvio.Record{
			{"Student Name": "Points Possible", "SIS Login ID": "", "HW 1": "100"},
			{"Student Name": "Alice", "SIS Login ID": "alice", "HW 1": "95"},
		},
	}
	useStubReader(t, table)
	originalRoster := newRosterSourceFunc
	newRosterSourceFunc = func(config.RosterConfig, string) (csvio.RosterSource, error) {
		return &stubRoster{loginIDs: []string{"alice", "bob"}}, nil
	}
	t.Cleanup(func() { newRosterSourceFunc = originalRoster })

	outFile := filepath.Join(t.TempDir(), "out.csv")
	newPipeline := func(ack bool) *pipeline {
		return &pipeline{
			cfg: &config.BatchConfig{
				Operation: config.OperationConfig{Type: config.OperationFormatGradebook},
				Input:     config.InputConfig{File: "grades.csv"},
				Output:    config.OutputConfig{File: outFile},
				Roster:    &config.RosterConfig{Type: config.SourceTypeCSV, File: "roster.csv"},
			},
			runID:       "test-run",
			ackWarnings: ack,
		}
	}

	// Without acknowledgment the missing-student warning blocks the run.
	report, err := runPipeline(t, newPipeline(false))
	if !errors.Is(err, ErrWarnings) {
		t.Fatalf("Expected ErrWarnings, got: %v", err)
	}
	if len(report.GradebookInvalidations) != 1 {
		t.Errorf("Expected the combined warning, got: %#v", report.GradebookInvalidations)
	}
	if _, statErr := os.Stat(outFile); !os.IsNotExist(statErr) {
		t.Errorf("No output file should be written before acknowledgment")
	}

	// With acknowledgment the file is written.
	report, err = runPipeline(t, newPipeline(true))
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if report.OutputFile != outFile {
		t.Errorf("OutputFile = %q, want %q", report.OutputFile, outFile)
	}
	content, readErr := os.ReadFile(outFile)
	if readErr != nil {
		t.Fatalf("Failed to read output: %v", readErr)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d lines:\n%s", len(lines), content)
	}
	if lines[0] != "Student Name,Student ID,SIS User ID,SIS Login ID,Section,HW 1" {
		t.Errorf("Header line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Points Possible,") {
		t.Errorf("Points row not first: %q", lines[1])
	}
}

func runPipeline(t *testing.T, p *pipeline) (*Report, error) {
	t.Helper()
	return p.run(context.Background())
}

// TestRunFilterNarrowsSubmission verifies filtered rows are validated but
// not submitted.
func TestRunFilterNarrowsSubmission(t *testing.T) {
	useStubReader(t, &csvio.Table{
		Headers: []string{"LOGIN_ID", "ROLE"},
		Records: []csvio.Record{
			{"LOGIN_ID": "keep", "ROLE": "student"},
			{"LOGIN_ID": "drop", "ROLE": "observer"},
		},
	})
	var enrolled []string
	p := &pipeline{
		cfg: &config.BatchConfig{
			Operation: config.OperationConfig{Type: config.OperationEnrollUsers, SectionID: 11},
			Filter:    "ROLE != 'observer'",
		},
		client: &stubCanvas{
			enrollUserFunc: func(sectionID int, loginID, role string) (canvas.Enrollment, error) {
				enrolled = append(enrolled, loginID)
				return canvas.Enrollment{}, nil
			},
		},
		runID: "test-run",
	}

	if _, err := p.run(context.Background()); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if len(enrolled) != 1 || enrolled[0] != "keep" {
		t.Errorf("Enrolled = %v, want only the kept row", enrolled)
	}
}

// TestWriteReport verifies serialization to a file.
func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	report := &Report{
		RunID:     "abc",
		Operation: config.OperationCreateSections,
		RowCount:  2,
		ErrorReport: &batch.ErrorReport{
			StatusCode: 404,
			Errors:     []canvas.ErrorPayload{{StatusCode: 404, Message: "not found"}},
		},
	}
	if err := writeReport(report, path, config.OperationCreateSections); err != nil {
		t.Fatalf("writeReport failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Report is not valid JSON: %v", err)
	}
	if decoded["runId"] != "abc" {
		t.Errorf("runId = %v", decoded["runId"])
	}
	errReport := decoded["errorReport"].(map[string]interface{})
	if errReport["statusCode"] != float64(404) {
		t.Errorf("statusCode = %v", errReport["statusCode"])
	}
}

// TestRunMissingConfig verifies the sentinel for a nonexistent config file.
func TestRunMissingConfig(t *testing.T) {
	runner := NewAppRunner()
	err := runner.Run([]string{"-config", "/nonexistent/batch.yaml", "-dry-run"})
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got: %v", err)
	}
}

// TestUsage verifies the help text mentions every flag.
func TestUsage(t *testing.T) {
	var buf bytes.Buffer
	NewAppRunner().Usage(&buf)
	out := buf.String()
	for _, flagName := range []string{"-config", "-input", "-output", "-op", "-token", "-db", "-loglevel", "-dry-run", "-ack-warnings"} {
		if !strings.Contains(out, flagName) {
			t.Errorf("Usage text missing %s", flagName)
		}
	}
}
