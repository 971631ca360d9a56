package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Knetic/govaluate"

	"canvas-batch/internal/batch"
	"canvas-batch/internal/canvas"
	"canvas-batch/internal/config"
	"canvas-batch/internal/csvio"
	"canvas-batch/internal/gradebook"
	"canvas-batch/internal/logging"
	"canvas-batch/internal/validate"
)

// Canonical (uppercased) header names expected in input files.
const (
	headerSectionName = "SECTION_NAME"
	headerLoginID     = "LOGIN_ID"
	headerRole        = "ROLE"
	headerSectionID   = "SECTION_ID"
	headerEmail       = "EMAIL"
	headerFirstName   = "FIRST_NAME"
	headerLastName    = "LAST_NAME"
)

// pipeline carries the resolved configuration for one run and executes
// the selected operation end to end: parse, validate, submit, report.
type pipeline struct {
	cfg         *config.BatchConfig
	client      canvas.Client
	runID       string
	dryRun      bool
	ackWarnings bool
	dbConnStr   string
}

func (p *pipeline) run(ctx context.Context) (*Report, error) {
	// Gradebook files keep their original mixed-case headers; all other
	// operations canonicalize to uppercase so header matching is
	// case-insensitive from the user's point of view.
	uppercase := p.cfg.Operation.Type != config.OperationFormatGradebook
	reader, err := newTableReaderFunc(p.cfg.Input, uppercase)
	if err != nil {
		return nil, err
	}
	table, err := reader.Read(p.cfg.Input.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read input '%s': %w", p.cfg.Input.File, err)
	}
	logging.Logf(logging.Info, "Parsed %d data rows from %s", len(table.Records), p.cfg.Input.File)

	switch p.cfg.Operation.Type {
	case config.OperationCreateSections:
		return p.runCreateSections(ctx, table)
	case config.OperationEnrollUsers:
		return p.runEnrollUsers(ctx, table)
	case config.OperationEnrollExternalUsers:
		return p.runEnrollExternalUsers(ctx, table)
	case config.OperationMergeSections:
		return p.runMergeSections(ctx, table, true)
	case config.OperationUnmergeSections:
		return p.runMergeSections(ctx, table, false)
	case config.OperationFormatGradebook:
		return p.runFormatGradebook(ctx, table)
	default:
		return nil, fmt.Errorf("unsupported operation type: %s", p.cfg.Operation.Type)
	}
}

func (p *pipeline) newReport(rowCount int) *Report {
	return &Report{
		RunID:     p.runID,
		Operation: p.cfg.Operation.Type,
		DryRun:    p.dryRun,
		RowCount:  rowCount,
	}
}

// validateSchema runs the header/length/shape checks shared by every
// CSV-driven operation. A non-nil report means the file was rejected.
func (p *pipeline) validateSchema(table *csvio.Table, required []string, maxRows int) *Report {
	sv := validate.NewSchemaValidator(required, maxRows)
	invs := sv.Validate(table.Headers, table.Records)
	if len(invs) == 0 {
		if inv := sv.CheckRecordShapes(table.Records); inv != nil {
			invs = append(invs, *inv)
		}
	}
	if len(invs) == 0 {
		return nil
	}
	report := p.newReport(len(table.Records))
	report.SchemaInvalidations = invs
	return report
}

// applyFilter drops records for which the configured expression is
// falsy. Validation has already run against the full file, so row
// numbers in any reported invalidations still refer to the original
// positions; the filter only narrows what gets submitted.
func (p *pipeline) applyFilter(records []csvio.Record) ([]csvio.Record, error) {
	if p.cfg.Filter == "" {
		return records, nil
	}
	expr, err := govaluate.NewEvaluableExpression(p.cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	kept := make([]csvio.Record, 0, len(records))
	for i, rec := range records {
		params := make(map[string]interface{}, len(rec))
		for k, v := range rec {
			params[k] = v
		}
		result, err := expr.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("filter evaluation failed on row %d: %w", i+1, err)
		}
		keep, ok := result.(bool)
		if !ok {
			return nil, fmt.Errorf("filter expression must evaluate to a boolean, got %T on row %d", result, i+1)
		}
		if keep {
			kept = append(kept, rec)
		}
	}
	if skipped := len(records) - len(kept); skipped > 0 {
		logging.Logf(logging.Info, "Filter excluded %d of %d rows from submission", skipped, len(records))
	}
	return kept, nil
}

func (p *pipeline) runCreateSections(ctx context.Context, table *csvio.Table) (*Report, error) {
	if report := p.validateSchema(table, []string{headerSectionName}, config.MaxSectionRows); report != nil {
		return report, ErrValidation
	}
	names := table.Column(headerSectionName)
	rowInvs := validate.RunChecks([]validate.ColumnCheck{
		{Validator: validate.NewColumnValidator(validate.NameValidators("section name")...), Values: names},
		{Validator: &validate.DuplicateIdentifierValidator{ValueName: "section name"}, Values: names},
	})
	if len(rowInvs) > 0 {
		report := p.newReport(len(table.Records))
		report.RowInvalidations = rowInvs
		return report, ErrValidation
	}

	records, err := p.applyFilter(table.Records)
	if err != nil {
		return nil, err
	}
	names = recordColumn(records, headerSectionName)

	report := p.newReport(len(table.Records))
	if p.dryRun {
		logging.Logf(logging.Info, "Dry run: would create %d sections in course %d", len(names), p.cfg.Operation.CourseID)
		return report, nil
	}
	sections, errReport := batch.CreateSections(ctx, p.client, p.cfg.Concurrency, p.cfg.Operation.CourseID, names)
	report.Successes = sections
	report.ErrorReport = errReport
	if errReport != nil {
		return report, ErrBatchFailures
	}
	return report, nil
}

func (p *pipeline) runEnrollUsers(ctx context.Context, table *csvio.Table) (*Report, error) {
	// When no fixed section is configured each row must name its own
	// target section, so SECTION_ID becomes a required header.
	perRowSections := p.cfg.Operation.SectionID == 0
	required := []string{headerLoginID, headerRole}
	if perRowSections {
		required = append(required, headerSectionID)
	}
	if report := p.validateSchema(table, required, config.MaxEnrollmentRows); report != nil {
		return report, ErrValidation
	}

	logins := table.Column(headerLoginID)
	roles := table.Column(headerRole)
	checks := []validate.ColumnCheck{
		{Validator: validate.NewColumnValidator(validate.NameValidators("login ID")...), Values: logins},
		{Validator: &validate.DuplicateIdentifierValidator{ValueName: "login ID"}, Values: logins},
		{Validator: &validate.RoleValidator{ValidRoles: canvas.ValidRoles(), AllowedRoles: p.cfg.Operation.AllowedRoles}, Values: roles},
	}
	if perRowSections {
		checks = append(checks, validate.ColumnCheck{
			Validator: validate.NewColumnValidator(validate.PositiveIntegerValidator{FieldName: "section ID"}),
			Values:    table.Column(headerSectionID),
		})
		if !p.dryRun {
			refCheck, err := p.sectionReferenceCheck(ctx, table)
			if err != nil {
				return nil, err
			}
			if refCheck != nil {
				checks = append(checks, *refCheck)
			}
		} else {
			logging.Logf(logging.Info, "Dry run: skipping section reference check against course %d", p.cfg.Operation.CourseID)
		}
	}
	rowInvs := validate.RunChecks(checks)
	if len(rowInvs) > 0 {
		report := p.newReport(len(table.Records))
		report.RowInvalidations = rowInvs
		return report, ErrValidation
	}

	records, err := p.applyFilter(table.Records)
	if err != nil {
		return nil, err
	}
	users := make([]batch.SectionUser, len(records))
	for i, rec := range records {
		sectionID := p.cfg.Operation.SectionID
		if perRowSections {
			sectionID, _ = strconv.Atoi(rec[headerSectionID])
		}
		users[i] = batch.SectionUser{
			LoginID:   rec[headerLoginID],
			Role:      rec[headerRole],
			SectionID: sectionID,
		}
	}

	report := p.newReport(len(table.Records))
	if p.dryRun {
		logging.Logf(logging.Info, "Dry run: would enroll %d users", len(users))
		return report, nil
	}
	enrollments, errReport := batch.EnrollUsers(ctx, p.client, p.cfg.Concurrency, p.cfg.Operation.SectionID, users)
	report.Successes = enrollments
	report.ErrorReport = errReport
	if errReport != nil {
		return report, ErrBatchFailures
	}
	return report, nil
}

// sectionReferenceCheck fetches the course's sections and builds a
// validator that rejects rows naming a section outside the course.
// Returns nil when the course has too many sections to check against.
func (p *pipeline) sectionReferenceCheck(ctx context.Context, table *csvio.Table) (*validate.ColumnCheck, error) {
	sections, err := p.client.ListSections(ctx, p.cfg.Operation.CourseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections for course %d: %w", p.cfg.Operation.CourseID, err)
	}
	if len(sections) > config.MaxSectionReferenceEntries {
		logging.Logf(logging.Warning, "Course %d has %d sections, more than the %d supported for reference checks; skipping.",
			p.cfg.Operation.CourseID, len(sections), config.MaxSectionReferenceEntries)
		return nil, nil
	}
	known := make(map[string]struct{}, len(sections))
	for _, s := range sections {
		known[strconv.Itoa(s.ID)] = struct{}{}
	}
	return &validate.ColumnCheck{
		Validator: &validate.ReferenceValidator{ValueName: "section ID", Known: known},
		Values:    table.Column(headerSectionID),
	}, nil
}

func (p *pipeline) runEnrollExternalUsers(ctx context.Context, table *csvio.Table) (*Report, error) {
	required := []string{headerEmail, headerRole, headerFirstName, headerLastName}
	if report := p.validateSchema(table, required, config.MaxExternalUserRows); report != nil {
		return report, ErrValidation
	}

	emails := table.Column(headerEmail)
	emailRules := append(validate.NameValidators("email address"), validate.EmailValidator{})
	rowInvs := validate.RunChecks([]validate.ColumnCheck{
		{Validator: validate.NewColumnValidator(emailRules...), Values: emails},
		{Validator: &validate.DuplicateIdentifierValidator{ValueName: "email address"}, Values: emails},
		{Validator: validate.NewColumnValidator(validate.NameValidators("first name")...), Values: table.Column(headerFirstName)},
		{Validator: validate.NewColumnValidator(validate.NameValidators("last name")...), Values: table.Column(headerLastName)},
		{Validator: &validate.RoleValidator{ValidRoles: canvas.ValidRoles(), AllowedRoles: p.cfg.Operation.AllowedRoles}, Values: table.Column(headerRole)},
	})
	if len(rowInvs) > 0 {
		report := p.newReport(len(table.Records))
		report.RowInvalidations = rowInvs
		return report, ErrValidation
	}

	records, err := p.applyFilter(table.Records)
	if err != nil {
		return nil, err
	}
	extUsers := make([]batch.ExternalUser, len(records))
	for i, rec := range records {
		extUsers[i] = batch.ExternalUser{
			Email:     rec[headerEmail],
			FirstName: rec[headerFirstName],
			LastName:  rec[headerLastName],
			Role:      rec[headerRole],
		}
	}

	report := p.newReport(len(table.Records))
	if p.dryRun {
		logging.Logf(logging.Info, "Dry run: would provision and enroll %d external users", len(extUsers))
		return report, nil
	}

	created := batch.CreateExternalUsers(ctx, p.client, p.cfg.Concurrency, p.cfg.Operation.AccountID, extUsers)
	var failures []canvas.ErrorPayload
	var enrollable []batch.SectionUser
	for _, res := range created {
		if res.Failed() {
			failures = append(failures, *res.Err)
			continue
		}
		if res.Created {
			report.CreatedUsers = append(report.CreatedUsers, res.Email)
		} else {
			report.ExistingUsers = append(report.ExistingUsers, res.Email)
		}
		// External users sign in with their email address.
		enrollable = append(enrollable, batch.SectionUser{LoginID: res.Email, Role: res.Role})
	}

	enrollResults := batch.EnrollUserResults(ctx, p.client, p.cfg.Concurrency, p.cfg.Operation.SectionID, enrollable)
	var successes []canvas.Enrollment
	for _, res := range enrollResults {
		if res.Failed() {
			failures = append(failures, *res.Err)
		} else {
			successes = append(successes, res.Value)
		}
	}
	report.Successes = successes
	if len(failures) > 0 {
		report.ErrorReport = batch.BuildErrorReport(failures)
		return report, ErrBatchFailures
	}
	return report, nil
}

func (p *pipeline) runMergeSections(ctx context.Context, table *csvio.Table, merge bool) (*Report, error) {
	if report := p.validateSchema(table, []string{headerSectionID}, config.MaxSectionReferenceEntries); report != nil {
		return report, ErrValidation
	}
	ids := table.Column(headerSectionID)
	rowInvs := validate.RunChecks([]validate.ColumnCheck{
		{Validator: validate.NewColumnValidator(validate.PositiveIntegerValidator{FieldName: "section ID"}), Values: ids},
		{Validator: &validate.DuplicateIdentifierValidator{ValueName: "section ID"}, Values: ids},
	})
	if len(rowInvs) > 0 {
		report := p.newReport(len(table.Records))
		report.RowInvalidations = rowInvs
		return report, ErrValidation
	}

	records, err := p.applyFilter(table.Records)
	if err != nil {
		return nil, err
	}
	sectionIDs := make([]int, len(records))
	for i, rec := range records {
		sectionIDs[i], _ = strconv.Atoi(rec[headerSectionID])
	}

	report := p.newReport(len(table.Records))
	if p.dryRun {
		verb := "merge"
		if !merge {
			verb = "unmerge"
		}
		logging.Logf(logging.Info, "Dry run: would %s %d sections", verb, len(sectionIDs))
		return report, nil
	}
	var successes []canvas.CourseSectionBase
	var errReport *batch.ErrorReport
	if merge {
		successes, errReport = batch.MergeSections(ctx, p.client, p.cfg.Concurrency, p.cfg.Operation.TargetCourseID, sectionIDs)
	} else {
		successes, errReport = batch.UnmergeSections(ctx, p.client, p.cfg.Concurrency, sectionIDs)
	}
	report.Successes = successes
	report.ErrorReport = errReport
	if errReport != nil {
		return report, ErrBatchFailures
	}
	return report, nil
}

func (p *pipeline) runFormatGradebook(ctx context.Context, table *csvio.Table) (*Report, error) {
	if p.cfg.Roster == nil {
		return nil, fmt.Errorf("%w: roster configuration is required for %s", ErrMissingArgs, config.OperationFormatGradebook)
	}
	roster, err := newRosterSourceFunc(*p.cfg.Roster, p.dbConnStr)
	if err != nil {
		return nil, err
	}
	loginIDs, err := roster.LoginIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load student roster: %w", err)
	}
	logging.Logf(logging.Info, "Loaded %d roster login IDs", len(loginIDs))

	sv := validate.NewSchemaValidator([]string{gradebook.LoginIDHeader}, 0)
	if invs := sv.Validate(table.Headers, table.Records); len(invs) > 0 {
		report := p.newReport(len(table.Records))
		report.SchemaInvalidations = invs
		return report, ErrValidation
	}

	proc := gradebook.NewProcessor(loginIDs)
	result := proc.Process(table.Headers, table.Records)
	report := p.newReport(len(table.Records))
	report.GradebookInvalidations = result.Invalidations
	if !result.Valid {
		return report, ErrValidation
	}
	if warnings := result.Warnings(); len(warnings) > 0 && !p.ackWarnings {
		for _, w := range warnings {
			logging.Logf(logging.Warning, "%s", w.Message)
		}
		if p.dryRun {
			return report, nil
		}
		return report, ErrWarnings
	}
	if p.dryRun {
		logging.Logf(logging.Info, "Dry run: would write %d formatted rows", len(result.ProcessedRecords))
		return report, nil
	}

	outFile := p.cfg.Output.File
	if outFile == "" {
		outFile = csvio.OutputFileName(p.cfg.Input.File, "-formatted")
	}
	headers := gradebook.OutputHeaders(result.AssignmentHeader)
	if err := csvio.WriteCSV(outFile, headers, result.ProcessedRecords); err != nil {
		return report, fmt.Errorf("failed to write formatted gradebook: %w", err)
	}
	logging.Logf(logging.Info, "Wrote %d formatted rows to %s", len(result.ProcessedRecords), outFile)
	report.OutputFile = outFile
	return report, nil
}

func recordColumn(records []csvio.Record, header string) []string {
	values := make([]string, len(records))
	for i, rec := range records {
		values[i] = rec[header]
	}
	return values
}
