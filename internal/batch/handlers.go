package batch

import (
	"context"
	"fmt"
	"time"

	"canvas-batch/internal/canvas"
	"canvas-batch/internal/logging"
)

// The handlers below are thin per-operation adapters: each turns one
// validated item into one remote call and normalizes any error into an
// ErrorPayload. Fan-out belongs to RunLimited and reduction to Aggregate;
// the handlers themselves hold no concurrency logic and never retry.

// SectionUser is one validated enrollment row. SectionID is 0 when the
// batch targets a single section.
type SectionUser struct {
	LoginID   string
	Role      string
	SectionID int
}

// ExternalUser is one validated external-user row.
type ExternalUser struct {
	Email     string
	FirstName string
	LastName  string
	Role      string
}

// ExternalUserResult records the provisioning outcome for one email.
// Created is false when the user already existed in Canvas, which is not a
// failure; Err is set only for genuine failures.
type ExternalUserResult struct {
	Email   string
	Role    string
	Created bool
	User    canvas.User
	Err     *canvas.ErrorPayload
}

// Failed reports whether provisioning genuinely failed for this user.
func (r ExternalUserResult) Failed() bool {
	return r.Err != nil
}

// CreateSections creates one section per validated name within a course.
func CreateSections(ctx context.Context, client canvas.Client, limit int, courseID int, names []string) ([]canvas.CourseSection, *ErrorReport) {
	start := time.Now()
	tasks := make([]func(context.Context) ItemResult[canvas.CourseSection], len(names))
	for i, name := range names {
		name := name
		tasks[i] = func(ctx context.Context) ItemResult[canvas.CourseSection] {
			section, err := client.CreateSection(ctx, courseID, name)
			if err != nil {
				return Fail[canvas.CourseSection](canvas.HandleAPIError(err, name))
			}
			return Succeed(section)
		}
	}
	results := RunLimited(ctx, limit, tasks)
	logging.Logf(logging.Debug, "Time elapsed to create (%d) sections: (%v)", len(names), time.Since(start))
	return Aggregate(results)
}

// EnrollUsers enrolls each user into its section. defaultSectionID is used
// for users whose SectionID is 0.
func EnrollUsers(ctx context.Context, client canvas.Client, limit int, defaultSectionID int, users []SectionUser) ([]canvas.Enrollment, *ErrorReport) {
	results := EnrollUserResults(ctx, client, limit, defaultSectionID, users)
	return Aggregate(results)
}

// EnrollUserResults is EnrollUsers without the final aggregation, for
// callers that need per-item partial-success accounting.
func EnrollUserResults(ctx context.Context, client canvas.Client, limit int, defaultSectionID int, users []SectionUser) []ItemResult[canvas.Enrollment] {
	start := time.Now()
	tasks := make([]func(context.Context) ItemResult[canvas.Enrollment], len(users))
	for i, user := range users {
		user := user
		tasks[i] = func(ctx context.Context) ItemResult[canvas.Enrollment] {
			sectionID := user.SectionID
			if sectionID == 0 {
				sectionID = defaultSectionID
			}
			enrollment, err := client.EnrollUser(ctx, sectionID, user.LoginID, user.Role)
			if err != nil {
				failedInput := fmt.Sprintf("Login ID: %s; Role: %s", user.LoginID, user.Role)
				return Fail[canvas.Enrollment](canvas.HandleAPIError(err, failedInput))
			}
			return Succeed(enrollment)
		}
	}
	results := RunLimited(ctx, limit, tasks)
	logging.Logf(logging.Debug, "Time elapsed to enroll (%d) users: (%v)", len(users), time.Since(start))
	return results
}

// CreateExternalUsers provisions each user under an account. A Canvas
// rejection for an already-used login ID is reported as "not created" rather
// than a failure, since provisioning is idempotent from the submitter's view.
func CreateExternalUsers(ctx context.Context, client canvas.Client, limit int, accountID int, users []ExternalUser) []ExternalUserResult {
	start := time.Now()
	tasks := make([]func(context.Context) ExternalUserResult, len(users))
	for i, user := range users {
		user := user
		tasks[i] = func(ctx context.Context) ExternalUserResult {
			created, err := client.CreateUser(ctx, accountID, canvas.NewUser{
				Email:     user.Email,
				FirstName: user.FirstName,
				LastName:  user.LastName,
			})
			if err != nil {
				if canvas.IsUserExistsError(err) {
					logging.Logf(logging.Debug, "User with email %s already exists in Canvas", user.Email)
					return ExternalUserResult{Email: user.Email, Role: user.Role, Created: false}
				}
				payload := canvas.HandleAPIError(err, user.Email)
				return ExternalUserResult{Email: user.Email, Role: user.Role, Err: &payload}
			}
			return ExternalUserResult{Email: user.Email, Role: user.Role, Created: true, User: created}
		}
	}
	results := RunLimited(ctx, limit, tasks)
	logging.Logf(logging.Debug, "Time elapsed to create (%d) external users: (%v)", len(users), time.Since(start))
	return results
}

// MergeSections cross-lists each section into the target course.
func MergeSections(ctx context.Context, client canvas.Client, limit int, targetCourseID int, sectionIDs []int) ([]canvas.CourseSectionBase, *ErrorReport) {
	start := time.Now()
	tasks := make([]func(context.Context) ItemResult[canvas.CourseSectionBase], len(sectionIDs))
	for i, sectionID := range sectionIDs {
		sectionID := sectionID
		tasks[i] = func(ctx context.Context) ItemResult[canvas.CourseSectionBase] {
			section, err := client.MergeSection(ctx, sectionID, targetCourseID)
			if err != nil {
				failedInput := fmt.Sprintf("Section ID: %d", sectionID)
				return Fail[canvas.CourseSectionBase](canvas.HandleAPIError(err, failedInput))
			}
			return Succeed(section)
		}
	}
	results := RunLimited(ctx, limit, tasks)
	logging.Logf(logging.Debug, "Time elapsed to merge (%d) sections: (%v)", len(sectionIDs), time.Since(start))
	return Aggregate(results)
}

// UnmergeSections removes each section's cross-listing.
func UnmergeSections(ctx context.Context, client canvas.Client, limit int, sectionIDs []int) ([]canvas.CourseSectionBase, *ErrorReport) {
	start := time.Now()
	tasks := make([]func(context.Context) ItemResult[canvas.CourseSectionBase], len(sectionIDs))
	for i, sectionID := range sectionIDs {
		sectionID := sectionID
		tasks[i] = func(ctx context.Context) ItemResult[canvas.CourseSectionBase] {
			section, err := client.UnmergeSection(ctx, sectionID)
			if err != nil {
				failedInput := fmt.Sprintf("Section ID: %d", sectionID)
				return Fail[canvas.CourseSectionBase](canvas.HandleAPIError(err, failedInput))
			}
			return Succeed(section)
		}
	}
	results := RunLimited(ctx, limit, tasks)
	logging.Logf(logging.Debug, "Time elapsed to unmerge (%d) sections: (%v)", len(sectionIDs), time.Since(start))
	return Aggregate(results)
}
