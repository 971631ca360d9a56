package canvas

import "context"

// Client is the capability surface the batch handlers call through. The
// production implementation is HTTPClient; tests substitute stubs.
type Client interface {
	// CreateSection creates a named section within a course.
	CreateSection(ctx context.Context, courseID int, name string) (CourseSection, error)
	// EnrollUser enrolls the user identified by loginID into a section with a
	// client-facing role name (e.g. "student").
	EnrollUser(ctx context.Context, sectionID int, loginID string, role string) (Enrollment, error)
	// MergeSection cross-lists a section into a target course.
	MergeSection(ctx context.Context, sectionID int, targetCourseID int) (CourseSectionBase, error)
	// UnmergeSection removes a section's cross-listing.
	UnmergeSection(ctx context.Context, sectionID int) (CourseSectionBase, error)
	// ListSections returns the sections of a course.
	ListSections(ctx context.Context, courseID int) ([]CourseSection, error)
	// CreateUser creates a user under an account. When the login ID is
	// already taken Canvas rejects the call; callers detect that case with
	// IsUserExistsError and treat the user as already present.
	CreateUser(ctx context.Context, accountID int, user NewUser) (User, error)
}
