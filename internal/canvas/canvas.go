package canvas

// Core Canvas entity shapes returned by the API. Field names follow the wire
// format used by the Canvas REST endpoints.

// CourseSectionBase is the minimal section record returned by section
// merge/unmerge calls.
type CourseSectionBase struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	CourseID int    `json:"course_id"`
}

// CourseSection is a full section record including enrollment totals.
type CourseSection struct {
	CourseSectionBase
	TotalStudents int `json:"total_students"`
}

// Enrollment is the record returned when a user is enrolled in a section.
type Enrollment struct {
	ID              int    `json:"id"`
	CourseID        int    `json:"course_id"`
	CourseSectionID int    `json:"course_section_id"`
	UserID          int    `json:"user_id"`
	Type            string `json:"type"`
}

// User is the Canvas user record returned by user creation and lookup calls.
type User struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	SortableName string `json:"sortable_name"`
	ShortName    string `json:"short_name"`
	LoginID      string `json:"login_id"`
}

// NewUser describes an externally sourced user to be created in Canvas.
type NewUser struct {
	Email     string
	FirstName string
	LastName  string
}

// Client-facing role names accepted in uploaded files.
const (
	RoleStudent  = "student"
	RoleTeacher  = "teacher"
	RoleTA       = "ta"
	RoleObserver = "observer"
	RoleDesigner = "designer"
)

// clientToCanvasRole maps upload role names to Canvas enrollment types.
var clientToCanvasRole = map[string]string{
	RoleStudent:  "StudentEnrollment",
	RoleTeacher:  "TeacherEnrollment",
	RoleTA:       "TaEnrollment",
	RoleObserver: "ObserverEnrollment",
	RoleDesigner: "DesignerEnrollment",
}

// orderedRoles preserves a stable order for messages and validation.
var orderedRoles = []string{RoleStudent, RoleTeacher, RoleTA, RoleObserver, RoleDesigner}

// IsValidRole reports whether role is one of the client-facing role names.
func IsValidRole(role string) bool {
	_, ok := clientToCanvasRole[role]
	return ok
}

// CanvasRole converts a client-facing role name to the Canvas enrollment type.
// The boolean is false when the role name is not recognized.
func CanvasRole(role string) (string, bool) {
	canvasRole, ok := clientToCanvasRole[role]
	return canvasRole, ok
}

// ValidRoles returns the client-facing role names in a stable order.
func ValidRoles() []string {
	roles := make([]string, len(orderedRoles))
	copy(roles, orderedRoles)
	return roles
}
