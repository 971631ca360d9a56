package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"canvas-batch/internal/logging"
)

// HTTPClient is the production Client implementation. Timeouts are left to
// the injected http.Client; the batch layer imposes none of its own.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates an HTTPClient for a Canvas API base URL (e.g.
// "https://canvas.example.edu/api/v1") using bearer token auth. A nil
// httpClient uses http.DefaultClient.
func NewHTTPClient(baseURL, token string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  httpClient,
	}
}

// request performs one API call and decodes a 2xx JSON response into out.
// Non-2xx responses become a *StatusError carrying the parsed error body.
func (c *HTTPClient) request(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body for '%s': %w", endpoint, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	fullURL := c.baseURL + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request for '%s': %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logging.Logf(logging.Debug, "Sending request to Canvas - Endpoint: %s; Method: %s", endpoint, method)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to Canvas endpoint '%s' failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from '%s': %w", endpoint, err)
	}
	logging.Logf(logging.Debug, "Received response with status code %d", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Message: ParseErrorBody(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response from '%s': %w", endpoint, err)
		}
	}
	return nil
}

// CreateSection creates a named section within a course.
func (c *HTTPClient) CreateSection(ctx context.Context, courseID int, name string) (CourseSection, error) {
	endpoint := fmt.Sprintf("courses/%d/sections", courseID)
	requestBody := map[string]interface{}{
		"course_section": map[string]string{"name": name},
	}
	var section CourseSection
	if err := c.request(ctx, http.MethodPost, endpoint, requestBody, &section); err != nil {
		return CourseSection{}, err
	}
	return section, nil
}

// EnrollUser enrolls a user (by SIS login ID) into a section. The role is a
// client-facing role name and is mapped to the Canvas enrollment type.
func (c *HTTPClient) EnrollUser(ctx context.Context, sectionID int, loginID string, role string) (Enrollment, error) {
	canvasRole, ok := CanvasRole(role)
	if !ok {
		return Enrollment{}, fmt.Errorf("invalid Canvas role \"%s\"", role)
	}
	endpoint := fmt.Sprintf("sections/%d/enrollments", sectionID)
	requestBody := map[string]interface{}{
		"enrollment": map[string]interface{}{
			"user_id":          "sis_login_id:" + loginID,
			"type":             canvasRole,
			"enrollment_state": "active",
			"notify":           false,
		},
	}
	var enrollment Enrollment
	if err := c.request(ctx, http.MethodPost, endpoint, requestBody, &enrollment); err != nil {
		return Enrollment{}, err
	}
	return enrollment, nil
}

// MergeSection cross-lists a section into a target course.
func (c *HTTPClient) MergeSection(ctx context.Context, sectionID int, targetCourseID int) (CourseSectionBase, error) {
	endpoint := fmt.Sprintf("sections/%d/crosslist/%d", sectionID, targetCourseID)
	var section CourseSectionBase
	if err := c.request(ctx, http.MethodPost, endpoint, nil, &section); err != nil {
		return CourseSectionBase{}, err
	}
	return section, nil
}

// UnmergeSection removes a section's cross-listing.
func (c *HTTPClient) UnmergeSection(ctx context.Context, sectionID int) (CourseSectionBase, error) {
	endpoint := fmt.Sprintf("sections/%d/crosslist", sectionID)
	var section CourseSectionBase
	if err := c.request(ctx, http.MethodDelete, endpoint, nil, &section); err != nil {
		return CourseSectionBase{}, err
	}
	return section, nil
}

// ListSections returns the sections of a course. One page of up to 100
// sections is requested, which covers the reference-set bound upstream.
func (c *HTTPClient) ListSections(ctx context.Context, courseID int) ([]CourseSection, error) {
	endpoint := fmt.Sprintf("courses/%d/sections?per_page=100", courseID)
	var sections []CourseSection
	if err := c.request(ctx, http.MethodGet, endpoint, nil, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// CreateUser creates a user under an account, suppressing registration and
// confirmation messages so provisioning stays silent.
func (c *HTTPClient) CreateUser(ctx context.Context, accountID int, user NewUser) (User, error) {
	endpoint := fmt.Sprintf("accounts/%d/users", accountID)
	requestBody := map[string]interface{}{
		"user": map[string]interface{}{
			"name":              user.FirstName + " " + user.LastName,
			"sortable_name":     user.LastName + ", " + user.FirstName,
			"skip_registration": true,
		},
		"pseudonym": map[string]interface{}{
			"unique_id":         user.Email,
			"send_confirmation": false,
		},
		"communication_channel": map[string]interface{}{
			"type":              "email",
			"address":           user.Email,
			"skip_confirmation": true,
		},
		"force_validations": false,
	}
	var created User
	if err := c.request(ctx, http.MethodPost, endpoint, requestBody, &created); err != nil {
		return User{}, err
	}
	return created, nil
}
