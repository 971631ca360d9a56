package canvas

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"canvas-batch/internal/logging"
	"canvas-batch/internal/util"
)

// ErrorPayload is the normalized shape for a single failed remote call.
// FailedInput carries the originating input value for diagnostics and is nil
// when the call had no meaningful single input.
type ErrorPayload struct {
	StatusCode  int     `json:"statusCode"`
	Message     string  `json:"message"`
	FailedInput *string `json:"failedInput"`
}

// StatusError is returned by the HTTP client when Canvas responds with a
// non-2xx status. It preserves the status code and the parsed error body.
type StatusError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("canvas returned status %d: %s", e.StatusCode, e.Message)
}

// canvasErrorBody matches the JSON error shape Canvas uses for failed calls.
type canvasErrorBody struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// ParseErrorBody extracts a human-readable message from a Canvas error
// response body. HTML and unexpected shapes are reported rather than dropped.
func ParseErrorBody(body []byte) string {
	if len(body) == 0 || strings.HasPrefix(string(body), "<!DOCTYPE html>") {
		return "No response body was found."
	}
	var parsed canvasErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Errors) == 0 {
		return fmt.Sprintf("Response body had unexpected shape: %s", util.TruncateForLog(string(body)))
	}
	messages := make([]string, 0, len(parsed.Errors))
	for _, e := range parsed.Errors {
		messages = append(messages, e.Message)
	}
	return strings.Join(messages, " ")
}

// IsUserExistsError reports whether err is the Canvas rejection for a login
// ID that is already in use. User creation treats this as "already present"
// rather than a failure.
func IsUserExistsError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) &&
		statusErr.StatusCode == 400 &&
		strings.Contains(statusErr.Message, "ID already in use")
}

// HandleAPIError normalizes any error from a client call into an ErrorPayload.
// A *StatusError keeps its status code and message; anything else (transport
// failures, cancelled contexts) becomes a 500 with a generic message so no
// opaque error escapes the batch boundary. failedInput identifies the input
// that triggered the call; pass "" when there is none.
func HandleAPIError(err error, failedInput string) ErrorPayload {
	var input *string
	if failedInput != "" {
		input = &failedInput
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		logging.Logf(logging.Error, "Received error status code: (%d)", statusErr.StatusCode)
		logging.Logf(logging.Error, "Response message: (%s)", statusErr.Message)
		logging.Logf(logging.Error, "Failed input: (%s)", failedInput)
		return ErrorPayload{StatusCode: statusErr.StatusCode, Message: statusErr.Message, FailedInput: input}
	}

	logging.Logf(logging.Error, "An error occurred while making a request to Canvas: %v", err)
	return ErrorPayload{
		StatusCode:  500,
		Message:     "A non-HTTP error occurred while communicating with Canvas.",
		FailedInput: input,
	}
}
