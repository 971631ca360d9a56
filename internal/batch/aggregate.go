package batch

import "canvas-batch/internal/canvas"

// ItemResult is the outcome of one item's remote call: either a success
// value or a normalized error payload. Exactly one ItemResult exists per
// input item, in input order.
type ItemResult[S any] struct {
	Value S
	Err   *canvas.ErrorPayload
}

// Succeed wraps a success value.
func Succeed[S any](value S) ItemResult[S] {
	return ItemResult[S]{Value: value}
}

// Fail wraps a normalized error payload.
func Fail[S any](payload canvas.ErrorPayload) ItemResult[S] {
	return ItemResult[S]{Err: &payload}
}

// Failed reports whether the item's call failed.
func (r ItemResult[S]) Failed() bool {
	return r.Err != nil
}

// ErrorReport combines every failure of a batch. StatusCode is the shared
// failure status when all failures agree, and 502 when they differ; that
// rule is deterministic and matches how a gateway reports mixed upstream
// failures.
type ErrorReport struct {
	StatusCode int                   `json:"statusCode"`
	Errors     []canvas.ErrorPayload `json:"errors"`
}

// Aggregate merges per-item outcomes into either the plain success slice (in
// input order, nil report) or an ErrorReport holding every failure payload
// (nil successes). Successes are not retained alongside a non-empty report;
// callers needing partial-success accounting inspect the ItemResults before
// aggregating.
func Aggregate[S any](results []ItemResult[S]) ([]S, *ErrorReport) {
	var successes []S
	var failures []canvas.ErrorPayload

	for _, result := range results {
		if result.Failed() {
			failures = append(failures, *result.Err)
			continue
		}
		successes = append(successes, result.Value)
	}

	if len(failures) == 0 {
		return successes, nil
	}
	return nil, BuildErrorReport(failures)
}

// BuildErrorReport wraps failure payloads in an ErrorReport using the
// shared status-code rule. Returns nil when there are no failures.
func BuildErrorReport(failures []canvas.ErrorPayload) *ErrorReport {
	if len(failures) == 0 {
		return nil
	}
	statusCodes := make(map[int]struct{})
	for _, f := range failures {
		statusCodes[f.StatusCode] = struct{}{}
	}
	statusCode := 502
	if len(statusCodes) == 1 {
		statusCode = failures[0].StatusCode
	}
	return &ErrorReport{StatusCode: statusCode, Errors: failures}
}
