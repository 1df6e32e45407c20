package rebuild

import "fmt"

// Code classifies rebuild failures.
type Code string

const (
	CodeNoClosedProfile  Code = "NO_CLOSED_PROFILE"
	CodeSelfIntersecting Code = "SELF_INTERSECTING"
	CodeInvalidReference Code = "INVALID_REFERENCE"
	CodeSketchNotFound   Code = "SKETCH_NOT_FOUND"
	CodeBuildError       Code = "BUILD_ERROR"
)

// Error is one failed feature's report. The rebuild continues past it.
type Error struct {
	FeatureID string `json:"featureId"`
	Code      Code   `json:"code"`
	Message   string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.FeatureID, e.Code, e.Message)
}

func failf(featureID string, code Code, format string, args ...any) *Error {
	return &Error{FeatureID: featureID, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Status is the per-feature outcome of a rebuild pass.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusComputed   Status = "computed"
	StatusError      Status = "error"
	StatusSuppressed Status = "suppressed"
	StatusGated      Status = "gated"
)
