package orchestrator

import "fmt"

// Error codes returned to the HTTP boundary.
const (
	CodeInvalidQuery = "invalid_query"
	CodeNotFound     = "job_not_found"
	CodeNotReady     = "not_ready"
)

// Error is a typed orchestration error carrying a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewInvalidQueryError reports an unusable submission.
func NewInvalidQueryError(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidQuery, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError reports an unknown job id.
func NewNotFoundError(jobID string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("job %s not found", jobID)}
}

// NewNotReadyError reports a result poll on a job that has not
// reached a terminal state yet.
func NewNotReadyError(jobID string) *Error {
	return &Error{Code: CodeNotReady, Message: fmt.Sprintf("job %s is not finished yet", jobID)}
}
