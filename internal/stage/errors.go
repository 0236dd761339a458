package stage

import "errors"

// ExecutionError wraps a collaborator failure with a retry classification.
// Retryable failures (resource pressure, transient I/O) are retried by the
// orchestrator up to the configured limit; everything else fails the stage
// on the first attempt.
type ExecutionError struct {
	StageID   string
	Retryable bool
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return "stage " + e.StageID + " failed"
	}
	return "stage " + e.StageID + ": " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError wraps err for stageID with the given retry classification.
func NewExecutionError(stageID string, retryable bool, err error) *ExecutionError {
	return &ExecutionError{StageID: stageID, Retryable: retryable, Err: err}
}

// Retryable reports whether err carries a retryable execution classification.
func Retryable(err error) bool {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Retryable
	}
	return false
}
