package domain

import (
	"errors"
	"fmt"
)

// StageError wraps an error raised by a named pipeline stage. The pipeline
// catches these at its boundary and records them on the result instead of
// propagating them to the caller.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsStageError reports whether err is a stage failure.
func IsStageError(err error) bool {
	var se *StageError
	return errors.As(err, &se)
}
