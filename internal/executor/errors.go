package executor

import (
	"errors"
	"fmt"
)

// ExecutionError reports a database-side failure while running a compiled
// statement. It carries the expression and the generated SQL so a failing
// statement can be reproduced directly against the engine.
type ExecutionError struct {
	Expression string
	Dialect    string
	SQL        string
	Cause      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %q on %s: %v", e.Expression, e.Dialect, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// AsExecutionError unwraps err as an *ExecutionError if possible.
func AsExecutionError(err error) (*ExecutionError, bool) {
	var xerr *ExecutionError
	if errors.As(err, &xerr) {
		return xerr, true
	}
	return nil, false
}
