package ast

import (
	"errors"
	"fmt"
)

// AdapterError reports a parse tree shape the adapter does not support.
// Adapter failures are compile-time errors and are never silently swallowed.
type AdapterError struct {
	NodeKind string // parse tree node kind that could not be converted
	Context  string // where in the expression the node appeared
	Message  string
}

func (e *AdapterError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("adapter: %s node in %s: %s", e.NodeKind, e.Context, e.Message)
	}
	return fmt.Sprintf("adapter: %s node: %s", e.NodeKind, e.Message)
}

// AsAdapterError unwraps err as an *AdapterError if possible.
func AsAdapterError(err error) (*AdapterError, bool) {
	var aerr *AdapterError
	if errors.As(err, &aerr) {
		return aerr, true
	}
	return nil, false
}

func adapterErrorf(kind, context, format string, args ...any) *AdapterError {
	return &AdapterError{NodeKind: kind, Context: context, Message: fmt.Sprintf(format, args...)}
}
