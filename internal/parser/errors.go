package parser

import "fmt"

// ParseError reports malformed expression text.
// Parse errors are caller-visible and never silently recovered.
type ParseError struct {
	Message string
	Pos     int // byte offset into the expression
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Message)
}

func errorf(pos int, format string, args ...any) *ParseError {
	return &ParseError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}
