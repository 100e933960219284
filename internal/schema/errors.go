package schema

import (
	"fmt"

	"cuelang.org/go/cue/token"
)

// LoadError represents a failure to load or decode a schema document.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load error codes.
const (
	ErrCodeNotFound    = "SCHEMA_NOT_FOUND"     // path does not exist
	ErrCodeBuildFailed = "SCHEMA_BUILD_FAILED"  // CUE compile/build failed
	ErrCodeBadProperty = "SCHEMA_BAD_PROPERTY"  // malformed property definition
	ErrCodeBadVariant  = "SCHEMA_BAD_VARIANT"   // malformed variant entry
	ErrCodeEmpty       = "SCHEMA_EMPTY"         // document defines no types
)
