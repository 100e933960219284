package translator

import (
	"errors"
	"fmt"
)

// Error codes for TranslationError.
const (
	// ErrCodeUnknownFunction means the expression calls a function the
	// translator has no handler for.
	ErrCodeUnknownFunction = "UNKNOWN_FUNCTION"

	// ErrCodeWrongArgumentCount means a known function was called with the
	// wrong number of arguments. Validated before any dialect call.
	ErrCodeWrongArgumentCount = "WRONG_ARGUMENT_COUNT"

	// ErrCodeMissingSchemaMetadata means an operation requires array
	// flattening but the registry has no cardinality entry for a step on the
	// path. This is a hard failure, never a best-effort fallback.
	ErrCodeMissingSchemaMetadata = "MISSING_SCHEMA_METADATA"

	// ErrCodeUnsupportedConstruct means the construct is recognized but has
	// no SQL translation.
	ErrCodeUnsupportedConstruct = "UNSUPPORTED_CONSTRUCT"

	// ErrCodeUnknownVariable means a variable reference could not be resolved.
	ErrCodeUnknownVariable = "UNKNOWN_VARIABLE"

	// ErrCodeUnknownOperator means an operator spelling has no handler.
	ErrCodeUnknownOperator = "UNKNOWN_OPERATOR"

	// ErrCodeCollectionOperand means a collection-valued operand appeared
	// where a single value is required.
	ErrCodeCollectionOperand = "UNSUPPORTED_COLLECTION_OPERAND"

	// ErrCodeTypeFilter means a type filter names a complex type that cannot
	// be distinguished in stored JSON.
	ErrCodeTypeFilter = "UNSUPPORTED_TYPE_FILTER"

	// ErrCodeMultipleResources means the expression navigates more than one
	// resource type.
	ErrCodeMultipleResources = "UNSUPPORTED_MULTIPLE_RESOURCES"

	// ErrCodeArgument means an argument has an unsupported form, such as a
	// non-literal regular expression pattern.
	ErrCodeArgument = "UNSUPPORTED_ARGUMENT"
)

// TranslationError reports a semantically unsupported construct. Translation
// failures are always explicit; partial SQL is never produced.
type TranslationError struct {
	Code    string
	Message string
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation error [%s]: %s", e.Code, e.Message)
}

// AsTranslationError unwraps err as a *TranslationError if possible.
func AsTranslationError(err error) (*TranslationError, bool) {
	var terr *TranslationError
	if errors.As(err, &terr) {
		return terr, true
	}
	return nil, false
}

func errorf(code, format string, args ...any) *TranslationError {
	return &TranslationError{Code: code, Message: fmt.Sprintf(format, args...)}
}
