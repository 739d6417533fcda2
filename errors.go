package rebac

import "fmt"

// ValidationError reports malformed policy input: a bad cron expression, an
// inverted validity window, a cyclic hierarchy. It is the only error class
// the engine surfaces to callers; anything else inside evaluation is handled
// fail-open and recorded in the trace.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err (or its cause chain) is a
// ValidationError.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}
