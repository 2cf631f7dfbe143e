package sq

import "errors"

// ErrValidation matches every *ValidationError with errors.Is.
var ErrValidation = errors.New("invalid structured query")

// ValidationError reports a structurally invalid structured query.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
