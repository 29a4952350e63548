package errors

import (
	stdErrors "errors"
	"fmt"
)

// StatusError is returned when a catalog API answers with an unexpected
// non-2xx status other than a rate limit.
type StatusError struct {
	Source     string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Source, e.StatusCode)
}

// NewStatusError creates a StatusError for the named source.
func NewStatusError(source string, statusCode int) *StatusError {
	return &StatusError{Source: source, StatusCode: statusCode}
}

// IsStatusError reports whether err is a StatusError (even when wrapped).
func IsStatusError(err error) bool {
	var statusErr *StatusError
	return stdErrors.As(err, &statusErr)
}
