package request

import (
	"errors"
	"fmt"
)

// ErrMaxRetries is returned when every attempt hit a retryable failure.
var ErrMaxRetries = errors.New("max retries exceeded")

// StatusError is a non-retryable HTTP error status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d", e.Code)
}
