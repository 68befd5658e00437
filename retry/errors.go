package retry

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when MaxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrUnknownStrategy is returned when a strategy name cannot be parsed.
	ErrUnknownStrategy = errors.New("unknown retry strategy")
)
