package batch

import "errors"

var (
	// ErrInvalidConfig is returned for batch sizes, offsets or limits out of range.
	ErrInvalidConfig = errors.New("invalid batch configuration")

	// ErrAborted is returned when a batch fails under the Abort policy.
	ErrAborted = errors.New("batch processing aborted")

	// ErrInterrupted is returned when the context is cancelled between batches.
	ErrInterrupted = errors.New("batch processing interrupted")
)
