package ingestion

import (
	"errors"

	"github.com/poiesic/vecbatch/client"
	"github.com/poiesic/vecbatch/storage"
)

var (
	// ErrStoreRequired is returned when a vector store is not provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrEmbedderRequired is returned when an embedding client is not provided.
	ErrEmbedderRequired = errors.New("embedding client required")

	// ErrSourceRequired is returned when a record source is not provided.
	ErrSourceRequired = errors.New("record source required")

	// ErrCheckpointRepositoryRequired is returned when checkpoints are enabled without a repository.
	ErrCheckpointRepositoryRequired = errors.New("checkpoint repository required")

	// ErrInvalidConfig indicates an ingestion configuration that cannot run.
	ErrInvalidConfig = errors.New("invalid ingestion configuration")

	// ErrBulkTolerance indicates a bulk write whose failed documents exceed the
	// configured tolerance. The batch is retried.
	ErrBulkTolerance = errors.New("bulk failures exceed tolerance")
)

// IsRetryable reports whether a batch error is worth another attempt:
// retryable model errors, transient store errors and partial bulk failures.
func IsRetryable(err error) bool {
	return client.IsRetryable(err) ||
		errors.Is(err, storage.ErrTransient) ||
		errors.Is(err, ErrBulkTolerance)
}
