package storage

import (
	"context"
	"time"

	"github.com/poiesic/vecbatch/core"
)

// VectorStore manages k-NN indexes and the documents in them.
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	// CreateIndex creates an index with k-NN mappings for the spec's vector fields.
	// Returns ErrIndexExists if the index already exists.
	CreateIndex(ctx context.Context, spec IndexSpec) error

	// DeleteIndex removes an index and all its documents.
	// Returns ErrIndexNotFound if the index doesn't exist.
	DeleteIndex(ctx context.Context, index string) error

	// IndexExists reports whether the index exists.
	IndexExists(ctx context.Context, index string) (bool, error)

	// Truncate deletes every document in the index, keeping its definition.
	Truncate(ctx context.Context, index string) error

	// BulkIndex writes documents, overwriting any existing document with the same ID.
	// Per-document failures are reported in the response rather than as an error.
	BulkIndex(ctx context.Context, index string, docs []core.Document) (*BulkResponse, error)

	// KnnSearch returns the nearest documents to the query vector ordered by
	// descending score.
	KnnSearch(ctx context.Context, query KnnQuery) ([]core.SearchResult, error)

	// DocumentCount returns the number of documents in the index.
	DocumentCount(ctx context.Context, index string) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// Checkpoint records how far an ingestion run got.
type Checkpoint struct {
	Key       string    `json:"key"`
	RunID     string    `json:"run_id"`
	Index     string    `json:"index"`
	NextRow   int       `json:"next_row"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckpointRepository persists ingestion checkpoints.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint, replacing any previous one with the same key.
	SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for key.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, key string) (*Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for key. Missing keys are not an error.
	DeleteCheckpoint(ctx context.Context, key string) error
}
