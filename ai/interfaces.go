package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// RerankDocument is a candidate passed to a Reranker.
// ID is opaque to the reranker and is echoed back in the scores.
type RerankDocument struct {
	ID   string
	Text string
}

// RerankScore is the relevance a Reranker assigned to one candidate.
type RerankScore struct {
	ID    string
	Score float64
}

// Reranker scores candidate documents against a query with a model that is
// more precise than the retrieval metric.
// Implementations must be thread-safe for concurrent use.
type Reranker interface {
	// Rerank returns a score for every document, ordered by descending score.
	// The ID set of the result must equal the ID set of docs.
	Rerank(ctx context.Context, query string, docs []RerankDocument) ([]RerankScore, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Reranker returns the rerank service, or nil if the provider has none configured.
	Reranker() Reranker

	// Close releases resources held by the provider and its services,
	// including pooled network connections.
	Close() error
}

// UsageReporter is implemented by services that count consumed input tokens.
type UsageReporter interface {
	TokensUsed() int64
}
