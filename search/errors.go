package search

import "errors"

var (
	// ErrStoreRequired is returned when a vector store is not provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrClientRequired is returned when an API client is not provided.
	ErrClientRequired = errors.New("API client required")

	// ErrRerankerRequired is returned when reranking is enabled but the client has no reranker.
	ErrRerankerRequired = errors.New("reranking enabled without a reranker")

	// ErrInvalidConfig is returned when the search configuration is invalid.
	ErrInvalidConfig = errors.New("invalid search configuration")
)
