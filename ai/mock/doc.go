// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Reranker and
// ai.Provider for use in unit tests. The mocks are safe for concurrent use so
// they can sit behind the bounded client.
//
// # Usage in Tests
//
//	mockProvider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockReranker())
//	mockProvider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, ai.ErrThrottled
//	}
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockReranker: Scores documents by query term overlap, stable on ties
//   - MockProvider: Aggregates mock embedder and reranker
package mock
