package mock

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/poiesic/vecbatch/ai"
)

// MockReranker is a test double for ai.Reranker.
// By default it scores each document by the fraction of query terms it contains.
type MockReranker struct {
	// RerankFunc is called by Rerank if set.
	RerankFunc func(ctx context.Context, query string, docs []ai.RerankDocument) ([]ai.RerankScore, error)

	callCount atomic.Int64
}

// NewMockReranker creates a mock reranker with term-overlap scoring.
func NewMockReranker() *MockReranker {
	return &MockReranker{}
}

// Rerank scores docs against query.
func (m *MockReranker) Rerank(ctx context.Context, query string, docs []ai.RerankDocument) ([]ai.RerankScore, error) {
	m.callCount.Add(1)

	if m.RerankFunc != nil {
		return m.RerankFunc(ctx, query, docs)
	}

	terms := strings.Fields(strings.ToLower(query))
	scores := make([]ai.RerankScore, len(docs))
	for i, doc := range docs {
		text := strings.ToLower(doc.Text)
		matched := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched++
			}
		}
		var score float64
		if len(terms) > 0 {
			score = float64(matched) / float64(len(terms))
		}
		scores[i] = ai.RerankScore{ID: doc.ID, Score: score}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores, nil
}

// CallCount returns the number of Rerank calls.
func (m *MockReranker) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockReranker) Reset() {
	m.callCount.Store(0)
	m.RerankFunc = nil
}
