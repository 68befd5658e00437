// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mock

import (
	"sync/atomic"

	"github.com/poiesic/vecbatch/ai"
)

// MockProvider is a test double for ai.Provider.
// It aggregates mock embedder and reranker instances.
type MockProvider struct {
	embedder *MockEmbedder
	reranker *MockReranker
	closed   atomic.Int32
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.Provider interface for consistency with production constructors.
// Use GetMockEmbedder()/GetMockReranker() to access concrete types for test assertions.
func NewMockProvider() ai.Provider {
	return NewMockProviderWithServices(NewMockEmbedder(), NewMockReranker())
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
// A nil reranker makes Reranker() return nil.
func NewMockProviderWithServices(embedder *MockEmbedder, reranker *MockReranker) *MockProvider {
	return &MockProvider{
		embedder: embedder,
		reranker: reranker,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Reranker returns the mock reranker.
func (p *MockProvider) Reranker() ai.Reranker {
	if p.reranker == nil {
		return nil
	}
	return p.reranker
}

// Close records the call for assertions.
func (p *MockProvider) Close() error {
	p.closed.Add(1)
	return nil
}

// CloseCount returns how many times Close was called.
func (p *MockProvider) CloseCount() int {
	return int(p.closed.Load())
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockReranker returns the underlying mock reranker for test assertions.
func (p *MockProvider) GetMockReranker() *MockReranker {
	return p.reranker
}
