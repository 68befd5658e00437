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

package openai

import (
	"log/slog"
	"net/http"

	"github.com/poiesic/vecbatch/ai"
)

// Provider implements ai.Provider using OpenAI-compatible services.
// It manages embedder and reranker instances.
type Provider struct {
	config     *ai.Config
	embedder   *Embedder
	reranker   *Reranker
	httpClient *http.Client
	logger     *slog.Logger
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use. A reranker is only
// created when RerankModel is set.
//
// Returns ai.Provider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Create embedder (using internal constructor for concrete type)
	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		config:     config,
		embedder:   embedder,
		httpClient: &http.Client{},
		logger:     slog.Default().With("component", "openai-provider"),
	}
	if config.RerankModel != "" && config.RerankHost != "" {
		p.reranker = newReranker(config, p.httpClient)
	}
	return p, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Reranker returns the rerank service, or nil when no rerank model is configured.
func (p *Provider) Reranker() ai.Reranker {
	if p.reranker == nil {
		return nil
	}
	return p.reranker
}

// Close releases pooled connections held by the rerank client.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	p.httpClient.CloseIdleConnections()
	return nil
}
