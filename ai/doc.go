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

// Package ai provides abstractions for the embedding and rerank services used
// by the ingestion, search and evaluation pipelines.
//
// # Interfaces
//
//   - Embedder: Generates vector embeddings from text
//   - Reranker: Rescores candidate documents against a query
//   - Provider: Aggregates the services and owns their connections
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs (langchaingo embeddings, /rerank endpoint)
//   - ai/bedrock: Amazon Bedrock runtime (Titan and Cohere models)
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors (openai.NewProvider, bedrock.NewProvider) return
// INTERFACE types. Test utility constructors (mock.NewMockEmbedder,
// mock.NewMockReranker) return CONCRETE types so tests can inject behavior and
// inspect call counts.
//
// # Errors
//
// Implementations wrap upstream failures with ErrThrottled, ErrTransient or
// ErrPermanent. The bounded client in package client retries the first two and
// propagates the last one immediately.
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Hemoglobin A1c")
package ai
