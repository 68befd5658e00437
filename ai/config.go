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

package ai

import (
	"errors"
	"strings"
)

// Provider names supported by the ai sub-packages.
const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Provider selects the implementation: "openai" or "bedrock".
	Provider string

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server.
	// Unused by the bedrock provider.
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "amazon.titan-embed-text-v2:0"
	EmbeddingModel string

	// RerankHost is the base URL of an OpenAI-style /rerank endpoint.
	// Defaults to EmbeddingHost when empty.
	RerankHost string

	// RerankModel is the model identifier used for reranking.
	// Example: "cohere.rerank-v3-5:0", "bge-reranker-v2-m3"
	RerankModel string

	// APIKey authenticates against OpenAI-compatible services.
	// Local servers usually accept any value.
	APIKey string

	// Region and Profile select AWS credentials for the bedrock provider.
	Region  string
	Profile string

	// Dimension is the requested embedding size. Zero uses the model default.
	Dimension int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider selects the provider implementation.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithRerankHost sets the rerank service host URL.
func WithRerankHost(host string) ConfigOption {
	return func(c *Config) {
		c.RerankHost = host
	}
}

// WithHost sets both embedding and rerank hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.RerankHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithRerankModel sets the rerank model identifier.
func WithRerankModel(model string) ConfigOption {
	return func(c *Config) {
		c.RerankModel = model
	}
}

// WithAPIKey sets the API key for OpenAI-compatible services.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithRegion sets the AWS region.
func WithRegion(region string) ConfigOption {
	return func(c *Config) {
		c.Region = region
	}
}

// WithProfile sets the AWS shared config profile.
func WithProfile(profile string) ConfigOption {
	return func(c *Config) {
		c.Profile = profile
	}
}

// WithDimension sets the requested embedding dimension.
func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		Provider:       ProviderOpenAI,
		EmbeddingHost:  defaultHost,
		EmbeddingModel: "embeddinggemma",
		APIKey:         "none",
	}
}

// DefaultBedrockConfig returns a Config for Amazon Bedrock with the Titan
// embedding model and the Cohere rerank model.
func DefaultBedrockConfig() *Config {
	return &Config{
		Provider:       ProviderBedrock,
		EmbeddingModel: "amazon.titan-embed-text-v2:0",
		RerankModel:    "cohere.rerank-v3-5:0",
		Region:         "us-east-1",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// For the openai provider it adds the /v1 suffix to hosts if missing, which is
// required by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.Provider != ProviderOpenAI {
		return
	}
	c.EmbeddingHost = withV1(c.EmbeddingHost)
	c.RerankHost = withV1(c.RerankHost)
	if c.RerankHost == "" {
		c.RerankHost = c.EmbeddingHost
	}
}

func withV1(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	// Remove trailing slash if present before adding /v1
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Provider {
	case ProviderOpenAI:
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required")
		}
	case ProviderBedrock:
		if c.Region == "" {
			return errors.New("ai config: Region is required")
		}
	default:
		return errors.New("ai config: unknown provider " + c.Provider)
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.Dimension < 0 {
		return errors.New("ai config: Dimension must not be negative")
	}
	return nil
}
