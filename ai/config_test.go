package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.RerankHost)
	})

	t.Run("with separate hosts and models", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithRerankHost("http://rerank:9090/v1"),
			WithEmbeddingModel("text-embedding-3-small"),
			WithRerankModel("bge-reranker-v2-m3"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://rerank:9090/v1", cfg.RerankHost)
		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "bge-reranker-v2-m3", cfg.RerankModel)
	})

	t.Run("with bedrock options", func(t *testing.T) {
		cfg := NewConfig(WithProvider(ProviderBedrock), WithRegion("eu-west-1"), WithProfile("dev"), WithDimension(1024))

		assert.Equal(t, ProviderBedrock, cfg.Provider)
		assert.Equal(t, "eu-west-1", cfg.Region)
		assert.Equal(t, "dev", cfg.Profile)
		assert.Equal(t, 1024, cfg.Dimension)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name       string
		host       string
		rerankHost string
		wantHost   string
		wantRerank string
	}{
		{"adds v1", "http://localhost:11434", "", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"strips trailing slash", "http://localhost:11434/", "", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"keeps v1", "http://localhost:11434/v1", "http://r:1", "http://localhost:11434/v1", "http://r:1/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host, RerankHost: tt.rerankHost}
			cfg.Normalize()
			assert.Equal(t, ProviderOpenAI, cfg.Provider)
			assert.Equal(t, tt.wantHost, cfg.EmbeddingHost)
			assert.Equal(t, tt.wantRerank, cfg.RerankHost)
		})
	}
}

func TestConfigNormalize_BedrockLeavesHostsAlone(t *testing.T) {
	cfg := &Config{Provider: " Bedrock ", EmbeddingHost: "x"}
	cfg.Normalize()
	assert.Equal(t, ProviderBedrock, cfg.Provider)
	assert.Equal(t, "x", cfg.EmbeddingHost)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "default is valid", cfg: DefaultConfig()},
		{name: "bedrock default is valid", cfg: DefaultBedrockConfig()},
		{name: "missing host", cfg: &Config{Provider: ProviderOpenAI, EmbeddingModel: "m"}, wantErr: "EmbeddingHost is required"},
		{name: "missing model", cfg: &Config{Provider: ProviderOpenAI, EmbeddingHost: "http://h"}, wantErr: "EmbeddingModel is required"},
		{name: "missing region", cfg: &Config{Provider: ProviderBedrock, EmbeddingModel: "m"}, wantErr: "Region is required"},
		{name: "unknown provider", cfg: &Config{Provider: "vertex", EmbeddingModel: "m"}, wantErr: "unknown provider"},
		{name: "negative dimension", cfg: NewConfig(WithDimension(-1)), wantErr: "Dimension must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	assert.NoError(t, ClassifyStatus(200))
	assert.ErrorIs(t, ClassifyStatus(429), ErrThrottled)
	assert.ErrorIs(t, ClassifyStatus(503), ErrTransient)
	assert.ErrorIs(t, ClassifyStatus(408), ErrTransient)
	assert.ErrorIs(t, ClassifyStatus(401), ErrPermanent)
	assert.ErrorIs(t, ClassifyStatus(400), ErrPermanent)
}
