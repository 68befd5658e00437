package search

import (
	"fmt"
	"strings"

	"github.com/poiesic/vecbatch/storage"
)

const (
	// DefaultSize is the number of hits requested from the store.
	DefaultSize = 50

	// DefaultEmbeddingSuffix names the vector field of a column.
	DefaultEmbeddingSuffix = "_embedding"

	// DefaultRerankTemplate wraps the user's query for the rerank model.
	DefaultRerankTemplate = "What is the most relevant description to '%s'"
)

// Config controls a Searcher.
type Config struct {
	Index string

	// Column is the source column whose embedding is searched. VectorField
	// overrides the derived Column+EmbeddingSuffix name.
	Column      string
	VectorField string

	// Size is the number of hits requested from the store; K defaults to twice Size
	Size int
	K    int

	Filter *storage.Filter

	Rerank         bool
	RerankTopK     int
	RerankTemplate string

	EmbeddingSuffix string
}

// DefaultConfig returns a configuration with reranking enabled.
func DefaultConfig() *Config {
	return &Config{
		Size:            DefaultSize,
		Rerank:          true,
		RerankTemplate:  DefaultRerankTemplate,
		EmbeddingSuffix: DefaultEmbeddingSuffix,
	}
}

// Validate fills defaults and checks the configuration.
func (c *Config) Validate() error {
	if c.Index == "" {
		return fmt.Errorf("%w: index is required", ErrInvalidConfig)
	}
	if c.EmbeddingSuffix == "" {
		c.EmbeddingSuffix = DefaultEmbeddingSuffix
	}
	if c.VectorField == "" {
		if c.Column == "" {
			return fmt.Errorf("%w: column or vector field is required", ErrInvalidConfig)
		}
		c.VectorField = c.Column + c.EmbeddingSuffix
	}
	if c.Size < 0 || c.K < 0 || c.RerankTopK < 0 {
		return fmt.Errorf("%w: sizes must not be negative", ErrInvalidConfig)
	}
	if c.Size == 0 {
		c.Size = DefaultSize
	}
	if c.K == 0 {
		c.K = c.Size * 2
	}
	if c.K < c.Size {
		return fmt.Errorf("%w: k (%d) is smaller than size (%d)", ErrInvalidConfig, c.K, c.Size)
	}
	if c.RerankTopK == 0 {
		c.RerankTopK = c.Size
	}
	if c.RerankTemplate == "" {
		c.RerankTemplate = DefaultRerankTemplate
	}
	if strings.Count(c.RerankTemplate, "%s") != 1 {
		return fmt.Errorf("%w: rerank template must contain one %%s", ErrInvalidConfig)
	}
	if c.Filter != nil && c.Filter.Field == "" {
		return fmt.Errorf("%w: filter field is required", ErrInvalidConfig)
	}
	return nil
}
