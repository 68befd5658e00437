package ingestion

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/vecbatch/batch"
	"github.com/poiesic/vecbatch/retry"
	"github.com/poiesic/vecbatch/storage"
)

// Strategy selects how columns are embedded.
type Strategy string

const (
	// PerColumn embeds each column into its own <column><suffix> field.
	PerColumn Strategy = "per-column"
	// Combined joins the columns and embeds them into one field.
	Combined Strategy = "combined"
)

// ParseStrategy converts "per-column" or "combined" to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case "", PerColumn:
		return PerColumn, nil
	case Combined:
		return Combined, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, name)
	}
}

// IDScheme selects how document ids are derived.
type IDScheme string

const (
	// RowIDs use the source row number, so re-ingesting a file overwrites by position.
	RowIDs IDScheme = "row"
	// ContentIDs hash the id columns, so re-ingesting overwrites by content.
	ContentIDs IDScheme = "content"
)

// ParseIDScheme converts "row" or "content" to an IDScheme.
func ParseIDScheme(name string) (IDScheme, error) {
	switch s := IDScheme(strings.ToLower(strings.TrimSpace(name))); s {
	case "", RowIDs:
		return RowIDs, nil
	case ContentIDs:
		return ContentIDs, nil
	default:
		return "", fmt.Errorf("%w: unknown id scheme %q", ErrInvalidConfig, name)
	}
}

// DefaultEmbeddingSuffix names embedding fields.
const DefaultEmbeddingSuffix = "_embedding"

// Config holds configuration for an ingestion run.
type Config struct {
	// Index receives the documents
	Index string

	// Columns are embedded according to Strategy
	Columns  []string
	Strategy Strategy

	// CombinedField names the Combined strategy's field; default "combined<suffix>"
	CombinedField string

	// Separator joins columns for the Combined strategy
	Separator string

	IDScheme IDScheme

	// IDColumns feed content ids; default Columns
	IDColumns []string

	EmbeddingSuffix string

	BatchSize   int
	SkipRows    int
	LimitRows   int
	MaxAttempts int
	WaitTime    time.Duration

	// RetryStrategy picks the backoff between batch attempts; WaitTime is its
	// base delay. Empty means exponential.
	RetryStrategy retry.Strategy

	// FailureTolerance is the fraction of a batch's documents that may fail
	// without failing the batch. Version conflicts never count.
	FailureTolerance float64

	FailurePolicy batch.FailurePolicy

	// Truncate deletes all documents in the index before ingesting
	Truncate bool

	// Resume starts at the saved checkpoint when it is past SkipRows
	Resume bool

	// CreateIndex creates a missing index with Dimension and SpaceType
	CreateIndex bool
	Dimension   int
	SpaceType   storage.SpaceType
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Strategy:        PerColumn,
		Separator:       " ",
		IDScheme:        RowIDs,
		EmbeddingSuffix: DefaultEmbeddingSuffix,
		BatchSize:       50,
		MaxAttempts:     5,
		WaitTime:        5 * time.Second,
		RetryStrategy:   retry.StrategyExponential,
		SpaceType:       storage.SpaceL2,
	}
}

// Validate fills unset defaults and checks the configuration.
func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(requireIndex bool) error {
	if c.Strategy == "" {
		c.Strategy = PerColumn
	}
	if c.IDScheme == "" {
		c.IDScheme = RowIDs
	}
	if c.EmbeddingSuffix == "" {
		c.EmbeddingSuffix = DefaultEmbeddingSuffix
	}
	if c.Separator == "" {
		c.Separator = " "
	}
	if c.CombinedField == "" {
		c.CombinedField = "combined" + c.EmbeddingSuffix
	}
	if len(c.IDColumns) == 0 {
		c.IDColumns = c.Columns
	}
	if c.SpaceType == "" {
		c.SpaceType = storage.SpaceL2
	}
	if c.RetryStrategy == "" {
		c.RetryStrategy = retry.StrategyExponential
	}

	switch {
	case requireIndex && c.Index == "":
		return fmt.Errorf("%w: index is required", ErrInvalidConfig)
	case len(c.Columns) == 0:
		return fmt.Errorf("%w: at least one column is required", ErrInvalidConfig)
	case c.Strategy != PerColumn && c.Strategy != Combined:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	case c.IDScheme != RowIDs && c.IDScheme != ContentIDs:
		return fmt.Errorf("%w: unknown id scheme %q", ErrInvalidConfig, c.IDScheme)
	case c.FailureTolerance < 0 || c.FailureTolerance > 1:
		return fmt.Errorf("%w: failure tolerance must be in [0, 1], got %g", ErrInvalidConfig, c.FailureTolerance)
	case c.Dimension < 0:
		return fmt.Errorf("%w: dimension must not be negative, got %d", ErrInvalidConfig, c.Dimension)
	}
	for _, col := range c.Columns {
		if strings.TrimSpace(col) == "" {
			return fmt.Errorf("%w: empty column name", ErrInvalidConfig)
		}
	}
	if _, err := storage.ParseSpaceType(string(c.SpaceType)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := retry.ParseStrategy(string(c.RetryStrategy)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	bc := c.batchConfig(c.SkipRows, c.LimitRows)
	if err := bc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) batchConfig(skip, limit int) *batch.Config {
	policy := retry.NewPolicy(c.RetryStrategy, c.MaxAttempts, c.WaitTime)
	return &batch.Config{
		BatchSize:     c.BatchSize,
		SkipRows:      skip,
		LimitRows:     limit,
		MaxAttempts:   policy.MaxAttempts,
		WaitTime:      c.WaitTime,
		Backoff:       policy.Backoff,
		Retryable:     IsRetryable,
		FailurePolicy: c.FailurePolicy,
	}
}

func (c *Config) vectorizer() Vectorizer {
	return Vectorizer{
		Columns:       c.Columns,
		Strategy:      c.Strategy,
		Suffix:        c.EmbeddingSuffix,
		CombinedField: c.CombinedField,
		Separator:     c.Separator,
	}
}
