package evaluate

import (
	"fmt"
	"slices"
	"strings"
)

// Denominator selects what accuracy percentages are computed over.
type Denominator string

const (
	// AllQueries divides by every evaluated row, failed rows included.
	AllQueries Denominator = "all"

	// SucceededQueries divides by rows whose search succeeded.
	SucceededQueries Denominator = "succeeded"
)

// ParseDenominator parses a denominator name.
func ParseDenominator(name string) (Denominator, error) {
	switch d := Denominator(strings.ToLower(strings.TrimSpace(name))); d {
	case AllQueries, SucceededQueries:
		return d, nil
	case "":
		return AllQueries, nil
	default:
		return "", fmt.Errorf("%w: unknown denominator %q", ErrInvalidConfig, name)
	}
}

// DefaultThresholds are the k values accuracy is reported for.
var DefaultThresholds = []int{5, 10, 25, 100}

// Config controls an evaluation run.
type Config struct {
	// QueryColumns are joined with a space to form each query
	QueryColumns []string

	// ExpectedColumn holds the value the match field must equal
	ExpectedColumn string
	MatchField     string

	// DisplayField is copied from the matched hit for reporting
	DisplayField string

	Thresholds []int

	BatchSize   int
	Concurrency int
	SkipRows    int
	LimitRows   int

	// Limit is the result window searched for the expected value
	Limit int

	Denominator Denominator
}

// DefaultConfig returns defaults for everything but the columns.
func DefaultConfig() *Config {
	return &Config{
		Thresholds:  slices.Clone(DefaultThresholds),
		BatchSize:   10,
		Concurrency: 1,
		Limit:       100,
		Denominator: AllQueries,
	}
}

// Validate fills defaults and checks the configuration.
func (c *Config) Validate() error {
	switch {
	case len(c.QueryColumns) == 0:
		return fmt.Errorf("%w: at least one query column is required", ErrInvalidConfig)
	case c.ExpectedColumn == "":
		return fmt.Errorf("%w: expected column is required", ErrInvalidConfig)
	case c.MatchField == "":
		return fmt.Errorf("%w: match field is required", ErrInvalidConfig)
	case c.BatchSize < 0 || c.Concurrency < 0 || c.Limit < 0:
		return fmt.Errorf("%w: sizes must not be negative", ErrInvalidConfig)
	case c.SkipRows < 0 || c.LimitRows < 0:
		return fmt.Errorf("%w: skip and limit must not be negative", ErrInvalidConfig)
	}
	if c.BatchSize == 0 {
		c.BatchSize = 10
	}
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}
	if c.Limit == 0 {
		c.Limit = 100
	}
	if len(c.Thresholds) == 0 {
		c.Thresholds = slices.Clone(DefaultThresholds)
	}
	for _, k := range c.Thresholds {
		if k <= 0 {
			return fmt.Errorf("%w: threshold must be positive, got %d", ErrInvalidConfig, k)
		}
	}
	c.Thresholds = slices.Compact(slices.Sorted(slices.Values(c.Thresholds)))
	d, err := ParseDenominator(string(c.Denominator))
	if err != nil {
		return err
	}
	c.Denominator = d
	return nil
}
