package ingestion

import (
	"fmt"
	"time"

	"github.com/poiesic/vecbatch/batch"
	"github.com/poiesic/vecbatch/retry"
)

// EventPayload is the JSON event that starts an ingestion run from an
// event-driven entry point.
type EventPayload struct {
	S3URI              string   `json:"s3_uri,omitempty"`
	File               string   `json:"file,omitempty"`
	OpenSearchEndpoint string   `json:"opensearch_endpoint"`
	IndexName          string   `json:"index_name"`
	Region             string   `json:"region,omitempty"`
	LimitRows          int      `json:"limit_rows,omitempty"`
	Delete             bool     `json:"delete,omitempty"`
	BatchSize          int      `json:"batch_size,omitempty"`
	WaitTime           *float64 `json:"wait_time,omitempty"`
	MaxAttempts        int      `json:"max_attempts,omitempty"`
	RetryStrategy      string   `json:"retry_strategy,omitempty"`
	SkipRows           int      `json:"skip_rows,omitempty"`
	Columns            []string `json:"columns"`
	Strategy           string   `json:"strategy,omitempty"`
	IDScheme           string   `json:"id_scheme,omitempty"`
	FailureTolerance   float64  `json:"failure_tolerance,omitempty"`
	FailurePolicy      string   `json:"failure_policy,omitempty"`
	CreateIndex        bool     `json:"create_index,omitempty"`
	Dimension          int      `json:"dimension,omitempty"`
}

// DefaultRegion is used when the event names none.
const DefaultRegion = "us-east-1"

// SourceRef returns the record source reference, preferring the S3 URI.
func (e *EventPayload) SourceRef() string {
	if e.S3URI != "" {
		return e.S3URI
	}
	return e.File
}

// ToConfig validates the event and converts it to an ingestion Config.
func (e *EventPayload) ToConfig() (*Config, error) {
	if e.SourceRef() == "" {
		return nil, fmt.Errorf("%w: s3_uri is required", ErrInvalidConfig)
	}
	if e.OpenSearchEndpoint == "" {
		return nil, fmt.Errorf("%w: opensearch_endpoint is required", ErrInvalidConfig)
	}
	if e.Region == "" {
		e.Region = DefaultRegion
	}

	cfg := DefaultConfig()
	cfg.Index = e.IndexName
	cfg.Columns = e.Columns
	cfg.LimitRows = e.LimitRows
	cfg.SkipRows = e.SkipRows
	cfg.Truncate = e.Delete
	cfg.FailureTolerance = e.FailureTolerance
	cfg.CreateIndex = e.CreateIndex
	cfg.Dimension = e.Dimension
	if e.BatchSize != 0 {
		cfg.BatchSize = e.BatchSize
	}
	if e.MaxAttempts != 0 {
		cfg.MaxAttempts = e.MaxAttempts
	}
	if e.WaitTime != nil {
		cfg.WaitTime = time.Duration(*e.WaitTime * float64(time.Second))
	}

	var err error
	if cfg.Strategy, err = ParseStrategy(e.Strategy); err != nil {
		return nil, err
	}
	if e.RetryStrategy != "" {
		if cfg.RetryStrategy, err = retry.ParseStrategy(e.RetryStrategy); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if cfg.IDScheme, err = ParseIDScheme(e.IDScheme); err != nil {
		return nil, err
	}
	if cfg.FailurePolicy, err = batch.ParseFailurePolicy(e.FailurePolicy); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
