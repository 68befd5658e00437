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

package evaluate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/vecbatch/batch"
	"github.com/poiesic/vecbatch/core"
	"github.com/poiesic/vecbatch/retry"
	"github.com/poiesic/vecbatch/search"
	"golang.org/x/sync/errgroup"
)

// Searcher runs one query. *search.Searcher satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*search.Result, error)
}

// Engine evaluates labeled queries against a searcher.
type Engine struct {
	searcher Searcher
	config   *Config
	monitor  batch.Monitor
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMonitor sets a monitor receiving per-batch progress.
func WithMonitor(m batch.Monitor) Option {
	return func(e *Engine) {
		if m != nil {
			e.monitor = m
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "evaluate")
	}
}

// NewEngine creates an evaluation engine. The config is validated once here.
func NewEngine(searcher Searcher, config *Config, opts ...Option) (*Engine, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if config == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		searcher: searcher,
		config:   config,
		monitor:  batch.NoopMonitor{},
		logger:   slog.Default().With("component", "evaluate"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if sized, ok := searcher.(interface{ Config() search.Config }); ok {
		if size := sized.Config().Size; size < config.Limit {
			e.logger.Warn("searcher returns fewer hits than the evaluation window; ranks past its size are never found",
				"size", size, "limit", config.Limit)
		}
	}
	return e, nil
}

// CheckColumns verifies that the dataset has every query column and the
// expected column.
func (e *Engine) CheckColumns(columns []string) error {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	for _, c := range append([]string{e.config.ExpectedColumn}, e.config.QueryColumns...) {
		if !have[c] {
			return fmt.Errorf("%w: %q (available: %s)", ErrMissingColumn, c, strings.Join(columns, ", "))
		}
	}
	return nil
}

// Run evaluates the configured row range of records.
//
// Batches run one after another; rows inside a batch are searched
// concurrently up to Config.Concurrency. A row's failure never stops the run.
// When ctx is cancelled the batch in progress finishes and the report covers
// the rows evaluated so far, returned together with batch.ErrInterrupted.
func (e *Engine) Run(ctx context.Context, records []core.Record) (*Report, error) {
	processor, err := batch.NewProcessor(&batch.Config{
		BatchSize:   e.config.BatchSize,
		SkipRows:    e.config.SkipRows,
		LimitRows:   e.config.LimitRows,
		MaxAttempts: 1,
		Backoff:     retry.Immediate(),
	}, batch.WithMonitor(e.monitor), batch.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}

	slots := make([]core.EvaluationRecord, len(records))
	evaluated := make([]bool, len(records))

	e.logger.Info("starting evaluation", "queries", len(records), "batchSize", e.config.BatchSize,
		"concurrency", e.config.Concurrency)
	summary, runErr := processor.Run(ctx, len(records), func(ctx context.Context, b core.Batch) (core.BatchOutcome, error) {
		var g errgroup.Group
		g.SetLimit(e.config.Concurrency)
		for i := b.StartRow; i < b.EndRow; i++ {
			g.Go(func() error {
				slots[i] = e.evaluate(ctx, records[i])
				evaluated[i] = true
				return nil
			})
		}
		_ = g.Wait()

		var outcome core.BatchOutcome
		for i := b.StartRow; i < b.EndRow; i++ {
			if slots[i].Failed {
				outcome.Failed++
			} else {
				outcome.Processed++
			}
		}
		return outcome, nil
	})
	if summary == nil {
		return nil, runErr
	}

	var done []core.EvaluationRecord
	for i, ok := range evaluated {
		if ok {
			done = append(done, slots[i])
		}
	}
	report := newReport(done, e.config)
	report.Duration = summary.Duration
	report.Interrupted = summary.Interrupted

	e.logger.Info("evaluation complete", "queries", report.Total, "failed", report.Failed,
		"found", report.Found, "mrr", report.MeanReciprocalRank)
	return report, runErr
}

func (e *Engine) evaluate(ctx context.Context, record core.Record) core.EvaluationRecord {
	result := core.EvaluationRecord{
		Row:      record.Row,
		Query:    e.query(record),
		Expected: strings.TrimSpace(record.Text(e.config.ExpectedColumn)),
	}
	fail := func(err error) core.EvaluationRecord {
		result.Failed = true
		result.Err = err
		e.logger.Debug("query failed", "row", record.Row, "err", err)
		return result
	}

	if err := core.ValidateQuery(result.Query); err != nil {
		return fail(err)
	}
	if result.Expected == "" {
		return fail(ErrMissingExpected)
	}

	res, err := e.searcher.Search(ctx, result.Query, e.config.Limit)
	if err != nil {
		return fail(err)
	}
	result.Hits = len(res.Hits)
	if result.Hits == 0 {
		return fail(ErrNoHits)
	}

	for i, hit := range res.Hits {
		if strings.TrimSpace(core.Stringify(hit.Fields[e.config.MatchField])) != result.Expected {
			continue
		}
		result.Rank = i + 1
		result.Score = hit.Score
		if hit.Reranked {
			result.Score = hit.RerankScore
		}
		if e.config.DisplayField != "" {
			result.Display = core.Stringify(hit.Fields[e.config.DisplayField])
		}
		break
	}
	e.logger.Debug("query evaluated", "row", record.Row, "rank", result.Rank, "hits", result.Hits)
	return result
}

func (e *Engine) query(record core.Record) string {
	parts := make([]string, 0, len(e.config.QueryColumns))
	for _, col := range e.config.QueryColumns {
		if t := strings.TrimSpace(record.Text(col)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
