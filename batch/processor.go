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

package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/vecbatch/core"
	"github.com/poiesic/vecbatch/retry"
)

// Operation processes one batch. The returned outcome's Processed and Failed
// counts are kept; the processor fills in the remaining fields. A non-nil
// error fails the attempt.
type Operation func(ctx context.Context, b core.Batch) (core.BatchOutcome, error)

// Processor runs operations over planned batches, one batch at a time.
type Processor struct {
	config  *Config
	monitor Monitor
	logger  *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithMonitor sets the monitor receiving progress events.
func WithMonitor(m Monitor) Option {
	return func(p *Processor) {
		if m != nil {
			p.monitor = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger.With("component", "batch-processor")
	}
}

// NewProcessor creates a processor. A nil config uses DefaultConfig.
func NewProcessor(config *Config, opts ...Option) (*Processor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	p := &Processor{
		config:  config,
		monitor: NoopMonitor{},
		logger:  slog.Default().With("component", "batch-processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run plans batches over total rows and executes op for each of them in order.
//
// A failing batch is retried according to the config. Once retries are
// exhausted the failure is recorded and the run continues, or stops with
// ErrAborted under the Abort policy.
//
// When ctx is cancelled the batch in progress is allowed to finish, no
// further batch starts, and Run returns ErrInterrupted. The summary is
// returned in every case and carries ResumeSkipRows for a later run.
func (p *Processor) Run(ctx context.Context, total int, op Operation) (*Summary, error) {
	batches, err := Plan(total, *p.config)
	if err != nil {
		return nil, err
	}
	start, end := Range(total, p.config.SkipRows, p.config.LimitRows)
	summary := newSummary(batches, start, end)
	began := time.Now()

	p.logger.Info("starting batch run", "rows", end-start, "batches", len(batches),
		"batchSize", p.config.BatchSize, "skip", p.config.SkipRows)
	p.monitor.Start(len(batches), max(0, end-start))

	defer func() {
		summary.Duration = time.Since(began)
		p.monitor.Finish(summary)
	}()

	for _, b := range batches {
		if ctx.Err() != nil {
			summary.Interrupted = true
			p.logger.Warn("batch run interrupted", "resumeSkipRows", summary.ResumeSkipRows)
			return summary, fmt.Errorf("%w at row %d: %w", ErrInterrupted, summary.ResumeSkipRows, context.Cause(ctx))
		}

		outcome := p.runBatch(ctx, b, op)
		if outcome.Attempts == 0 && ctx.Err() != nil {
			// Cancelled before the first attempt started
			summary.Interrupted = true
			p.logger.Warn("batch run interrupted", "resumeSkipRows", summary.ResumeSkipRows)
			return summary, fmt.Errorf("%w at row %d: %w", ErrInterrupted, summary.ResumeSkipRows, context.Cause(ctx))
		}
		if !outcome.Success && p.config.FailurePolicy == Abort {
			summary.Outcomes = append(summary.Outcomes, outcome)
			summary.Failed++
			summary.RowsFailed += outcome.Batch.Len()
			summary.Aborted = true
			p.monitor.BatchFinished(outcome)
			return summary, fmt.Errorf("%w: batch %d rows [%d, %d): %w", ErrAborted, b.Index, b.StartRow, b.EndRow, outcome.Err)
		}

		summary.record(outcome)
		p.monitor.BatchFinished(outcome)
	}

	p.logger.Info("batch run complete", "succeeded", summary.Succeeded, "failed", summary.Failed,
		"rows", summary.RowsProcessed, "elapsed", time.Since(began).Round(time.Millisecond))
	return summary, nil
}

// runBatch executes one batch with retries. Each attempt runs detached from
// cancellation so an interrupt never leaves it half done. The waits between
// attempts follow ctx, so cancellation cuts a backoff short and stops
// further retries.
func (p *Processor) runBatch(ctx context.Context, b core.Batch, op Operation) core.BatchOutcome {
	p.monitor.BatchStarted(b)
	began := time.Now()

	policy := p.config.policy()
	retryable := policy.Retryable
	policy.Retryable = func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		return retryable == nil || retryable(err)
	}
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		p.logger.Warn("batch failed, retrying", "batch", b.Index, "start", b.StartRow, "end", b.EndRow,
			"attempt", attempt, "delay", delay, "err", err)
	}

	var outcome core.BatchOutcome
	detached := context.WithoutCancel(ctx)
	attempts, err := retry.Do(ctx, policy, func(context.Context) error {
		var err error
		outcome, err = op(detached, b)
		return err
	})

	outcome.Batch = b
	outcome.Attempts = attempts
	outcome.Duration = time.Since(began)
	outcome.Err = err
	outcome.Success = err == nil
	if err != nil {
		// A failed batch counts every row as failed
		outcome.Processed = 0
		outcome.Failed = b.Len()
		p.logger.Error("batch failed", "batch", b.Index, "start", b.StartRow, "end", b.EndRow,
			"attempts", attempts, "err", err)
	} else if outcome.Processed == 0 && outcome.Failed == 0 {
		outcome.Processed = b.Len()
	}
	return outcome
}
