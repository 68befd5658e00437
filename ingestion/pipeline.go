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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/vecbatch/batch"
	"github.com/poiesic/vecbatch/source"
	"github.com/poiesic/vecbatch/storage"
)

// Pipeline ingests a record source into a vector store: it reads rows in
// batches, embeds the configured columns and bulk-indexes the documents.
type Pipeline struct {
	store    storage.VectorStore
	embedder TextEmbedder
	source   source.Source
	config   *Config

	checkpoints   storage.CheckpointRepository
	checkpointKey string
	monitor       batch.Monitor
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithCheckpoints saves progress under key after every successful batch.
// With Config.Resume a later run continues from the saved row.
func WithCheckpoints(repo storage.CheckpointRepository, key string) Option {
	return func(p *Pipeline) error {
		if repo == nil {
			return ErrCheckpointRepositoryRequired
		}
		if key == "" {
			return fmt.Errorf("%w: checkpoint key is required", ErrInvalidConfig)
		}
		p.checkpoints = repo
		p.checkpointKey = key
		return nil
	}
}

// WithMonitor sets a monitor receiving batch progress events.
func WithMonitor(m batch.Monitor) Option {
	return func(p *Pipeline) error {
		p.monitor = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline. The config is validated once here.
func NewPipeline(
	store storage.VectorStore,
	embedder TextEmbedder,
	src source.Source,
	config *Config,
	opts ...Option,
) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if src == nil {
		return nil, ErrSourceRequired
	}
	if config == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:    store,
		embedder: embedder,
		source:   src,
		config:   config,
		monitor:  batch.NoopMonitor{},
		logger:   slog.Default().With("component", "ingestion"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if config.Resume && p.checkpoints == nil {
		return nil, fmt.Errorf("%w: resume needs checkpoints", ErrCheckpointRepositoryRequired)
	}
	return p, nil
}

// Report summarizes an ingestion run.
type Report struct {
	*batch.Summary

	RunID string
	Index string

	// ResumedFrom is the checkpoint row the run started at, or -1.
	ResumedFrom int

	DocumentsIndexed  int
	DocumentsIgnored  int
	DocumentsFailed   int
	EmbeddingsCreated int
	EmbeddingsSkipped int
	EmbeddingsReused  int

	// Failures lists rejected documents of batches that ended successfully
	// within tolerance or failed on their last attempt.
	Failures []DocumentFailure
}

// Run ingests the configured row range.
//
// The report is returned whenever batches were planned, including when the
// run is interrupted or aborted; its ResumeSkipRows continues the run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Index: p.config.Index, ResumedFrom: -1}
	logger := p.logger.With("run", report.RunID, "index", p.config.Index)

	skip, limit, done, err := p.startRow(ctx, logger)
	if err != nil {
		return nil, err
	}
	if skip != p.config.SkipRows {
		report.ResumedFrom = skip
	}
	if done {
		report.Summary = &batch.Summary{StartRow: skip, EndRow: skip, LastCompletedRow: skip - 1, ResumeSkipRows: skip}
		if err := p.checkpoints.DeleteCheckpoint(ctx, p.checkpointKey); err != nil {
			logger.Error("deleting checkpoint", "key", p.checkpointKey, "err", err)
		}
		return report, nil
	}

	if err := p.prepareIndex(ctx, report.ResumedFrom >= 0, logger); err != nil {
		return nil, err
	}

	total, err := p.source.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting source rows: %w", err)
	}

	bp := newBatchProcessor(p.store, p.embedder, p.source, p.config, logger)
	monitor := p.monitor
	if p.checkpoints != nil {
		monitor = batch.MultiMonitor{monitor, &checkpointer{
			ctx:    context.WithoutCancel(ctx),
			repo:   p.checkpoints,
			key:    p.checkpointKey,
			runID:  report.RunID,
			index:  p.config.Index,
			logger: logger,
		}}
	}

	processor, err := batch.NewProcessor(p.config.batchConfig(skip, limit),
		batch.WithMonitor(monitor), batch.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	logger.Info("starting ingestion", "rows", total, "skip", skip, "columns", p.config.Columns,
		"strategy", p.config.Strategy)
	began := time.Now()
	summary, runErr := processor.Run(ctx, total, bp.process)
	if summary == nil {
		return nil, runErr
	}
	report.Summary = summary
	for _, outcome := range summary.Outcomes {
		result, ok := bp.results[outcome.Batch.Index]
		if !ok {
			continue
		}
		report.EmbeddingsCreated += result.stats.Embedded
		report.EmbeddingsSkipped += result.stats.Skipped
		report.EmbeddingsReused += result.stats.Reused
		report.DocumentsIgnored += result.ignored
		report.DocumentsFailed += len(result.failures)
		report.Failures = append(report.Failures, result.failures...)
		if outcome.Success {
			report.DocumentsIndexed += result.indexed
		}
	}

	logger.Info("ingestion finished", "indexed", report.DocumentsIndexed, "failedDocuments", report.DocumentsFailed,
		"failedBatches", summary.Failed, "elapsed", time.Since(began).Round(time.Millisecond))
	return report, runErr
}

// startRow returns the skip and limit for this run, honoring a checkpoint.
// The limit shrinks so a resumed run ends where the original range ended;
// done reports that the checkpoint already covers that range.
func (p *Pipeline) startRow(ctx context.Context, logger *slog.Logger) (skip, limit int, done bool, err error) {
	skip, limit = p.config.SkipRows, p.config.LimitRows
	if !p.config.Resume {
		return skip, limit, false, nil
	}
	cp, err := p.checkpoints.LoadCheckpoint(ctx, p.checkpointKey)
	if err != nil {
		return 0, 0, false, fmt.Errorf("loading checkpoint: %w", err)
	}
	switch {
	case cp == nil:
		return skip, limit, false, nil
	case cp.Index != p.config.Index:
		logger.Warn("ignoring checkpoint for another index", "key", p.checkpointKey, "checkpointIndex", cp.Index)
		return skip, limit, false, nil
	case cp.NextRow <= skip:
		return skip, limit, false, nil
	}
	logger.Info("resuming from checkpoint", "nextRow", cp.NextRow, "previousRun", cp.RunID)
	if limit > 0 {
		limit = skip + limit - cp.NextRow
		if limit <= 0 {
			return cp.NextRow, 0, true, nil
		}
	}
	return cp.NextRow, limit, false, nil
}

func (p *Pipeline) prepareIndex(ctx context.Context, resuming bool, logger *slog.Logger) error {
	exists, err := p.store.IndexExists(ctx, p.config.Index)
	if err != nil {
		return fmt.Errorf("checking index: %w", err)
	}
	if !exists {
		if !p.config.CreateIndex {
			return fmt.Errorf("%w: %s", storage.ErrIndexNotFound, p.config.Index)
		}
		// Only a missing index needs the dimension
		if p.config.Dimension <= 0 {
			return fmt.Errorf("%w: creating index %s requires a dimension", ErrInvalidConfig, p.config.Index)
		}
		spec := storage.IndexSpecFor(p.config.Index, p.config.vectorizer().Fields(), p.config.Dimension, p.config.EmbeddingSuffix)
		spec.SpaceType = p.config.SpaceType
		if err := p.store.CreateIndex(ctx, spec); err != nil && !errors.Is(err, storage.ErrIndexExists) {
			return fmt.Errorf("creating index: %w", err)
		}
		return nil
	}
	if p.config.Truncate {
		if resuming {
			logger.Warn("not truncating a resumed run")
			return nil
		}
		if err := p.store.Truncate(ctx, p.config.Index); err != nil {
			return fmt.Errorf("truncating index: %w", err)
		}
		logger.Info("deleted all documents from index")
	}
	return nil
}
