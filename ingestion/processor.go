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
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/vecbatch/core"
	"github.com/poiesic/vecbatch/source"
	"github.com/poiesic/vecbatch/storage"
)

// DocumentFailure is a document the store rejected.
type DocumentFailure struct {
	ID        core.DocumentID
	Row       int
	Batch     int
	ErrorType string
	Reason    string
}

// batchResult is what the last attempt of a batch produced.
type batchResult struct {
	indexed  int
	ignored  int
	failures []DocumentFailure
	stats    VectorizeStats
}

// batchProcessor reads, vectorizes and writes one batch of rows.
type batchProcessor struct {
	store      storage.VectorStore
	embedder   TextEmbedder
	source     source.Source
	vectorizer Vectorizer
	config     *Config
	results    map[int]*batchResult
	logger     *slog.Logger
}

func newBatchProcessor(store storage.VectorStore, embedder TextEmbedder, src source.Source, config *Config, logger *slog.Logger) *batchProcessor {
	return &batchProcessor{
		store:      store,
		embedder:   embedder,
		source:     src,
		vectorizer: config.vectorizer(),
		config:     config,
		results:    make(map[int]*batchResult),
		logger:     logger.With("processor", "bulk-index"),
	}
}

// process is a batch.Operation. Each attempt replaces the batch's result.
func (bp *batchProcessor) process(ctx context.Context, b core.Batch) (core.BatchOutcome, error) {
	delete(bp.results, b.Index)

	records, err := bp.source.Read(ctx, b.StartRow, b.EndRow)
	if err != nil {
		return core.BatchOutcome{}, fmt.Errorf("reading rows [%d, %d): %w", b.StartRow, b.EndRow, err)
	}

	fields, stats, err := bp.vectorizer.Apply(ctx, bp.embedder, records)
	if err != nil {
		return core.BatchOutcome{}, fmt.Errorf("vectorizing rows [%d, %d): %w", b.StartRow, b.EndRow, err)
	}

	docs := make([]core.Document, len(records))
	for i, record := range records {
		docs[i] = core.Document{ID: bp.documentID(record), Fields: fields[i]}
	}

	bp.logger.Debug("bulk indexing batch", "batch", b.Index, "documents", len(docs))
	resp, err := bp.store.BulkIndex(ctx, bp.config.Index, docs)
	if err != nil {
		return core.BatchOutcome{}, fmt.Errorf("bulk indexing rows [%d, %d): %w", b.StartRow, b.EndRow, err)
	}

	result := &batchResult{stats: stats, ignored: resp.Ignored()}
	rowByID := make(map[core.DocumentID]int, len(records))
	for i, doc := range docs {
		rowByID[doc.ID] = records[i].Row
	}
	for _, item := range resp.Failed() {
		result.failures = append(result.failures, DocumentFailure{
			ID:        item.ID,
			Row:       rowByID[item.ID],
			Batch:     b.Index,
			ErrorType: item.ErrorType,
			Reason:    item.Reason,
		})
	}
	result.indexed = resp.Succeeded()
	bp.results[b.Index] = result

	failed := len(result.failures)
	if result.ignored > 0 {
		bp.logger.Info("version conflicts ignored", "batch", b.Index, "count", result.ignored)
	}
	if failed > 0 {
		ratio := float64(failed) / float64(len(docs))
		if ratio > bp.config.FailureTolerance {
			bp.logger.Warn("bulk request had document errors", "batch", b.Index, "failed", failed,
				"types", errorTypes(result.failures))
			return core.BatchOutcome{}, fmt.Errorf("%w: batch %d has %d errors (%s)",
				ErrBulkTolerance, b.Index, failed, strings.Join(errorTypes(result.failures), ", "))
		}
		bp.logger.Warn("tolerating document errors", "batch", b.Index, "failed", failed, "ratio", ratio)
	}

	return core.BatchOutcome{Processed: len(docs) - failed, Failed: failed}, nil
}

func (bp *batchProcessor) documentID(record core.Record) core.DocumentID {
	if bp.config.IDScheme == ContentIDs {
		parts := make([]string, 0, len(bp.config.IDColumns))
		empty := true
		for _, col := range bp.config.IDColumns {
			t := record.Text(col)
			if t != "" {
				empty = false
			}
			parts = append(parts, t)
		}
		if empty {
			// Rejected by the store as a document without an id.
			return ""
		}
		return core.IDFromContent(strings.Join(parts, "\x1f"))
	}
	return core.IDFromRow(record.Row)
}

func errorTypes(failures []DocumentFailure) []string {
	seen := make(map[string]bool)
	var types []string
	for _, f := range failures {
		if !seen[f.ErrorType] {
			seen[f.ErrorType] = true
			types = append(types, f.ErrorType)
		}
	}
	return types
}
