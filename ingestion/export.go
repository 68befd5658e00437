package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/poiesic/vecbatch/batch"
	"github.com/poiesic/vecbatch/core"
	"github.com/poiesic/vecbatch/source"
	"github.com/poiesic/vecbatch/storage"
)

// Exporter vectorizes the rows of a source without writing to a store. The
// rows it returns carry their embeddings as vectors and can be saved to a
// file that a later ingest reads with source.Options.VectorColumns.
type Exporter struct {
	p *Pipeline
}

// NewExporter creates an exporter. Index and checkpoint settings are ignored.
func NewExporter(embedder TextEmbedder, src source.Source, config *Config, opts ...Option) (*Exporter, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if src == nil {
		return nil, ErrSourceRequired
	}
	if config == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	if err := config.validate(false); err != nil {
		return nil, err
	}

	p := &Pipeline{
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
	if p.checkpoints != nil {
		return nil, fmt.Errorf("%w: checkpoints need a vector store", ErrInvalidConfig)
	}
	return &Exporter{p: p}, nil
}

// ExportReport summarizes an export run.
type ExportReport struct {
	*batch.Summary

	// Columns is the output header: the source columns followed by the
	// embedding fields the source did not already have.
	Columns []string

	// Rows holds the finished rows in row order. Rows of failed batches keep
	// their source fields and have no embeddings.
	Rows []map[string]any

	Stats VectorizeStats

	// Missing counts, per embedding field, the rows left without a vector.
	Missing map[string]int
}

// Run vectorizes the configured row range. Like Pipeline.Run, the report is
// returned when the run is interrupted or aborted; Rows then stops after the
// last finished batch.
func (e *Exporter) Run(ctx context.Context) (*ExportReport, error) {
	cfg := e.p.config
	src := e.p.source
	logger := e.p.logger.With("mode", "export")

	total, err := src.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting source rows: %w", err)
	}
	start, end := batch.Range(total, cfg.SkipRows, cfg.LimitRows)
	rows := make([]map[string]any, max(0, end-start))
	stats := make(map[int]VectorizeStats)
	vectorizer := cfg.vectorizer()

	op := func(ctx context.Context, b core.Batch) (core.BatchOutcome, error) {
		records, err := src.Read(ctx, b.StartRow, b.EndRow)
		if err != nil {
			return core.BatchOutcome{}, fmt.Errorf("reading rows [%d, %d): %w", b.StartRow, b.EndRow, err)
		}
		fields, s, err := vectorizer.Apply(ctx, e.p.embedder, records)
		if err != nil {
			return core.BatchOutcome{}, fmt.Errorf("vectorizing rows [%d, %d): %w", b.StartRow, b.EndRow, err)
		}
		copy(rows[b.StartRow-start:], fields)
		stats[b.Index] = s
		return core.BatchOutcome{Processed: len(records)}, nil
	}

	processor, err := batch.NewProcessor(cfg.batchConfig(cfg.SkipRows, cfg.LimitRows),
		batch.WithMonitor(e.p.monitor), batch.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	logger.Info("starting export", "rows", end-start, "columns", cfg.Columns, "strategy", cfg.Strategy)
	began := time.Now()
	summary, runErr := processor.Run(ctx, total, op)
	if summary == nil {
		return nil, runErr
	}

	last := start
	for _, o := range summary.Outcomes {
		last = max(last, o.Batch.EndRow)
		if o.Success {
			continue
		}
		records, err := src.Read(context.WithoutCancel(ctx), o.Batch.StartRow, o.Batch.EndRow)
		if err != nil {
			return nil, fmt.Errorf("reading failed rows [%d, %d): %w", o.Batch.StartRow, o.Batch.EndRow, err)
		}
		for i, r := range records {
			rows[o.Batch.StartRow-start+i] = presentFields(r)
		}
	}

	report := &ExportReport{
		Summary: summary,
		Rows:    rows[:last-start],
		Missing: make(map[string]int),
	}
	for _, s := range stats {
		report.Stats.add(s)
	}
	report.Columns = exportColumns(src, vectorizer.Fields(), report.Rows)
	for _, field := range vectorizer.Fields() {
		for _, row := range report.Rows {
			if _, ok := storage.ToVector(row[field]); !ok {
				report.Missing[field]++
			}
		}
	}

	logger.Info("export finished", "rows", len(report.Rows), "embedded", report.Stats.Embedded,
		"failedBatches", summary.Failed, "elapsed", time.Since(began).Round(time.Millisecond))
	return report, runErr
}

func presentFields(r core.Record) map[string]any {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		if core.IsPresent(v) {
			fields[k] = v
		}
	}
	return fields
}

// exportColumns keeps the source header order when the source knows it.
func exportColumns(src source.Source, embedFields []string, rows []map[string]any) []string {
	var columns []string
	if s, ok := src.(interface{ Columns() []string }); ok {
		columns = slices.Clone(s.Columns())
	} else {
		seen := make(map[string]bool)
		for _, row := range rows {
			for k := range row {
				if !seen[k] && !slices.Contains(embedFields, k) {
					seen[k] = true
					columns = append(columns, k)
				}
			}
		}
		sort.Strings(columns)
	}
	for _, f := range embedFields {
		if !slices.Contains(columns, f) {
			columns = append(columns, f)
		}
	}
	return columns
}
