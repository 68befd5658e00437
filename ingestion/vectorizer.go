package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/vecbatch/core"
	"github.com/poiesic/vecbatch/storage"
)

// TextEmbedder embeds texts in input order. *client.Client implements it.
type TextEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([]core.Vector, error)
}

// Vectorizer turns record columns into embedding fields.
type Vectorizer struct {
	Columns       []string
	Strategy      Strategy
	Suffix        string
	CombinedField string
	Separator     string
}

// VectorizeStats counts what happened to each embedding field of a batch.
type VectorizeStats struct {
	// Embedded fields were sent to the model
	Embedded int
	// Skipped fields had no text
	Skipped int
	// Reused fields already carried a vector
	Reused int
}

func (s *VectorizeStats) add(o VectorizeStats) {
	s.Embedded += o.Embedded
	s.Skipped += o.Skipped
	s.Reused += o.Reused
}

// Fields returns the embedding field names in column order.
func (v Vectorizer) Fields() []string {
	if v.Strategy == Combined {
		return []string{v.CombinedField}
	}
	fields := make([]string, len(v.Columns))
	for i, col := range v.Columns {
		fields[i] = col + v.Suffix
	}
	return fields
}

// texts returns the embedding field name and text of each field for a record.
func (v Vectorizer) texts(record core.Record) ([]string, []string) {
	if v.Strategy == Combined {
		var parts []string
		for _, col := range v.Columns {
			if t := record.Text(col); t != "" {
				parts = append(parts, t)
			}
		}
		return []string{v.CombinedField}, []string{strings.Join(parts, v.Separator)}
	}
	fields := v.Fields()
	texts := make([]string, len(v.Columns))
	for i, col := range v.Columns {
		texts[i] = record.Text(col)
	}
	return fields, texts
}

type embedTarget struct {
	record int
	field  string
}

// Apply returns, for each record, its present fields plus its embedding
// fields. All texts of the batch go to the embedder in one call. Fields with
// no text get no embedding; fields that already hold a vector keep it.
func (v Vectorizer) Apply(ctx context.Context, embedder TextEmbedder, records []core.Record) ([]map[string]any, VectorizeStats, error) {
	var stats VectorizeStats
	out := make([]map[string]any, len(records))
	var texts []string
	var targets []embedTarget

	for i, record := range records {
		fields := make(map[string]any, len(record.Fields)+len(v.Columns))
		for k, val := range record.Fields {
			if core.IsPresent(val) {
				fields[k] = val
			}
		}
		out[i] = fields

		names, values := v.texts(record)
		for j, name := range names {
			if _, ok := storage.ToVector(fields[name]); ok {
				stats.Reused++
				continue
			}
			if strings.TrimSpace(values[j]) == "" {
				stats.Skipped++
				continue
			}
			texts = append(texts, values[j])
			targets = append(targets, embedTarget{record: i, field: name})
		}
	}

	if len(texts) == 0 {
		return out, stats, nil
	}
	vectors, err := embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, stats, err
	}
	if len(vectors) != len(texts) {
		return nil, stats, fmt.Errorf("embedding result mismatch. expected %d, received %d", len(texts), len(vectors))
	}
	for i, t := range targets {
		out[t.record][t.field] = vectors[i]
	}
	stats.Embedded = len(texts)
	return out, stats, nil
}
