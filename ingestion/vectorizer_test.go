package ingestion

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/poiesic/vecbatch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEmbedder returns a one-value vector holding the text length.
type recordingEmbedder struct {
	calls [][]string
	err   error
}

func (e *recordingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([]core.Vector, error) {
	e.calls = append(e.calls, texts)
	if e.err != nil {
		return nil, e.err
	}
	out := make([]core.Vector, len(texts))
	for i, t := range texts {
		out[i] = core.Vector{float32(len(t))}
	}
	return out, nil
}

func TestVectorizer_Fields(t *testing.T) {
	v := Vectorizer{Columns: []string{"name", "desc"}, Strategy: PerColumn, Suffix: "_embedding"}
	assert.Equal(t, []string{"name_embedding", "desc_embedding"}, v.Fields())

	v.Strategy = Combined
	v.CombinedField = "combined_embedding"
	assert.Equal(t, []string{"combined_embedding"}, v.Fields())
}

func TestVectorizer_PerColumn(t *testing.T) {
	v := Vectorizer{Columns: []string{"name", "desc"}, Strategy: PerColumn, Suffix: "_embedding"}
	embedder := &recordingEmbedder{}
	records := []core.Record{
		{Row: 0, Fields: map[string]any{"name": "glucose", "desc": "blood sugar", "code": "2345-7"}},
		{Row: 1, Fields: map[string]any{"name": "sodium", "desc": math.NaN(), "unit": nil}},
	}

	fields, stats, err := v.Apply(context.Background(), embedder, records)
	require.NoError(t, err)

	require.Len(t, embedder.calls, 1, "one embed call per batch")
	assert.Equal(t, []string{"glucose", "blood sugar", "sodium"}, embedder.calls[0])
	assert.Equal(t, VectorizeStats{Embedded: 3, Skipped: 1}, stats)

	assert.Equal(t, core.Vector{7}, fields[0]["name_embedding"])
	assert.Equal(t, core.Vector{11}, fields[0]["desc_embedding"])
	assert.Equal(t, "2345-7", fields[0]["code"])

	assert.Equal(t, core.Vector{6}, fields[1]["name_embedding"])
	assert.NotContains(t, fields[1], "desc_embedding")
	assert.NotContains(t, fields[1], "desc", "NaN values are dropped")
	assert.NotContains(t, fields[1], "unit", "nil values are dropped")
}

func TestVectorizer_Combined(t *testing.T) {
	v := Vectorizer{Columns: []string{"name", "desc"}, Strategy: Combined, CombinedField: "combined_embedding", Separator: " "}
	embedder := &recordingEmbedder{}
	records := []core.Record{
		{Fields: map[string]any{"name": "glucose", "desc": "blood sugar"}},
		{Fields: map[string]any{"name": "sodium"}},
		{Fields: map[string]any{"other": "x"}},
	}

	fields, stats, err := v.Apply(context.Background(), embedder, records)
	require.NoError(t, err)
	assert.Equal(t, []string{"glucose blood sugar", "sodium"}, embedder.calls[0])
	assert.Equal(t, VectorizeStats{Embedded: 2, Skipped: 1}, stats)
	assert.Equal(t, core.Vector{19}, fields[0]["combined_embedding"])
	assert.NotContains(t, fields[2], "combined_embedding")
}

func TestVectorizer_ReusesExistingVectors(t *testing.T) {
	v := Vectorizer{Columns: []string{"name"}, Strategy: PerColumn, Suffix: "_embedding"}
	embedder := &recordingEmbedder{}
	records := []core.Record{
		{Fields: map[string]any{"name": "glucose", "name_embedding": core.Vector{0.5}}},
	}

	fields, stats, err := v.Apply(context.Background(), embedder, records)
	require.NoError(t, err)
	assert.Empty(t, embedder.calls)
	assert.Equal(t, VectorizeStats{Reused: 1}, stats)
	assert.Equal(t, core.Vector{0.5}, fields[0]["name_embedding"])
}

func TestVectorizer_EmbedError(t *testing.T) {
	v := Vectorizer{Columns: []string{"name"}, Strategy: PerColumn, Suffix: "_embedding"}
	boom := errors.New("boom")
	_, _, err := v.Apply(context.Background(), &recordingEmbedder{err: boom},
		[]core.Record{{Fields: map[string]any{"name": "x"}}})
	assert.ErrorIs(t, err, boom)
}
