package storage

import (
	"testing"

	"github.com/poiesic/vecbatch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexSpecFor(t *testing.T) {
	spec := IndexSpecFor("labs", []string{"name", "name_embedding", "code_embedding"}, 1024, "_embedding")

	assert.Equal(t, []string{"name_embedding", "code_embedding"}, spec.VectorFields)
	assert.Equal(t, SpaceL2, spec.SpaceType)
	assert.Equal(t, "faiss", spec.Engine)
	assert.Equal(t, "hnsw", spec.Method)
	assert.Equal(t, 512, spec.EfConstruction)
	assert.Equal(t, 48, spec.M)
	assert.Equal(t, 512, spec.EfSearch)
	require.NoError(t, spec.Validate())
}

func TestIndexSpec_Validate(t *testing.T) {
	base := IndexSpecFor("labs", []string{"a_embedding"}, 8, "_embedding")
	tests := []struct {
		name   string
		mutate func(*IndexSpec)
	}{
		{"no name", func(s *IndexSpec) { s.Name = "" }},
		{"uppercase", func(s *IndexSpec) { s.Name = "Labs" }},
		{"reserved character", func(s *IndexSpec) { s.Name = "labs:v1" }},
		{"no dimension", func(s *IndexSpec) { s.Dimension = 0 }},
		{"no fields", func(s *IndexSpec) { s.VectorFields = nil }},
		{"bad space", func(s *IndexSpec) { s.SpaceType = "hamming" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidIndexSpec)
		})
	}
}

func TestBulkResponse(t *testing.T) {
	resp := &BulkResponse{Items: []BulkItem{
		{ID: "1", Status: 201},
		{ID: "2", Status: 409, ErrorType: ErrorTypeVersionConflict},
		{ID: "3", Status: 400, ErrorType: "mapper_parsing_exception", Reason: "bad"},
		{ID: "4", Status: 200},
	}}

	failed := resp.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, core.DocumentID("3"), failed[0].ID)
	assert.Equal(t, 1, resp.Ignored())
	assert.Equal(t, 2, resp.Succeeded())

	var empty *BulkResponse
	assert.Nil(t, empty.Failed())
	assert.Zero(t, empty.Ignored())
}

func TestFilter_Matches(t *testing.T) {
	fields := map[string]any{"system": "LOINC", "version": float64(2)}

	var none *Filter
	assert.True(t, none.Matches(fields))
	assert.True(t, (&Filter{Field: "system", Value: "LOINC"}).Matches(fields))
	assert.True(t, (&Filter{Field: "version", Value: 2}).Matches(fields))
	assert.False(t, (&Filter{Field: "system", Value: "SNOMED"}).Matches(fields))
	assert.False(t, (&Filter{Field: "missing", Value: "x"}).Matches(fields))
}

func TestExcludeFields(t *testing.T) {
	fields := map[string]any{"name": "glucose", "name_embedding": []float32{1}, "combined_embedding": []float32{2}}
	out := ExcludeFields(fields, []string{"*_embedding"})
	assert.Equal(t, map[string]any{"name": "glucose"}, out)
	assert.Len(t, fields, 3, "input must not be modified")
}

func TestKnnQuery_Validate(t *testing.T) {
	q := KnnQuery{Index: "labs", Field: "v", Vector: []float32{1}, K: 10}
	require.NoError(t, q.Validate())
	assert.Equal(t, 10, q.ResultSize())

	q.Size = 5
	assert.Equal(t, 5, q.ResultSize())

	bad := q
	bad.K = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidQuery)
	bad = q
	bad.Vector = nil
	assert.ErrorIs(t, bad.Validate(), ErrInvalidQuery)
	bad = q
	bad.Excludes = []string{"["}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidQuery)
}

func TestToVector(t *testing.T) {
	v, ok := ToVector([]any{1.0, 2.5})
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2.5}, v)

	v, ok = ToVector(core.Vector{3})
	require.True(t, ok)
	assert.Equal(t, []float32{3}, v)

	_, ok = ToVector([]any{"x"})
	assert.False(t, ok)
	_, ok = ToVector("text")
	assert.False(t, ok)
}
