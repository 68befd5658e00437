package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "same content produces same ID", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			assert.Equal(t, id1, id2)
			assert.Len(t, string(id1), 16)
		})
	}
}

func TestIDFromContent_Distinct(t *testing.T) {
	assert.NotEqual(t, IDFromContent("glucose"), IDFromContent("glucose "))
}

func TestIDFromRow(t *testing.T) {
	assert.Equal(t, DocumentID("0"), IDFromRow(0))
	assert.Equal(t, DocumentID("105"), IDFromRow(105))
}

func TestRecordText(t *testing.T) {
	r := Record{Row: 3, Fields: map[string]any{
		"name":  "Hemoglobin A1c",
		"code":  4548.0,
		"nan":   math.NaN(),
		"empty": nil,
		"flag":  true,
	}}

	assert.Equal(t, "Hemoglobin A1c", r.Text("name"))
	assert.Equal(t, "4548", r.Text("code"))
	assert.Equal(t, "", r.Text("nan"))
	assert.Equal(t, "", r.Text("empty"))
	assert.Equal(t, "", r.Text("missing"))
	assert.Equal(t, "true", r.Text("flag"))
}

func TestBatchLen(t *testing.T) {
	assert.Equal(t, 25, Batch{StartRow: 80, EndRow: 105}.Len())
}

func TestEvaluationRecordFound(t *testing.T) {
	assert.True(t, EvaluationRecord{Rank: 1}.Found())
	assert.False(t, EvaluationRecord{Rank: 0}.Found())
	assert.False(t, EvaluationRecord{Rank: 2, Failed: true}.Found())
}
