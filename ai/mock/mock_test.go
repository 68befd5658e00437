package mock

import (
	"context"
	"math"
	"testing"

	"github.com/poiesic/vecbatch/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "glucose")
	require.NoError(t, err)
	b, err := m.EmbedTexts(ctx, []string{"glucose", "sodium"})
	require.NoError(t, err)

	assert.Equal(t, a, b[0])
	assert.NotEqual(t, b[0], b[1])
	assert.Len(t, a, DefaultDimension)
	assert.Equal(t, 2, m.CallCount())

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestMockEmbedder_Dimension(t *testing.T) {
	m := &MockEmbedder{Dimension: 8}
	v, err := m.EmbedText(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, v, 8)
}

func TestMockReranker_TermOverlap(t *testing.T) {
	r := NewMockReranker()
	docs := []ai.RerankDocument{
		{ID: "a", Text: "sodium serum"},
		{ID: "b", Text: "glucose fasting plasma"},
		{ID: "c", Text: "glucose random"},
	}
	scores, err := r.Rerank(context.Background(), "fasting glucose", docs)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, "b", scores[0].ID)
	assert.Equal(t, "c", scores[1].ID)
	assert.Equal(t, "a", scores[2].ID)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProviderWithServices(NewMockEmbedder(), nil)
	assert.Nil(t, p.Reranker())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, p.CloseCount())
}
