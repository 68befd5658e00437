package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/vecbatch/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"throttled", errors.New("API returned unexpected status code: 429: slow down"), ai.ErrThrottled},
		{"server error", errors.New("API returned unexpected status code: 503"), ai.ErrTransient},
		{"bad request", errors.New("API returned unexpected status code: 400: bad input"), ai.ErrPermanent},
		{"unknown", errors.New("something odd"), ai.ErrPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyError(tt.err), tt.want)
		})
	}

	assert.ErrorIs(t, classifyError(context.Canceled), context.Canceled)
	assert.NotErrorIs(t, classifyError(context.Canceled), ai.ErrPermanent)
	assert.NoError(t, classifyError(nil))
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{float32(i), 1}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "test"})
	}))
	defer srv.Close()

	e, err := newEmbedder(ai.NewConfig(ai.WithHost(srv.URL), ai.WithEmbeddingModel("test")))
	require.NoError(t, err)

	vectors, err := e.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 1}, vectors[1])
}

func TestEmbedder_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2]}]}`))
	}))
	defer srv.Close()

	e, err := newEmbedder(ai.NewConfig(ai.WithHost(srv.URL), ai.WithDimension(4)))
	require.NoError(t, err)

	_, err = e.EmbedText(context.Background(), "a")
	assert.ErrorIs(t, err, ai.ErrDimensionMismatch)
}

func TestReranker_Rerank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "fasting glucose", req.Query)
		assert.Equal(t, 3, req.TopN)
		_, _ = w.Write([]byte(`{"results":[{"index":2,"relevance_score":0.9},{"index":0,"relevance_score":0.5},{"index":1,"relevance_score":0.1}]}`))
	}))
	defer srv.Close()

	r, err := NewReranker(ai.NewConfig(ai.WithHost(srv.URL), ai.WithRerankModel("bge")))
	require.NoError(t, err)

	scores, err := r.Rerank(context.Background(), "fasting glucose", []ai.RerankDocument{
		{ID: "a", Text: "one"}, {ID: "b", Text: "two"}, {ID: "c", Text: "three"},
	})
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, "c", scores[0].ID)
	assert.Equal(t, "a", scores[1].ID)
	assert.Equal(t, "b", scores[2].ID)
}

func TestReranker_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ai.ErrThrottled},
		{http.StatusBadGateway, ai.ErrTransient},
		{http.StatusUnauthorized, ai.ErrPermanent},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			r, err := NewReranker(ai.NewConfig(ai.WithHost(srv.URL), ai.WithRerankModel("bge")))
			require.NoError(t, err)
			_, err = r.Rerank(context.Background(), "q", []ai.RerankDocument{{ID: "a", Text: "x"}})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReranker_IndexOutOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":7,"relevance_score":0.9}]}`))
	}))
	defer srv.Close()

	r, err := NewReranker(ai.NewConfig(ai.WithHost(srv.URL), ai.WithRerankModel("bge")))
	require.NoError(t, err)
	_, err = r.Rerank(context.Background(), "q", []ai.RerankDocument{{ID: "a", Text: "x"}})
	assert.ErrorIs(t, err, ai.ErrPermanent)
}

func TestNewProvider_RerankerOptional(t *testing.T) {
	p, err := NewProvider(ai.NewConfig(ai.WithHost("http://localhost:1")))
	require.NoError(t, err)
	defer p.Close()
	assert.NotNil(t, p.Embedder())
	assert.Nil(t, p.Reranker())

	p2, err := NewProvider(ai.NewConfig(ai.WithHost("http://localhost:1"), ai.WithRerankModel("bge")))
	require.NoError(t, err)
	defer p2.Close()
	assert.NotNil(t, p2.Reranker())
}
