package vecbatch

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/vecbatch/ai"
	"github.com/poiesic/vecbatch/ai/mock"
	"github.com/poiesic/vecbatch/client"
	"github.com/poiesic/vecbatch/evaluate"
	"github.com/poiesic/vecbatch/ingestion"
	"github.com/poiesic/vecbatch/retry"
	"github.com/poiesic/vecbatch/search"
	"github.com/poiesic/vecbatch/source"
	"github.com/poiesic/vecbatch/storage"
	"github.com/poiesic/vecbatch/storage/opensearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockProvider() *mock.MockProvider {
	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 8
	return mock.NewMockProviderWithServices(embedder, mock.NewMockReranker())
}

func TestNewDatabase(t *testing.T) {
	ctx := context.Background()

	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(ctx, tmpDir, WithProvider(mockProvider()))
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		// Verify components are initialized
		assert.NotNil(t, db.Store())
		assert.NotNil(t, db.CheckpointRepository())
		assert.NotNil(t, db.Client())
		assert.NotNil(t, db.backend)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a database at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := NewDatabase(ctx, tmpFile, WithProvider(mockProvider()))
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("badger needs a path", func(t *testing.T) {
		_, err := NewDatabase(ctx, "", WithProvider(mockProvider()))
		assert.Error(t, err)
	})

	t.Run("invalid ai config", func(t *testing.T) {
		cfg := ai.DefaultConfig()
		cfg.Provider = "watson"
		_, err := NewDatabase(ctx, "", WithInMemory(), WithAIConfig(cfg))
		assert.ErrorContains(t, err, "unknown provider")
	})

	t.Run("opensearch without checkpoints", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		db, err := NewDatabase(ctx, "", WithProvider(mockProvider()),
			WithOpenSearch(opensearch.Config{Endpoint: server.URL}))
		require.NoError(t, err)
		defer db.Close()

		assert.Nil(t, db.CheckpointRepository())
		exists, err := db.Store().IndexExists(ctx, "labs")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), ai.NewConfig(ai.WithHost("http://localhost:11434")))
	require.NoError(t, err)
	assert.NotNil(t, p.Embedder())
	require.NoError(t, p.Close())
}

func TestDatabase_Close(t *testing.T) {
	provider := mockProvider()
	db, err := NewDatabase(context.Background(), t.TempDir(), WithProvider(provider))
	require.NoError(t, err)
	require.NotNil(t, db)

	// Close the database
	err = db.Close()
	assert.NoError(t, err)
	assert.Equal(t, 1, provider.CloseCount())
}

func TestDatabase_EndToEnd(t *testing.T) {
	ctx := context.Background()
	db, err := NewDatabase(ctx, "", WithInMemory(), WithProvider(mockProvider()),
		WithClientOptions(client.WithBackoff(retry.Immediate())))
	require.NoError(t, err)
	defer db.Close()

	src := source.NewMemory([]string{"name", "code"}, []map[string]any{
		{"name": "glucose", "code": "2345-7"},
		{"name": "sodium", "code": "2951-2"},
		{"name": "potassium", "code": "2823-3"},
	})

	cfg := ingestion.DefaultConfig()
	cfg.Index = "labs"
	cfg.Columns = []string{"name"}
	cfg.CreateIndex = true
	cfg.Dimension = 8
	cfg.WaitTime = 0
	pipeline, err := db.NewIngestionPipeline(src, cfg,
		ingestion.WithCheckpoints(db.CheckpointRepository(), "labs"))
	require.NoError(t, err)
	report, err := pipeline.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.DocumentsIndexed)

	searchCfg := search.DefaultConfig()
	searchCfg.Index = "labs"
	searchCfg.Column = "name"
	searcher, err := db.NewSearcher(searchCfg)
	require.NoError(t, err)
	result, err := searcher.Search(ctx, "sodium", 1)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "2951-2", result.Hits[0].Fields["code"])

	evalCfg := evaluate.DefaultConfig()
	evalCfg.QueryColumns = []string{"name"}
	evalCfg.ExpectedColumn = "code"
	evalCfg.MatchField = "code"
	engine, err := db.NewEvaluator(searchCfg, evalCfg)
	require.NoError(t, err)
	records, err := src.Read(ctx, 0, 3)
	require.NoError(t, err)
	evalReport, err := engine.Run(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 3, evalReport.Found)
	assert.InDelta(t, 100.0, evalReport.Accuracy[5], 1e-9)

	n, err := db.Store().DocumentCount(ctx, "labs")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = db.Store().DocumentCount(ctx, "other")
	assert.ErrorIs(t, err, storage.ErrIndexNotFound)
}

func TestDatabase_NewEvaluatorAlignsWindow(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	db, err := NewDatabase(context.Background(), "", WithInMemory(), WithProvider(mockProvider()),
		WithDatabaseLogger(logger))
	require.NoError(t, err)
	defer db.Close()

	searchCfg := search.DefaultConfig()
	searchCfg.Index = "labs"
	searchCfg.Column = "name"
	searchCfg.Size = 10
	searchCfg.K = 15

	evalCfg := evaluate.DefaultConfig()
	evalCfg.QueryColumns = []string{"name"}
	evalCfg.ExpectedColumn = "code"
	evalCfg.MatchField = "code"
	evalCfg.Limit = 40

	_, err = db.NewEvaluator(searchCfg, evalCfg)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "fewer hits than the evaluation window")
	assert.Equal(t, 10, searchCfg.Size, "caller config is not modified")
	assert.Equal(t, 15, searchCfg.K)

	_, err = db.NewEvaluator(nil, evalCfg)
	assert.ErrorIs(t, err, evaluate.ErrInvalidConfig)
}
