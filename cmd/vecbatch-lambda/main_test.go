package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/vecbatch"
	"github.com/poiesic/vecbatch/ai/mock"
	"github.com/poiesic/vecbatch/ingestion"
	"github.com/poiesic/vecbatch/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler opens a fresh in-memory database per invocation. The handler
// closes it when the run ends.
func testHandler() *handler {
	return &handler{
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		open: func(ctx context.Context, event *ingestion.EventPayload) (*vecbatch.Database, error) {
			embedder := mock.NewMockEmbedder()
			embedder.Dimension = 8
			provider := mock.NewMockProviderWithServices(embedder, mock.NewMockReranker())
			return vecbatch.NewDatabase(ctx, "", vecbatch.WithInMemory(), vecbatch.WithProvider(provider))
		},
	}
}

func writeLabs(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labs.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"name,code\nsodium,2951-2\nglucose,2345-7\nhemoglobin,718-7\n"), 0o600))
	return path
}

func decodeBody(t *testing.T, resp Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	return body
}

func TestHandle(t *testing.T) {
	h := testHandler()
	waitTime := 0.0
	event := ingestion.EventPayload{
		File:               writeLabs(t),
		OpenSearchEndpoint: "https://search-labs.us-east-1.es.amazonaws.com",
		IndexName:          "labs",
		Columns:            []string{"name"},
		BatchSize:          2,
		WaitTime:           &waitTime,
		CreateIndex:        true,
	}

	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	body := decodeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	assert.Equal(t, "labs", body["index_name"])
	assert.EqualValues(t, 3, body["rows_processed"])
	assert.EqualValues(t, 3, body["documents_indexed"])
	assert.EqualValues(t, 0, body["failed_batches"])
	assert.NotEmpty(t, body["run_id"])
	assert.Equal(t, "Ingest operation completed successfully", body["message"])
}

func TestHandleInvalidEvent(t *testing.T) {
	h := testHandler()

	resp, err := h.Handle(context.Background(), ingestion.EventPayload{IndexName: "labs"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Ingest operation failed", body["message"])
	assert.Contains(t, body["error"], "s3_uri")
}

func TestHandleMissingIndex(t *testing.T) {
	h := testHandler()
	event := ingestion.EventPayload{
		File:               writeLabs(t),
		OpenSearchEndpoint: "http://localhost:9200",
		IndexName:          "missing",
		Columns:            []string{"name"},
	}

	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, decodeBody(t, resp)["error"], storage.ErrIndexNotFound.Error())
}

func TestHandleOpenFailure(t *testing.T) {
	h := testHandler()
	h.open = func(ctx context.Context, event *ingestion.EventPayload) (*vecbatch.Database, error) {
		return nil, errors.New("no credentials")
	}
	event := ingestion.EventPayload{
		File:               writeLabs(t),
		OpenSearchEndpoint: "http://localhost:9200",
		IndexName:          "labs",
		Columns:            []string{"name"},
	}

	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, decodeBody(t, resp)["error"], "no credentials")
}
