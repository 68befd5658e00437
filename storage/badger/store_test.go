package badger

import (
	"context"
	"testing"

	"github.com/poiesic/vecbatch/core"
	"github.com/poiesic/vecbatch/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, _, backend, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	spec := storage.IndexSpecFor("labs", []string{"name_embedding"}, 2, "_embedding")
	require.NoError(t, store.CreateIndex(context.Background(), spec))
	return store
}

func doc(id string, name, system string, v ...float32) core.Document {
	return core.Document{ID: core.DocumentID(id), Fields: map[string]any{
		"name":           name,
		"system":         system,
		"name_embedding": core.Vector(v),
	}}
}

func TestStore_IndexLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	exists, err := store.IndexExists(ctx, "labs")
	require.NoError(t, err)
	assert.True(t, exists)

	err = store.CreateIndex(ctx, storage.IndexSpecFor("labs", []string{"name_embedding"}, 2, "_embedding"))
	assert.ErrorIs(t, err, storage.ErrIndexExists)

	require.NoError(t, store.DeleteIndex(ctx, "labs"))
	exists, err = store.IndexExists(ctx, "labs")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, store.DeleteIndex(ctx, "labs"), storage.ErrIndexNotFound)
	_, err = store.DocumentCount(ctx, "labs")
	assert.ErrorIs(t, err, storage.ErrIndexNotFound)
}

func TestStore_CreateIndexInvalid(t *testing.T) {
	store := newTestStore(t)
	err := store.CreateIndex(context.Background(), storage.IndexSpec{Name: "other"})
	assert.ErrorIs(t, err, storage.ErrInvalidIndexSpec)
}

func TestStore_BulkIndexIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	docs := []core.Document{doc("0", "glucose", "loinc", 1, 0), doc("1", "sodium", "loinc", 0, 1)}
	for range 2 {
		resp, err := store.BulkIndex(ctx, "labs", docs)
		require.NoError(t, err)
		assert.Empty(t, resp.Failed())
		assert.Equal(t, 2, resp.Succeeded())
	}

	n, err := store.DocumentCount(ctx, "labs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_BulkIndexReportsBadDocuments(t *testing.T) {
	store := newTestStore(t)

	resp, err := store.BulkIndex(context.Background(), "labs", []core.Document{
		doc("0", "glucose", "loinc", 1, 0),
		doc("1", "sodium", "loinc", 1, 2, 3),
		{ID: "", Fields: map[string]any{"name": "x"}},
	})
	require.NoError(t, err)

	failed := resp.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, core.DocumentID("1"), failed[0].ID)
	assert.Contains(t, failed[0].Reason, "dimension")
	assert.Equal(t, 1, resp.Succeeded())
}

func TestStore_BulkIndexMissingIndex(t *testing.T) {
	store := newTestStore(t)
	_, err := store.BulkIndex(context.Background(), "missing", []core.Document{doc("0", "x", "y", 1, 1)})
	assert.ErrorIs(t, err, storage.ErrIndexNotFound)
}

func TestStore_KnnSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.BulkIndex(ctx, "labs", []core.Document{
		doc("0", "far", "loinc", -1, -1),
		doc("1", "near", "loinc", 0.9, 0.1),
		doc("2", "exact", "snomed", 1, 0),
		doc("3", "mid", "loinc", 0.5, 0.5),
	})
	require.NoError(t, err)

	results, err := store.KnnSearch(ctx, storage.KnnQuery{
		Index:    "labs",
		Field:    "name_embedding",
		Vector:   []float32{1, 0},
		K:        10,
		Size:     3,
		Excludes: []string{"*_embedding"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, core.DocumentID("2"), results[0].ID)
	assert.Equal(t, core.DocumentID("1"), results[1].ID)
	assert.Equal(t, core.DocumentID("3"), results[2].ID)
	assert.Equal(t, 1, results[0].Rank)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Greater(t, results[1].Score, results[2].Score)
	assert.NotContains(t, results[0].Fields, "name_embedding")
	assert.Equal(t, "exact", results[0].Fields["name"])
}

func TestStore_KnnSearchFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.BulkIndex(ctx, "labs", []core.Document{
		doc("1", "near", "loinc", 0.9, 0.1),
		doc("2", "exact", "snomed", 1, 0),
	})
	require.NoError(t, err)

	results, err := store.KnnSearch(ctx, storage.KnnQuery{
		Index:  "labs",
		Field:  "name_embedding",
		Vector: []float32{1, 0},
		K:      10,
		Filter: &storage.Filter{Field: "system", Value: "loinc"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.DocumentID("1"), results[0].ID)
}

func TestStore_KnnSearchDimensionMismatch(t *testing.T) {
	store := newTestStore(t)
	_, err := store.KnnSearch(context.Background(), storage.KnnQuery{
		Index: "labs", Field: "name_embedding", Vector: []float32{1, 0, 0}, K: 1,
	})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestStore_Truncate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.BulkIndex(ctx, "labs", []core.Document{doc("1", "a", "b", 1, 0)})
	require.NoError(t, err)
	require.NoError(t, store.Truncate(ctx, "labs"))

	n, err := store.DocumentCount(ctx, "labs")
	require.NoError(t, err)
	assert.Zero(t, n)

	exists, err := store.IndexExists(ctx, "labs")
	require.NoError(t, err)
	assert.True(t, exists, "truncate keeps the index")
}

func TestStore_IndexesAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateIndex(ctx, storage.IndexSpecFor("labs2", []string{"name_embedding"}, 2, "_embedding")))

	_, err := store.BulkIndex(ctx, "labs2", []core.Document{doc("1", "a", "b", 1, 0)})
	require.NoError(t, err)

	n, err := store.DocumentCount(ctx, "labs")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_OwnsBackend(t *testing.T) {
	store, err := Open(t.TempDir(), false)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.IndexExists(context.Background(), "labs")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
