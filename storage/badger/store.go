// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vecbatch/core"
	"github.com/poiesic/vecbatch/storage"
)

// Store implements storage.VectorStore on a BadgerDB backend.
// k-NN search scores every document in the index; it is meant for local
// development and tests, not for large indexes.
type Store struct {
	backend *Backend
	owned   bool
	logger  *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

type storedDocument struct {
	ID     core.DocumentID `json:"id"`
	Fields map[string]any  `json:"fields"`
}

// NewStore creates a store on an open backend. The caller keeps ownership of the backend.
func NewStore(backend *Backend) *Store {
	return &Store{
		backend: backend,
		logger:  slog.Default().With("component", "badger-store"),
	}
}

// Open opens a database at path and returns a store that closes it on Close.
//
// Returns storage.VectorStore interface to enforce abstraction.
func Open(path string, inMemory bool) (storage.VectorStore, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}
	s := NewStore(backend)
	s.owned = true
	return s, nil
}

// CreateIndex stores the index definition.
func (s *Store) CreateIndex(ctx context.Context, spec storage.IndexSpec) error {
	spec = spec.WithDefaults()
	if err := spec.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeIndexKey(spec.Name)
		if _, err := tx.Get(key); err == nil {
			return fmt.Errorf("%w: %s", storage.ErrIndexExists, spec.Name)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		s.logger.Info("created index", "index", spec.Name, "dimension", spec.Dimension, "fields", spec.VectorFields)
		return tx.Commit()
	}, true)
}

// DeleteIndex removes the index definition and its documents.
func (s *Store) DeleteIndex(ctx context.Context, index string) error {
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeIndexKey(index)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", storage.ErrIndexNotFound, index)
			}
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}
	return s.backend.DropPrefix(makeDocumentPrefix(index))
}

// IndexExists reports whether an index definition is stored.
func (s *Store) IndexExists(ctx context.Context, index string) (bool, error) {
	_, err := s.loadIndex(index)
	if errors.Is(err, storage.ErrIndexNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Truncate deletes every document in the index.
func (s *Store) Truncate(ctx context.Context, index string) error {
	if _, err := s.loadIndex(index); err != nil {
		return err
	}
	s.logger.Info("truncating index", "index", index)
	return s.backend.DropPrefix(makeDocumentPrefix(index))
}

// BulkIndex writes documents, replacing documents with the same ID.
// Documents that fail validation, or whose vector fields do not match the
// index dimension, are reported as failed items and not written.
func (s *Store) BulkIndex(ctx context.Context, index string, docs []core.Document) (*storage.BulkResponse, error) {
	spec, err := s.loadIndex(index)
	if err != nil {
		return nil, err
	}

	resp := &storage.BulkResponse{Items: make([]storage.BulkItem, len(docs))}
	err = s.backend.WriteBatch(func(wb *badger.WriteBatch) error {
		for i, doc := range docs {
			if err := ctx.Err(); err != nil {
				return err
			}
			resp.Items[i] = storage.BulkItem{ID: doc.ID, Status: 201}
			if reason := checkDocument(spec, doc); reason != "" {
				resp.Items[i].Status = 400
				resp.Items[i].ErrorType = "mapper_parsing_exception"
				resp.Items[i].Reason = reason
				continue
			}
			value, err := json.Marshal(storedDocument{ID: doc.ID, Fields: doc.Fields})
			if err != nil {
				resp.Items[i].Status = 400
				resp.Items[i].ErrorType = "mapper_parsing_exception"
				resp.Items[i].Reason = err.Error()
				continue
			}
			if err := wb.Set(makeDocumentKey(index, doc.ID), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func checkDocument(spec *storage.IndexSpec, doc core.Document) string {
	if err := core.ValidateDocument(&doc); err != nil {
		return err.Error()
	}
	for _, field := range spec.VectorFields {
		raw, ok := doc.Fields[field]
		if !ok {
			continue
		}
		v, ok := storage.ToVector(raw)
		if !ok {
			return fmt.Sprintf("field [%s] is not a vector", field)
		}
		if len(v) != spec.Dimension {
			return fmt.Sprintf("vector length %d for field [%s] does not match dimension %d", len(v), field, spec.Dimension)
		}
	}
	return ""
}

type scoredDocument struct {
	doc   storedDocument
	score float64
}

// KnnSearch scores every document in the index against the query vector.
// Ties keep document key order.
func (s *Store) KnnSearch(ctx context.Context, query storage.KnnQuery) ([]core.SearchResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	spec, err := s.loadIndex(query.Index)
	if err != nil {
		return nil, err
	}
	if len(query.Vector) != spec.Dimension {
		return nil, fmt.Errorf("%w: query vector has %d values, index dimension is %d",
			storage.ErrInvalidQuery, len(query.Vector), spec.Dimension)
	}

	var candidates []scoredDocument
	err = s.backend.Scan(ctx, makeDocumentPrefix(query.Index), func(_, value []byte) error {
		var doc storedDocument
		if err := json.Unmarshal(value, &doc); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		if !query.Filter.Matches(doc.Fields) {
			return nil
		}
		vector, ok := storage.ToVector(doc.Fields[query.Field])
		if !ok {
			return nil
		}
		candidates = append(candidates, scoredDocument{doc: doc, score: score(spec.SpaceType, query.Vector, vector)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	limit := min(query.K, query.ResultSize())
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]core.SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = core.SearchResult{
			ID:     c.doc.ID,
			Score:  c.score,
			Rank:   i + 1,
			Fields: storage.ExcludeFields(c.doc.Fields, query.Excludes),
		}
	}
	return results, nil
}

// DocumentCount counts document keys in the index.
func (s *Store) DocumentCount(ctx context.Context, index string) (int, error) {
	if _, err := s.loadIndex(index); err != nil {
		return 0, err
	}
	return s.backend.CountPrefix(ctx, makeDocumentPrefix(index))
}

// Close closes the backend if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) loadIndex(index string) (*storage.IndexSpec, error) {
	var spec storage.IndexSpec
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeIndexKey(index))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", storage.ErrIndexNotFound, index)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &spec)
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return &spec, nil
}
