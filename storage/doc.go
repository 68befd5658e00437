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

// Package storage provides the vector store abstraction used by the ingest,
// search and evaluation pipelines.
//
// This package defines interfaces that decouple storage implementation from
// pipeline logic. Two backends implement VectorStore: storage/opensearch talks
// to an OpenSearch k-NN cluster over REST, and storage/badger keeps indexes in
// a local BadgerDB database with brute-force scoring for development and tests.
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage interfaces where the caller only
// needs the contract:
//
//	store, err := opensearch.New(ctx, cfg)  // returns storage.VectorStore
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Usage
//
//	spec := storage.IndexSpecFor("lab-tests", []string{"name_embedding"}, 1024, "_embedding")
//	if err := store.CreateIndex(ctx, spec); err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := store.BulkIndex(ctx, "lab-tests", docs)
//
// # Errors
//
// Backends wrap their failures with the sentinels in errors.go. Retryable
// failures (throttling, unavailable nodes, gateway timeouts) wrap ErrTransient.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access from
// multiple goroutines.
package storage
