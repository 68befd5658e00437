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

// Package search runs k-NN queries against a vector store and optionally
// reorders the leading hits with a rerank model.
//
// A query is embedded through the bounded API client, sent to the store with
// embedding fields excluded from the returned documents, and the top
// RerankTopK hits are rescored. Hits past RerankTopK keep their store order
// behind the reranked head. When the rerank call fails the k-NN order is
// returned and the result is marked as a fallback.
package search
