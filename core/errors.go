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

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidBatch indicates a Batch failed validation.
	ErrInvalidBatch = errors.New("invalid batch")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyDocumentID indicates the document has no identifier.
	ErrEmptyDocumentID = errors.New("document id cannot be empty")

	// ErrEmptyFields indicates the document carries no fields.
	ErrEmptyFields = errors.New("document fields cannot be empty")

	// ErrEmptyQuery indicates a search query with no text.
	ErrEmptyQuery = errors.New("query cannot be empty")
)
