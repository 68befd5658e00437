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

import (
	"fmt"
	"strings"
)

// ValidateBatch validates a Batch.
//
// Validation rules:
//   - Index must not be negative
//   - StartRow must not be negative
//   - EndRow must be greater than StartRow
func ValidateBatch(b Batch) error {
	if b.Index < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidBatch, b.Index)
	}
	if b.StartRow < 0 {
		return fmt.Errorf("%w: negative start row %d", ErrInvalidBatch, b.StartRow)
	}
	if b.EndRow <= b.StartRow {
		return fmt.Errorf("%w: empty range [%d, %d)", ErrInvalidBatch, b.StartRow, b.EndRow)
	}
	return nil
}

// ValidateDocument validates a Document before it is written to a store.
//
// Validation rules:
//   - ID must not be empty
//   - Fields must not be empty
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyDocumentID)
	}
	if len(doc.Fields) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyFields)
	}
	return nil
}

// ValidateQuery checks that a query has searchable text.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	return nil
}
