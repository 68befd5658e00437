package core

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// DocumentID identifies a document in a vector store.
// IDs are derived deterministically from the source row or its content so that
// re-ingesting the same input overwrites rather than duplicates.
type DocumentID string

// IDFromRow returns the identifier for the record at the given source row.
func IDFromRow(row int) DocumentID {
	return DocumentID(strconv.Itoa(row))
}

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) DocumentID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], binary.LittleEndian.Uint64(sum))
	return DocumentID(hex.EncodeToString(buf[:]))
}

// Record is one row read from a record source.
// Row is the zero-based position of the record in its source and never changes
// between reads of the same input.
type Record struct {
	Row    int
	Fields map[string]any
}

// Text returns the string form of a field, or "" if it is missing or not a usable value.
func (r Record) Text(field string) string {
	v, ok := r.Fields[field]
	if !ok || !IsPresent(v) {
		return ""
	}
	return Stringify(v)
}

// Batch is a contiguous half-open slice [StartRow, EndRow) of a record range.
type Batch struct {
	Index    int
	StartRow int
	EndRow   int
}

// Len returns the number of rows covered by the batch.
func (b Batch) Len() int {
	return b.EndRow - b.StartRow
}

// Vector is an embedding produced by a model.
type Vector []float32

// Document is a record's fields merged with zero or more embedding fields.
type Document struct {
	ID     DocumentID
	Fields map[string]any
}

// SearchResult is a single k-NN hit as ranked by the store.
// Rank is the 1-based position in the store's ordering.
type SearchResult struct {
	ID     DocumentID
	Score  float64
	Rank   int
	Fields map[string]any
}

// RerankedResult is a SearchResult with the score assigned by a rerank model.
// OriginalRank is the 1-based position the hit had before reranking.
type RerankedResult struct {
	SearchResult
	RerankScore  float64
	OriginalRank int
	Reranked     bool
}

// BatchOutcome records what happened to a single batch.
type BatchOutcome struct {
	Batch     Batch
	Success   bool
	Processed int
	Failed    int
	Attempts  int
	Err       error
	Duration  time.Duration
}

// EvaluationRecord is the result of running one labeled query.
// Rank is 1-based; 0 means the expected value was not in the returned window.
type EvaluationRecord struct {
	Row      int
	Query    string
	Expected string
	Rank     int
	Hits     int
	Score    float64
	Display  string
	Failed   bool
	Err      error
}

// Found reports whether the expected value appeared in the results.
func (e EvaluationRecord) Found() bool {
	return !e.Failed && e.Rank > 0
}

// IsPresent reports whether a field value carries data.
// nil and NaN values are treated as missing.
func IsPresent(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case float64:
		return !math.IsNaN(val)
	case float32:
		return !math.IsNaN(float64(val))
	default:
		return true
	}
}

// Stringify renders a scalar field value as text.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
