package storage

import (
	"fmt"
	"path"

	"github.com/poiesic/vecbatch/core"
)

// Filter restricts results to documents whose field equals a value.
type Filter struct {
	Field string
	Value any
}

// Matches reports whether fields satisfy the filter. A nil filter matches everything.
func (f *Filter) Matches(fields map[string]any) bool {
	if f == nil {
		return true
	}
	v, ok := fields[f.Field]
	if !ok {
		return false
	}
	return core.Stringify(v) == core.Stringify(f.Value)
}

// KnnQuery is a k-nearest-neighbour search against one vector field.
type KnnQuery struct {
	Index  string
	Field  string
	Vector []float32

	// K is the number of neighbours the index considers
	K int

	// Size is the number of hits returned; zero returns K
	Size int

	Filter *Filter

	// Excludes are glob patterns of fields left out of returned documents
	Excludes []string
}

// Validate checks that the query can be executed.
func (q KnnQuery) Validate() error {
	switch {
	case q.Index == "":
		return fmt.Errorf("%w: index is required", ErrInvalidQuery)
	case q.Field == "":
		return fmt.Errorf("%w: vector field is required", ErrInvalidQuery)
	case len(q.Vector) == 0:
		return fmt.Errorf("%w: query vector is empty", ErrInvalidQuery)
	case q.K <= 0:
		return fmt.Errorf("%w: k must be positive, got %d", ErrInvalidQuery, q.K)
	case q.Size < 0:
		return fmt.Errorf("%w: size must not be negative", ErrInvalidQuery)
	}
	for _, p := range q.Excludes {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("%w: exclude pattern %q: %w", ErrInvalidQuery, p, err)
		}
	}
	return nil
}

// ResultSize returns how many hits the query returns.
func (q KnnQuery) ResultSize() int {
	if q.Size == 0 {
		return q.K
	}
	return q.Size
}

// ExcludeFields returns a copy of fields without keys matching any pattern.
func ExcludeFields(fields map[string]any, patterns []string) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if !excluded(k, patterns) {
			out[k] = v
		}
	}
	return out
}

func excluded(field string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, field); ok {
			return true
		}
	}
	return false
}
