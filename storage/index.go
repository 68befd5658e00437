package storage

import (
	"fmt"
	"strings"
)

// SpaceType is the distance function of a k-NN field.
type SpaceType string

const (
	SpaceL2           SpaceType = "l2"
	SpaceCosine       SpaceType = "cosinesimil"
	SpaceInnerProduct SpaceType = "innerproduct"
)

// ParseSpaceType validates a space type name.
func ParseSpaceType(name string) (SpaceType, error) {
	switch s := SpaceType(strings.ToLower(name)); s {
	case SpaceL2, SpaceCosine, SpaceInnerProduct:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown space type %q", ErrInvalidIndexSpec, name)
	}
}

// Default HNSW parameters, matching the settings the OpenSearch indexes were tuned with.
const (
	DefaultEngine         = "faiss"
	DefaultMethod         = "hnsw"
	DefaultEfConstruction = 512
	DefaultM              = 48
	DefaultEfSearch       = 512
)

// IndexSpec describes a k-NN index.
type IndexSpec struct {
	Name string

	// Dimension is the length of every vector field
	Dimension int

	// VectorFields are mapped as knn_vector; everything else is mapped dynamically
	VectorFields []string

	Engine         string
	Method         string
	SpaceType      SpaceType
	EfConstruction int
	M              int
	EfSearch       int
}

// IndexSpecFor builds a spec with default HNSW settings whose vector fields
// are the given fields ending in suffix.
func IndexSpecFor(name string, fields []string, dimension int, suffix string) IndexSpec {
	var vectors []string
	for _, f := range fields {
		if strings.HasSuffix(f, suffix) {
			vectors = append(vectors, f)
		}
	}
	return IndexSpec{
		Name:           name,
		Dimension:      dimension,
		VectorFields:   vectors,
		Engine:         DefaultEngine,
		Method:         DefaultMethod,
		SpaceType:      SpaceL2,
		EfConstruction: DefaultEfConstruction,
		M:              DefaultM,
		EfSearch:       DefaultEfSearch,
	}
}

// WithDefaults returns a copy with unset tuning fields filled in.
func (s IndexSpec) WithDefaults() IndexSpec {
	if s.Engine == "" {
		s.Engine = DefaultEngine
	}
	if s.Method == "" {
		s.Method = DefaultMethod
	}
	if s.SpaceType == "" {
		s.SpaceType = SpaceL2
	}
	if s.EfConstruction == 0 {
		s.EfConstruction = DefaultEfConstruction
	}
	if s.M == 0 {
		s.M = DefaultM
	}
	if s.EfSearch == 0 {
		s.EfSearch = DefaultEfSearch
	}
	return s
}

// Validate checks that the spec can be created.
func (s IndexSpec) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidIndexSpec)
	case s.Name != strings.ToLower(s.Name):
		return fmt.Errorf("%w: name %q must be lowercase", ErrInvalidIndexSpec, s.Name)
	case strings.ContainsAny(s.Name, ` :"*\<|,>/?#`):
		return fmt.Errorf("%w: name %q contains a reserved character", ErrInvalidIndexSpec, s.Name)
	case s.Dimension <= 0:
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidIndexSpec, s.Dimension)
	case len(s.VectorFields) == 0:
		return fmt.Errorf("%w: at least one vector field is required", ErrInvalidIndexSpec)
	}
	if _, err := ParseSpaceType(string(s.SpaceType)); err != nil {
		return err
	}
	return nil
}
