package evaluate

import "errors"

var (
	// ErrSearcherRequired is returned when a searcher is not provided.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrInvalidConfig is returned when the evaluation configuration is invalid.
	ErrInvalidConfig = errors.New("invalid evaluation configuration")

	// ErrMissingColumn is returned when a configured column is not in the dataset.
	ErrMissingColumn = errors.New("column not found in dataset")

	// ErrMissingExpected marks a row without an expected value.
	ErrMissingExpected = errors.New("expected value is empty")

	// ErrNoHits marks a row whose search returned nothing.
	ErrNoHits = errors.New("search returned no hits")
)
