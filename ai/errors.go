package ai

import "errors"

// Error classes returned (wrapped) by provider implementations.
// Callers classify with errors.Is.
var (
	// ErrThrottled indicates the service rejected the request due to rate limiting.
	ErrThrottled = errors.New("request throttled")

	// ErrTransient indicates a temporary failure (timeouts, 5xx, connectivity).
	ErrTransient = errors.New("transient service error")

	// ErrPermanent indicates a request that will not succeed if retried
	// (malformed input, authorization failure, unknown model).
	ErrPermanent = errors.New("permanent service error")

	// ErrDimensionMismatch indicates a vector with an unexpected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrUnsupportedDimension indicates a dimension the model cannot produce.
	ErrUnsupportedDimension = errors.New("unsupported embedding dimension")

	// ErrEmptyResponse indicates the service returned no usable data.
	ErrEmptyResponse = errors.New("empty response from service")

	// ErrNoReranker is returned when reranking is requested but not configured.
	ErrNoReranker = errors.New("no reranker configured")
)

// ClassifyStatus maps an HTTP status code to one of the error classes.
// It returns nil for 2xx codes.
func ClassifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 429:
		return ErrThrottled
	case code == 408 || code >= 500:
		return ErrTransient
	default:
		return ErrPermanent
	}
}
