package opensearch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/poiesic/vecbatch/storage"
)

var (
	// ErrInvalidConfig indicates a store configuration that cannot be used.
	ErrInvalidConfig = errors.New("invalid opensearch configuration")

	// ErrRequestFailed indicates a request rejected by the cluster.
	ErrRequestFailed = errors.New("opensearch request failed")
)

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// statusError maps a non-2xx response to a storage error.
func statusError(method, path string, status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	reason := eb.Error.Reason
	if reason == "" {
		reason = truncate(string(body), 512)
	}

	switch {
	case eb.Error.Type == "resource_already_exists_exception":
		return fmt.Errorf("%w: %s", storage.ErrIndexExists, reason)
	case eb.Error.Type == "index_not_found_exception", status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", storage.ErrIndexNotFound, reason)
	case status == http.StatusTooManyRequests,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s %s: status %d: %s", storage.ErrTransient, method, path, status, reason)
	default:
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrRequestFailed, method, path, status, reason)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
