package client

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/poiesic/vecbatch/ai"
)

var (
	// ErrClientClosed is returned by calls made after Close.
	ErrClientClosed = errors.New("client is closed")

	// ErrRerankMismatch indicates a rerank response that is not a permutation of its input.
	ErrRerankMismatch = errors.New("rerank response does not match input documents")

	// ErrInvalidOption indicates an option value out of range.
	ErrInvalidOption = errors.New("invalid client option")
)

// IsRetryable reports whether err is a failure worth another attempt:
// throttling, transient service errors, network timeouts and dropped connections.
// A bare context deadline belongs to the caller and is not retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ai.ErrThrottled), errors.Is(err, ai.ErrTransient):
		return true
	case errors.Is(err, ai.ErrPermanent), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, syscall.ECONNRESET):
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
