package client

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/vecbatch/retry"
)

// Defaults applied by New.
const (
	DefaultConcurrency      = 5
	DefaultMaxAttempts      = 5
	DefaultRequestTimeout   = 30 * time.Second
	DefaultRequestBatchSize = 1
)

type options struct {
	concurrency      int
	maxAttempts      int
	backoff          retry.Backoff
	requestTimeout   time.Duration
	requestBatchSize int
	adaptive         bool
	rateLimit        float64
	logger           *slog.Logger
}

func defaultOptions() options {
	return options{
		concurrency:      DefaultConcurrency,
		maxAttempts:      DefaultMaxAttempts,
		backoff:          retry.Exponential(time.Second, retry.DefaultMaxDelay),
		requestTimeout:   DefaultRequestTimeout,
		requestBatchSize: DefaultRequestBatchSize,
		adaptive:         true,
	}
}

func (o options) validate() error {
	switch {
	case o.concurrency < 1:
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidOption, o.concurrency)
	case o.maxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidOption, o.maxAttempts)
	case o.requestBatchSize < 1:
		return fmt.Errorf("%w: request batch size must be at least 1, got %d", ErrInvalidOption, o.requestBatchSize)
	case o.requestTimeout < 0:
		return fmt.Errorf("%w: request timeout must not be negative", ErrInvalidOption)
	case o.rateLimit < 0:
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidOption)
	}
	return nil
}

// Option configures a Client.
type Option func(*options)

// WithConcurrency sets the maximum number of requests in flight across all calls.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithMaxAttempts sets the attempts per request, including the first.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// WithBackoff sets the delay schedule between attempts.
func WithBackoff(b retry.Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// WithRequestTimeout bounds each upstream request. Zero disables the timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		o.requestTimeout = d
	}
}

// WithRequestBatchSize sets how many texts are sent per upstream embedding request.
func WithRequestBatchSize(n int) Option {
	return func(o *options) {
		o.requestBatchSize = n
	}
}

// WithAdaptive toggles throttle-driven capacity adjustment.
func WithAdaptive(enabled bool) Option {
	return func(o *options) {
		o.adaptive = enabled
	}
}

// WithRateLimit paces requests to at most rps per second. Zero disables pacing.
func WithRateLimit(rps float64) Option {
	return func(o *options) {
		o.rateLimit = rps
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
