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

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/vecbatch/ai"
	"github.com/poiesic/vecbatch/core"
	"github.com/poiesic/vecbatch/retry"
	"golang.org/x/time/rate"
)

// Stats is a snapshot of client activity.
type Stats struct {
	// Requests counts upstream attempts, including retries.
	Requests int64
	Retries  int64
	// Throttles counts attempts rejected with ai.ErrThrottled.
	Throttles int64
	// Failures counts requests that failed after all attempts.
	Failures   int64
	Capacity   int
	TokensUsed int64
}

// Client issues embedding and rerank requests under a shared concurrency cap
// with per-request timeouts and retries.
// It is safe for concurrent use; the cap holds across all concurrent calls.
type Client struct {
	provider ai.Provider
	embedder ai.Embedder
	reranker ai.Reranker

	opts    options
	pool    *ants.Pool
	limiter *AdaptiveLimiter
	pacer   *rate.Limiter
	policy  retry.Policy
	logger  *slog.Logger

	// mu is held shared by every call and exclusively by Close.
	mu     sync.RWMutex
	closed bool

	requests  atomic.Int64
	retries   atomic.Int64
	throttles atomic.Int64
	failures  atomic.Int64
}

// antsLogger routes ants pool messages to slog.
type antsLogger struct {
	logger *slog.Logger
}

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// New creates a client over provider. The client owns the provider and closes it on Close.
func New(provider ai.Provider, opts ...Option) (*Client, error) {
	if provider == nil || provider.Embedder() == nil {
		return nil, fmt.Errorf("%w: provider with an embedder is required", ErrInvalidOption)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	logger := o.logger.With("component", "client")

	pool, err := ants.NewPool(o.concurrency, ants.WithLogger(antsLogger{logger: logger}))
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	c := &Client{
		provider: provider,
		embedder: provider.Embedder(),
		reranker: provider.Reranker(),
		opts:     o,
		pool:     pool,
		limiter:  NewAdaptiveLimiter(o.concurrency, o.adaptive, logger),
		logger:   logger,
	}
	if o.rateLimit > 0 {
		c.pacer = rate.NewLimiter(rate.Limit(o.rateLimit), 1)
	}
	c.policy = retry.Policy{
		MaxAttempts: o.maxAttempts,
		Backoff:     o.backoff,
		Retryable:   IsRetryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.retries.Add(1)
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "err", err)
		},
	}
	return c, nil
}

// HasReranker reports whether the provider offers reranking.
func (c *Client) HasReranker() bool {
	return c.reranker != nil
}

// EmbedText embeds a single text.
func (c *Client) EmbedText(ctx context.Context, text string) (core.Vector, error) {
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type chunkResult struct {
	offset  int
	vectors [][]float32
	err     error
}

// EmbedTexts embeds texts and returns one vector per text in input order.
// Texts are sent in chunks of the request batch size, concurrently under the
// client's cap; completion order does not affect result order.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([]core.Vector, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if len(texts) == 0 {
		return nil, nil
	}

	size := c.opts.requestBatchSize
	results := make([]chunkResult, (len(texts)+size-1)/size)
	var wg sync.WaitGroup

	for i := range results {
		offset := i * size
		chunk := texts[offset:min(offset+size, len(texts))]
		results[i].offset = offset

		if err := ctx.Err(); err != nil {
			results[i].err = err
			continue
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i].vectors, results[i].err = c.embedChunk(ctx, chunk)
		}
		if err := c.pool.Submit(task); err != nil {
			wg.Done()
			results[i].err = fmt.Errorf("submitting request: %w", err)
		}
	}
	wg.Wait()

	out := make([]core.Vector, 0, len(texts))
	dim := -1
	for _, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("embedding texts at offset %d: %w", r.offset, r.err)
		}
		for j, v := range r.vectors {
			if dim == -1 {
				dim = len(v)
			} else if len(v) != dim {
				return nil, fmt.Errorf("%w: text %d has %d values, want %d", ai.ErrDimensionMismatch, r.offset+j, len(v), dim)
			}
			out = append(out, v)
		}
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ai.ErrEmptyResponse, len(out), len(texts))
	}
	return out, nil
}

func (c *Client) embedChunk(ctx context.Context, chunk []string) ([][]float32, error) {
	var vectors [][]float32
	err := c.call(ctx, func(ctx context.Context) error {
		v, err := c.embedder.EmbedTexts(ctx, chunk)
		if err != nil {
			return err
		}
		if len(v) != len(chunk) {
			return fmt.Errorf("%w: got %d vectors for %d texts", ai.ErrEmptyResponse, len(v), len(chunk))
		}
		vectors = v
		return nil
	})
	return vectors, err
}

// Rerank scores docs against query in a single request and checks that the
// response covers exactly the input documents.
func (c *Client) Rerank(ctx context.Context, query string, docs []ai.RerankDocument) ([]ai.RerankScore, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if c.reranker == nil {
		return nil, ai.ErrNoReranker
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var scores []ai.RerankScore
	err := c.call(ctx, func(ctx context.Context) error {
		s, err := c.reranker.Rerank(ctx, query, docs)
		if err != nil {
			return err
		}
		scores = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := validatePermutation(docs, scores); err != nil {
		return nil, err
	}
	return scores, nil
}

func validatePermutation(docs []ai.RerankDocument, scores []ai.RerankScore) error {
	if len(scores) != len(docs) {
		return fmt.Errorf("%w: %d scores for %d documents", ErrRerankMismatch, len(scores), len(docs))
	}
	want := make(map[string]bool, len(docs))
	for _, d := range docs {
		want[d.ID] = true
	}
	for _, s := range scores {
		seen, ok := want[s.ID]
		if !ok {
			return fmt.Errorf("%w: unknown id %q", ErrRerankMismatch, s.ID)
		}
		if !seen {
			return fmt.Errorf("%w: duplicate id %q", ErrRerankMismatch, s.ID)
		}
		want[s.ID] = false
	}
	return nil
}

// call runs one upstream request with admission, pacing, timeout and retry.
func (c *Client) call(ctx context.Context, request func(ctx context.Context) error) error {
	_, err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}
		defer c.limiter.Release()

		if c.pacer != nil {
			if err := c.pacer.Wait(ctx); err != nil {
				return err
			}
		}

		reqCtx := ctx
		if c.opts.requestTimeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, c.opts.requestTimeout)
			defer cancel()
		}

		c.requests.Add(1)
		err := request(reqCtx)
		switch {
		case err == nil:
			c.limiter.Success()
			return nil
		case errors.Is(err, ai.ErrThrottled):
			c.throttles.Add(1)
			c.limiter.Throttled()
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			// The request timed out, not the caller
			err = fmt.Errorf("%w: request exceeded %s: %w", ai.ErrTransient, c.opts.requestTimeout, err)
		}
		return err
	})
	if err != nil {
		c.failures.Add(1)
	}
	return err
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	s := Stats{
		Requests:  c.requests.Load(),
		Retries:   c.retries.Load(),
		Throttles: c.throttles.Load(),
		Failures:  c.failures.Load(),
		Capacity:  c.limiter.Capacity(),
	}
	if u, ok := c.embedder.(ai.UsageReporter); ok {
		s.TokensUsed += u.TokensUsed()
	}
	if u, ok := c.reranker.(ai.UsageReporter); ok {
		s.TokensUsed += u.TokensUsed()
	}
	return s
}

// Close waits for in-flight calls, then releases the worker pool, the limiter
// and the provider. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.pool.Release()
	c.limiter.Close()
	if err := c.provider.Close(); err != nil {
		return fmt.Errorf("closing provider: %w", err)
	}
	c.logger.Debug("client closed", "requests", c.requests.Load(), "failures", c.failures.Load())
	return nil
}
