package client

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// AdaptiveLimiter bounds the number of in-flight requests.
//
// The hard cap is fixed at construction. When adaptive, capacity is halved on
// throttling and grows by one after a run of successes, never exceeding the
// cap. A reduction is applied by reserving semaphore slots in the background,
// so requests already in flight are never interrupted and new ones queue
// behind the reservation.
type AdaptiveLimiter struct {
	sem       *semaphore.Weighted
	max       int64
	adaptive  bool
	threshold int

	mu        sync.Mutex
	capacity  int64
	held      int64
	successes int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewAdaptiveLimiter creates a limiter admitting at most limit concurrent holders.
// Capacity grows back after 10×limit consecutive successes.
func NewAdaptiveLimiter(limit int, adaptive bool, logger *slog.Logger) *AdaptiveLimiter {
	if limit < 1 {
		limit = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AdaptiveLimiter{
		sem:       semaphore.NewWeighted(int64(limit)),
		max:       int64(limit),
		adaptive:  adaptive,
		threshold: 10 * limit,
		capacity:  int64(limit),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With("component", "adaptive-limiter"),
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *AdaptiveLimiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// Release returns a slot obtained with Acquire.
func (l *AdaptiveLimiter) Release() {
	l.sem.Release(1)
}

// Success records a completed request and may grow capacity by one.
func (l *AdaptiveLimiter) Success() {
	if !l.adaptive {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.successes++
	if l.successes < l.threshold {
		return
	}
	l.successes = 0
	// Only slots whose reservation completed can be handed back
	if l.held == 0 || l.capacity >= l.max {
		return
	}
	l.held--
	l.capacity++
	l.sem.Release(1)
	l.logger.Info("increased concurrency", "capacity", l.capacity, "max", l.max)
}

// Throttled records a throttled request and halves capacity, keeping at least one slot.
func (l *AdaptiveLimiter) Throttled() {
	if !l.adaptive {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.successes = 0
	next := max(1, l.capacity/2)
	reduce := l.capacity - next
	if reduce == 0 {
		return
	}
	l.capacity = next
	l.logger.Info("decreased concurrency after throttling", "capacity", next, "max", l.max)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.sem.Acquire(l.ctx, reduce); err != nil {
			return
		}
		l.mu.Lock()
		l.held += reduce
		l.mu.Unlock()
	}()
}

// Capacity returns the current target capacity.
func (l *AdaptiveLimiter) Capacity() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(l.capacity)
}

// Max returns the hard cap.
func (l *AdaptiveLimiter) Max() int {
	return int(l.max)
}

// Close abandons pending reservations.
func (l *AdaptiveLimiter) Close() {
	l.cancel()
	l.wg.Wait()
}
