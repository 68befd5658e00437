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

package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/vecbatch/retry"
)

// FailurePolicy decides what happens after a batch exhausts its attempts.
type FailurePolicy int

const (
	// Continue records the failed batch and moves on to the next one.
	Continue FailurePolicy = iota
	// Abort stops processing at the first failed batch.
	Abort
)

func (p FailurePolicy) String() string {
	if p == Abort {
		return "abort"
	}
	return "continue"
}

// ParseFailurePolicy converts "continue" or "abort" to a FailurePolicy.
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "continue":
		return Continue, nil
	case "abort":
		return Abort, nil
	default:
		return Continue, fmt.Errorf("%w: unknown failure policy %q", ErrInvalidConfig, name)
	}
}

// Config holds configuration for a batch run.
type Config struct {
	// BatchSize is the number of rows per batch
	BatchSize int

	// SkipRows is the number of leading rows to skip
	SkipRows int

	// LimitRows caps the number of rows processed after SkipRows. Zero means no limit.
	LimitRows int

	// MaxAttempts is the number of attempts per batch, including the first
	MaxAttempts int

	// WaitTime is the base delay for exponential backoff between attempts
	WaitTime time.Duration

	// Backoff overrides the exponential schedule derived from WaitTime
	Backoff retry.Backoff

	// Retryable classifies batch errors. Nil retries every error.
	Retryable func(error) bool

	// FailurePolicy decides what happens after a batch exhausts its attempts
	FailurePolicy FailurePolicy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:   50,
		MaxAttempts: 5,
		WaitTime:    5 * time.Second,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	case c.SkipRows < 0:
		return fmt.Errorf("%w: skip rows must not be negative, got %d", ErrInvalidConfig, c.SkipRows)
	case c.LimitRows < 0:
		return fmt.Errorf("%w: limit rows must not be negative, got %d", ErrInvalidConfig, c.LimitRows)
	case c.MaxAttempts <= 0:
		return fmt.Errorf("%w: max attempts must be positive, got %d", ErrInvalidConfig, c.MaxAttempts)
	case c.WaitTime < 0:
		return fmt.Errorf("%w: wait time must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) policy() retry.Policy {
	backoff := c.Backoff
	if backoff == nil {
		backoff = retry.Exponential(c.WaitTime, retry.DefaultMaxDelay)
	}
	return retry.Policy{
		MaxAttempts: c.MaxAttempts,
		Backoff:     backoff,
		Retryable:   c.Retryable,
	}
}
