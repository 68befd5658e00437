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

package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int

	// Backoff returns the delay before the given retry (1 = first retry).
	// Nil means Exponential(time.Second, DefaultMaxDelay).
	Backoff Backoff

	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error that is not marked Permanent.
	Retryable func(error) bool

	// OnRetry is called before sleeping ahead of a retry.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Validate checks that the policy can be executed.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	return nil
}

// ShouldRetry reports whether err is retryable under the policy.
func (p Policy) ShouldRetry(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p Policy) delay(retry int) time.Duration {
	if p.Backoff == nil {
		return Exponential(time.Second, DefaultMaxDelay)(retry)
	}
	return p.Backoff(retry)
}

// Do runs operation until it succeeds, fails with a non-retryable error,
// attempts are exhausted or ctx is done.
// It returns the number of attempts made and the error from the last attempt.
func Do(ctx context.Context, policy Policy, operation func(ctx context.Context) error) (int, error) {
	if err := policy.Validate(); err != nil {
		return 0, err
	}

	var lastErr error
	attempt := 0
	for attempt < policy.MaxAttempts {
		// Check context before attempting
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt, errors.Join(lastErr, err)
			}
			return attempt, err
		}

		attempt++
		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return attempt, nil
		}

		if !policy.ShouldRetry(lastErr) {
			return attempt, unwrapPermanent(lastErr)
		}

		// Don't sleep after the last attempt
		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.delay(attempt)
		slog.Debug("operation failed, will retry",
			"attempt", attempt, "maxAttempts", policy.MaxAttempts, "delay", delay, "error", lastErr)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, lastErr, delay)
		}
		if delay <= 0 {
			continue
		}

		// Sleep with context awareness
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}

	return attempt, lastErr
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so that Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func unwrapPermanent(err error) error {
	var p *permanentError
	if errors.As(err, &p) && p == err {
		return p.err
	}
	return err
}
