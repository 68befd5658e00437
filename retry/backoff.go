package retry

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// DefaultMaxDelay caps exponential backoff.
const DefaultMaxDelay = 60 * time.Second

// Backoff returns the delay to wait before the n-th retry (n starts at 1).
type Backoff func(retry int) time.Duration

// Strategy names a backoff family.
type Strategy string

const (
	StrategyNone        Strategy = "none"
	StrategyImmediate   Strategy = "immediate"
	StrategyFixed       Strategy = "fixed"
	StrategyExponential Strategy = "exponential"
	StrategyJittered    Strategy = "jittered"
)

// ParseStrategy converts a name such as "exponential" into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	switch s {
	case StrategyNone, StrategyImmediate, StrategyFixed, StrategyExponential, StrategyJittered:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Immediate retries without waiting.
func Immediate() Backoff {
	return func(int) time.Duration { return 0 }
}

// Fixed waits the same delay before every retry.
func Fixed(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// Exponential waits base * 2^(retry-1), capped at limit.
// A limit of zero disables the cap.
func Exponential(base, limit time.Duration) Backoff {
	return func(retry int) time.Duration {
		if retry < 1 {
			retry = 1
		}
		delay := base
		for i := 1; i < retry; i++ {
			delay *= 2
			if limit > 0 && delay >= limit {
				return limit
			}
		}
		if limit > 0 && delay > limit {
			return limit
		}
		return delay
	}
}

// Jittered waits a random delay in [lo, hi).
func Jittered(lo, hi time.Duration) Backoff {
	return func(int) time.Duration {
		if hi <= lo {
			return lo
		}
		return lo + rand.N(hi-lo)
	}
}

// NewPolicy builds a Policy for a named strategy.
// base is the initial (exponential) or constant (fixed) delay.
// StrategyNone always yields a single attempt.
func NewPolicy(strategy Strategy, maxAttempts int, base time.Duration) Policy {
	p := Policy{MaxAttempts: maxAttempts}
	switch strategy {
	case StrategyNone:
		p.MaxAttempts = 1
		p.Backoff = Immediate()
	case StrategyImmediate:
		p.Backoff = Immediate()
	case StrategyFixed:
		p.Backoff = Fixed(base)
	case StrategyJittered:
		p.Backoff = Jittered(500*time.Millisecond, 2*time.Second)
	default:
		p.Backoff = Exponential(base, DefaultMaxDelay)
	}
	return p
}
