package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponential(t *testing.T) {
	b := Exponential(time.Second, 60*time.Second)
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 32 * time.Second},
		{7, 60 * time.Second},
		{20, 60 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b(tt.retry), "retry %d", tt.retry)
	}
}

func TestJittered(t *testing.T) {
	b := Jittered(500*time.Millisecond, 2*time.Second)
	for i := 1; i < 50; i++ {
		d := b(i)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.Less(t, d, 2*time.Second)
	}
}

func TestFixedAndImmediate(t *testing.T) {
	assert.Equal(t, time.Second, Fixed(time.Second)(7))
	assert.Equal(t, time.Duration(0), Immediate()(3))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy(" Exponential ")
	require.NoError(t, err)
	assert.Equal(t, StrategyExponential, s)

	_, err = ParseStrategy("fibonacci")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestNewPolicy(t *testing.T) {
	none := NewPolicy(StrategyNone, 5, time.Second)
	assert.Equal(t, 1, none.MaxAttempts)

	fixed := NewPolicy(StrategyFixed, 4, 250*time.Millisecond)
	assert.Equal(t, 4, fixed.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, fixed.Backoff(3))

	exp := NewPolicy(StrategyExponential, 5, 5*time.Second)
	assert.Equal(t, 10*time.Second, exp.Backoff(2))
}
