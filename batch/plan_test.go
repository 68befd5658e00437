package batch

import (
	"testing"

	"github.com/poiesic/vecbatch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name  string
		total int
		cfg   Config
		want  []core.Batch
	}{
		{
			name:  "uneven tail",
			total: 105,
			cfg:   Config{BatchSize: 40},
			want:  []core.Batch{{Index: 0, StartRow: 0, EndRow: 40}, {Index: 1, StartRow: 40, EndRow: 80}, {Index: 2, StartRow: 80, EndRow: 105}},
		},
		{
			name:  "skip and limit",
			total: 100,
			cfg:   Config{BatchSize: 10, SkipRows: 15, LimitRows: 25},
			want:  []core.Batch{{Index: 0, StartRow: 15, EndRow: 25}, {Index: 1, StartRow: 25, EndRow: 35}, {Index: 2, StartRow: 35, EndRow: 40}},
		},
		{
			name:  "limit past end",
			total: 12,
			cfg:   Config{BatchSize: 5, SkipRows: 2, LimitRows: 100},
			want:  []core.Batch{{Index: 0, StartRow: 2, EndRow: 7}, {Index: 1, StartRow: 7, EndRow: 12}},
		},
		{
			name:  "exact multiple",
			total: 20,
			cfg:   Config{BatchSize: 10},
			want:  []core.Batch{{Index: 0, StartRow: 0, EndRow: 10}, {Index: 1, StartRow: 10, EndRow: 20}},
		},
		{
			name:  "skip past end",
			total: 10,
			cfg:   Config{BatchSize: 3, SkipRows: 10},
			want:  nil,
		},
		{
			name:  "empty input",
			total: 0,
			cfg:   Config{BatchSize: 3},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Plan(tt.total, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlan_PartitionsRange(t *testing.T) {
	for _, size := range []int{1, 3, 7, 50, 200} {
		batches, err := Plan(137, Config{BatchSize: size, SkipRows: 4})
		require.NoError(t, err)

		next := 4
		for i, b := range batches {
			assert.Equal(t, i, b.Index)
			assert.Equal(t, next, b.StartRow)
			assert.LessOrEqual(t, b.Len(), size)
			if i < len(batches)-1 {
				assert.Equal(t, size, b.Len())
			}
			next = b.EndRow
		}
		assert.Equal(t, 137, next)
	}
}

func TestPlan_InvalidConfig(t *testing.T) {
	for _, cfg := range []Config{
		{BatchSize: 0},
		{BatchSize: -1},
		{BatchSize: 10, SkipRows: -1},
		{BatchSize: 10, LimitRows: -5},
	} {
		_, err := Plan(100, cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
}
