package batch

import (
	"fmt"

	"github.com/poiesic/vecbatch/core"
)

// Plan splits the rows [SkipRows, min(SkipRows+LimitRows, total)) into
// contiguous batches of BatchSize rows. Only the last batch may be shorter.
// A SkipRows at or past total yields no batches.
func Plan(total int, cfg Config) ([]core.Batch, error) {
	if total < 0 {
		return nil, fmt.Errorf("%w: total must not be negative, got %d", ErrInvalidConfig, total)
	}
	if cfg.BatchSize <= 0 || cfg.SkipRows < 0 || cfg.LimitRows < 0 {
		return nil, fmt.Errorf("%w: batch size %d, skip %d, limit %d", ErrInvalidConfig, cfg.BatchSize, cfg.SkipRows, cfg.LimitRows)
	}

	start, end := Range(total, cfg.SkipRows, cfg.LimitRows)
	if start >= end {
		return nil, nil
	}

	batches := make([]core.Batch, 0, (end-start+cfg.BatchSize-1)/cfg.BatchSize)
	for row := start; row < end; row += cfg.BatchSize {
		b := core.Batch{
			Index:    len(batches),
			StartRow: row,
			EndRow:   min(row+cfg.BatchSize, end),
		}
		if err := core.ValidateBatch(b); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}

// Range returns the effective half-open row range for skip and limit over total rows.
func Range(total, skip, limit int) (int, int) {
	end := total
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	if skip > end {
		return end, end
	}
	return skip, end
}
