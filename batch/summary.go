package batch

import (
	"time"

	"github.com/poiesic/vecbatch/core"
)

// Summary reports the result of a batch run.
type Summary struct {
	Outcomes []core.BatchOutcome

	// Batches is the number of planned batches; Succeeded+Failed may be lower
	// when the run was interrupted or aborted.
	Batches       int
	Succeeded     int
	Failed        int
	RowsProcessed int
	RowsFailed    int

	// StartRow and EndRow bound the planned range.
	StartRow int
	EndRow   int

	// LastCompletedRow is the last row of the last batch that finished, or -1.
	LastCompletedRow int

	// ResumeSkipRows is the skip value that resumes the run after the last
	// finished batch.
	ResumeSkipRows int

	Interrupted bool
	Aborted     bool
	Duration    time.Duration
}

func newSummary(batches []core.Batch, start, end int) *Summary {
	return &Summary{
		Outcomes:         make([]core.BatchOutcome, 0, len(batches)),
		Batches:          len(batches),
		StartRow:         start,
		EndRow:           end,
		LastCompletedRow: -1,
		ResumeSkipRows:   start,
	}
}

func (s *Summary) record(outcome core.BatchOutcome) {
	s.Outcomes = append(s.Outcomes, outcome)
	if outcome.Success {
		s.Succeeded++
	} else {
		s.Failed++
	}
	s.RowsProcessed += outcome.Processed
	s.RowsFailed += outcome.Failed
	s.LastCompletedRow = outcome.Batch.EndRow - 1
	s.ResumeSkipRows = outcome.Batch.EndRow
}

// FailedRanges returns the batches that did not succeed, in row order.
func (s *Summary) FailedRanges() []core.Batch {
	var failed []core.Batch
	for _, o := range s.Outcomes {
		if !o.Success {
			failed = append(failed, o.Batch)
		}
	}
	return failed
}

// FailureRatio returns failed batches over finished batches.
func (s *Summary) FailureRatio() float64 {
	finished := s.Succeeded + s.Failed
	if finished == 0 {
		return 0
	}
	return float64(s.Failed) / float64(finished)
}

// Complete reports whether every planned batch finished successfully.
func (s *Summary) Complete() bool {
	return !s.Interrupted && !s.Aborted && s.Failed == 0 && s.Succeeded == s.Batches
}
