package batch

import (
	"io"

	"github.com/poiesic/vecbatch/core"
)

// Monitor observes a batch run. Calls are made from the goroutine running
// the processor, in batch order.
type Monitor interface {
	Start(batches, rows int)
	BatchStarted(b core.Batch)
	BatchFinished(outcome core.BatchOutcome)
	Finish(summary *Summary)
}

// NoopMonitor ignores every event.
type NoopMonitor struct{}

func (NoopMonitor) Start(int, int)                  {}
func (NoopMonitor) BatchStarted(core.Batch)         {}
func (NoopMonitor) BatchFinished(core.BatchOutcome) {}
func (NoopMonitor) Finish(*Summary)                 {}

// ProgressMonitor writes a single updating progress line to a writer.
type ProgressMonitor struct {
	writer  io.Writer
	tracker *ProgressTracker
}

// NewProgressMonitor creates a monitor that reports to w after every batch.
func NewProgressMonitor(w io.Writer) *ProgressMonitor {
	return &ProgressMonitor{writer: w}
}

func (m *ProgressMonitor) Start(_, rows int) {
	m.tracker = NewProgressTracker(m.writer, rows, 1)
	m.tracker.Start()
}

func (m *ProgressMonitor) BatchStarted(core.Batch) {}

func (m *ProgressMonitor) BatchFinished(outcome core.BatchOutcome) {
	if m.tracker != nil {
		m.tracker.Increment(outcome.Batch.Len())
	}
}

func (m *ProgressMonitor) Finish(*Summary) {
	if m.tracker != nil {
		m.tracker.Finish()
	}
}

// MultiMonitor fans events out to several monitors.
type MultiMonitor []Monitor

func (mm MultiMonitor) Start(batches, rows int) {
	for _, m := range mm {
		m.Start(batches, rows)
	}
}

func (mm MultiMonitor) BatchStarted(b core.Batch) {
	for _, m := range mm {
		m.BatchStarted(b)
	}
}

func (mm MultiMonitor) BatchFinished(outcome core.BatchOutcome) {
	for _, m := range mm {
		m.BatchFinished(outcome)
	}
}

func (mm MultiMonitor) Finish(summary *Summary) {
	for _, m := range mm {
		m.Finish(summary)
	}
}
