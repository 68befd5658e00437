package ingestion

import (
	"context"
	"log/slog"

	"github.com/poiesic/vecbatch/batch"
	"github.com/poiesic/vecbatch/core"
	"github.com/poiesic/vecbatch/storage"
)

// checkpointer is a batch.Monitor that saves the row after the last batch of
// the leading run of successful batches. A failed batch freezes the
// checkpoint so a resumed run retries it.
type checkpointer struct {
	ctx    context.Context
	repo   storage.CheckpointRepository
	key    string
	runID  string
	index  string
	frozen bool
	logger *slog.Logger
}

var _ batch.Monitor = (*checkpointer)(nil)

func (c *checkpointer) Start(int, int)          {}
func (c *checkpointer) BatchStarted(core.Batch) {}

func (c *checkpointer) BatchFinished(outcome core.BatchOutcome) {
	if c.frozen {
		return
	}
	if !outcome.Success {
		c.frozen = true
		c.logger.Warn("checkpoint held before failed batch", "key", c.key, "nextRow", outcome.Batch.StartRow)
		return
	}
	err := c.repo.SaveCheckpoint(c.ctx, &storage.Checkpoint{
		Key:     c.key,
		RunID:   c.runID,
		Index:   c.index,
		NextRow: outcome.Batch.EndRow,
	})
	if err != nil {
		c.logger.Error("saving checkpoint", "key", c.key, "err", err)
	}
}

// Finish removes the checkpoint once every batch of the run succeeded.
func (c *checkpointer) Finish(summary *batch.Summary) {
	if c.frozen || !summary.Complete() {
		return
	}
	if err := c.repo.DeleteCheckpoint(c.ctx, c.key); err != nil {
		c.logger.Error("deleting checkpoint", "key", c.key, "err", err)
	}
}
