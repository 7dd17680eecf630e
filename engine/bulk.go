package engine

import (
	"context"
	"log/slog"

	"github.com/loomtask/loom/task"
)

// BulkResult is the outcome of one item in a bulk update.
type BulkResult struct {
	ID   string
	Task *task.Task // nil when Err is set
	Err  error
}

// BulkUpdate applies the patch to every id in ids, in order. Each item
// succeeds or fails on its own: a failed item never blocks or rolls back
// the others, and the returned slice carries one outcome per input id.
// Status changes route through the workflow state machine per item.
//
// The returned error is non-nil only when the context is cancelled; the
// results then cover the items fully processed before cancellation. No lock
// is held across items.
func (e *Engine) BulkUpdate(ctx context.Context, ids []string, patch task.Patch) ([]BulkResult, error) {
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		t, err := e.Update(ctx, id, patch)
		if err != nil {
			e.logger.Debug("bulk item failed",
				slog.String("id", id), slog.Any("err", err))
			results = append(results, BulkResult{ID: id, Err: err})
			continue
		}
		results = append(results, BulkResult{ID: id, Task: t})
	}
	return results, nil
}
