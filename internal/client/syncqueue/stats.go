package syncqueue

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
)

// Stats reports queue depth, dead letters and the recent success rate.
func (q *Queue) Stats(ctx context.Context) (models.QueueStats, error) {
	stats := models.QueueStats{ByPriority: map[models.Priority]int{}}

	ops, err := q.store.Operations().GetAll(ctx)
	if err != nil {
		return stats, err
	}
	stats.Pending = len(ops)
	for _, op := range ops {
		stats.ByPriority[op.Priority]++
		if stats.OldestEnqueuedAt == nil || op.EnqueuedAt.Before(*stats.OldestEnqueuedAt) {
			t := op.EnqueuedAt
			stats.OldestEnqueuedAt = &t
		}
		if next := op.NextAttemptAt(); stats.NextAttemptAt == nil || next.Before(*stats.NextAttemptAt) {
			stats.NextAttemptAt = &next
		}
	}

	if stats.DeadLettered, err = q.store.DeadLetters().Count(ctx); err != nil {
		return stats, err
	}
	stats.RecentAttempts, stats.RecentSuccesses, stats.SuccessRate = q.history.rate()
	stats.Draining = q.draining.Load()
	return stats, nil
}

// DeadLetters lists operations that exhausted their retry budget.
func (q *Queue) DeadLetters(ctx context.Context) ([]*models.DeadLetter, error) {
	return q.store.DeadLetters().GetAll(ctx)
}

// Requeue gives a dead-lettered operation a fresh retry budget.
func (q *Queue) Requeue(ctx context.Context, id string) error {
	op, err := q.store.Requeue(ctx, id)
	if err != nil {
		return err
	}
	if op == nil {
		return fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	q.log.Info(ctx, "operation requeued", "id", id)
	if q.auditor != nil {
		q.auditor.LogUserActivity(ctx, op.UserID, models.EventOperationRequeued, map[string]any{
			"operation_id": id,
			"endpoint":     op.Endpoint,
		})
	}
	return nil
}
