package syncqueue

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
)

// Report summarizes one drain pass.
type Report struct {
	// Skipped is set when another drain was already running; nothing else
	// in the report is meaningful then.
	Skipped      bool
	Attempted    int
	Succeeded    int
	Failed       int
	Deferred     int
	DeadLettered int
	Errors       []error
}

// Drain replays every pending operation once. Failures are recorded on the
// operation and never abort the pass. Cancellation is honoured between
// operations only; the returned error is then ctx.Err().
func (q *Queue) Drain(ctx context.Context) (Report, error) {
	return q.drain(ctx, false)
}

// DrainHighPriorityOnly is Drain restricted to PriorityHigh operations.
func (q *Queue) DrainHighPriorityOnly(ctx context.Context) (Report, error) {
	return q.drain(ctx, true)
}

func (q *Queue) drain(ctx context.Context, highOnly bool) (Report, error) {
	if !q.draining.CompareAndSwap(false, true) {
		q.log.Debug(ctx, "drain already in progress")
		return Report{Skipped: true}, nil
	}
	defer q.draining.Store(false)

	var report Report

	ops, err := q.store.Operations().GetAll(ctx)
	if err != nil {
		return report, fmt.Errorf("load pending operations: %w", err)
	}
	slices.SortStableFunc(ops, func(a, b *models.QueuedOperation) int {
		if c := cmp.Compare(a.Priority.Rank(), b.Priority.Rank()); c != 0 {
			return c
		}
		if c := a.EnqueuedAt.Compare(b.EnqueuedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	dead, err := q.store.DeadLetters().GetAll(ctx)
	if err != nil {
		return report, fmt.Errorf("load dead letters: %w", err)
	}

	pending := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		pending[op.ID] = struct{}{}
	}
	deadIDs := make(map[string]struct{}, len(dead))
	for _, dl := range dead {
		deadIDs[dl.Operation.ID] = struct{}{}
	}

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			q.log.Info(ctx, "drain interrupted", "attempted", report.Attempted)
			return report, err
		}
		if highOnly && op.Priority != models.PriorityHigh {
			continue
		}
		if blockedBy(op, pending, deadIDs) != "" {
			report.Deferred++
			continue
		}

		report.Attempted++
		// An attempt that has started is always recorded, even if ctx ends.
		bookCtx := context.WithoutCancel(ctx)
		if err := q.replay(ctx, op); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, err)
			outcome, ferr := q.recordFailure(bookCtx, op, err)
			if ferr != nil {
				report.Errors = append(report.Errors, ferr)
				continue
			}
			switch outcome {
			case deadLettered:
				report.DeadLettered++
				delete(pending, op.ID)
				deadIDs[op.ID] = struct{}{}
			case gone:
				delete(pending, op.ID)
			}
			continue
		}

		if err := q.store.Operations().Delete(bookCtx, op.ID); err != nil {
			// Already acknowledged remotely; the next pass replays it again.
			report.Errors = append(report.Errors, fmt.Errorf("remove replayed operation %s: %w", op.ID, err))
			continue
		}
		report.Succeeded++
		delete(pending, op.ID)
	}

	if report.Attempted > 0 || report.Deferred > 0 {
		q.log.Info(ctx, "drain finished",
			"high_only", highOnly,
			"attempted", report.Attempted,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"deferred", report.Deferred,
			"dead_lettered", report.DeadLettered)
	}
	return report, nil
}

// blockedBy returns the first dependency of op that is still queued or was
// dead-lettered, or "".
func blockedBy(op *models.QueuedOperation, pending, dead map[string]struct{}) string {
	for _, dep := range op.DependsOn {
		if dep == op.ID {
			continue
		}
		if _, ok := pending[dep]; ok {
			return dep
		}
		if _, ok := dead[dep]; ok {
			return dep
		}
	}
	return ""
}

// replay sends op once and records the attempt in the history ring.
func (q *Queue) replay(ctx context.Context, op *models.QueuedOperation) error {
	started := q.now()
	err := q.transport.Replay(ctx, op)
	res := models.SyncResult{
		OperationID: op.ID,
		Success:     err == nil,
		StartedAt:   started,
		Duration:    q.now().Sub(started),
	}
	if err != nil {
		res.Err = err.Error()
		err = fmt.Errorf("%w: %s %s: %w", ErrReplayFailure, string(op.Kind), op.Endpoint, err)
	}
	q.history.add(res)
	q.log.Debug(ctx, "operation replayed", "id", op.ID, "success", err == nil)
	return err
}

// failureOutcome says what recordFailure did with a failed operation.
type failureOutcome int

const (
	kept failureOutcome = iota
	deadLettered
	// gone means the operation left the queue while it was being replayed,
	// typically delivered by a concurrent Retry. Nothing is written back.
	gone
)

// recordFailure bumps the retry count, or dead-letters op when the budget is
// spent. Both writes only touch a row that is still queued.
func (q *Queue) recordFailure(ctx context.Context, op *models.QueuedOperation, cause error) (failureOutcome, error) {
	failed := *op
	failed.LastAttemptAt = q.now()
	failed.LastError = cause.Error()

	if !op.Exhausted() {
		failed.RetryCount++
		found, err := q.store.Operations().RecordFailure(ctx, &failed)
		if err != nil {
			return kept, fmt.Errorf("persist retry count for %s: %w", op.ID, err)
		}
		if !found {
			q.log.Debug(ctx, "failed operation already left the queue", "id", op.ID)
			return gone, nil
		}
		return kept, nil
	}

	dl := &models.DeadLetter{Operation: failed, Reason: cause.Error(), FailedAt: failed.LastAttemptAt}
	moved, err := q.store.MoveToDeadLetter(ctx, dl)
	if err != nil {
		return kept, fmt.Errorf("dead-letter %s: %w", op.ID, err)
	}
	if !moved {
		q.log.Debug(ctx, "exhausted operation already left the queue", "id", op.ID)
		return gone, nil
	}
	q.log.Warn(ctx, "operation dead-lettered", "id", op.ID, "endpoint", op.Endpoint, "retries", op.RetryCount, "reason", cause.Error())
	if q.auditor != nil {
		q.auditor.LogUserActivity(ctx, op.UserID, models.EventOperationDeadLetter, map[string]any{
			"operation_id": op.ID,
			"kind":         string(op.Kind),
			"endpoint":     op.Endpoint,
			"retry_count":  op.RetryCount,
			"reason":       cause.Error(),
		})
	}
	return deadLettered, nil
}

// Retry replays one operation immediately, outside the drain cycle. Success
// removes it; failure is returned wrapped in ErrReplayFailure and leaves the
// stored operation untouched.
func (q *Queue) Retry(ctx context.Context, id string) error {
	op, err := q.store.Operations().Get(ctx, id)
	if err != nil {
		return err
	}
	if op == nil {
		return fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	if err := q.replay(ctx, op); err != nil {
		return err
	}
	return q.store.Operations().Delete(ctx, id)
}
