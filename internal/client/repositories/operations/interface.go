// Package operations persists the pending-operation collection that backs
// the sync queue. Records are keyed by operation id with secondary indexes
// on enqueue time and priority.
package operations

import (
	"context"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
)

const (
	IndexEnqueuedAt = "enqueued_at"
	IndexPriority   = "priority"
)

type Repository interface {
	// Put upserts by id.
	Put(ctx context.Context, op *models.QueuedOperation) error

	// Get returns (nil, nil) when the id is unknown.
	Get(ctx context.Context, id string) (*models.QueuedOperation, error)

	// GetAll returns every pending operation ordered by (priority, enqueued_at, id).
	GetAll(ctx context.Context) ([]*models.QueuedOperation, error)

	// GetByIndex is an exact-match lookup; results keep the GetAll order.
	GetByIndex(ctx context.Context, index string, value any) ([]*models.QueuedOperation, error)

	// RecordFailure writes the retry bookkeeping of op (retry count, last
	// attempt and last error) onto the stored row. It reports false without
	// error when op is no longer queued.
	RecordFailure(ctx context.Context, op *models.QueuedOperation) (bool, error)

	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, id string) error

	// Remove deletes id and reports whether it was queued.
	Remove(ctx context.Context, id string) (bool, error)

	Count(ctx context.Context) (int, error)
}
