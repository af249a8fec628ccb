// Package securitylogs persists the append-only audit trail. Entries get a
// monotonic store-assigned id and are only removed by age-based retention
// (see store.PurgeOlderThan).
package securitylogs

import (
	"context"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
)

const (
	IndexUserID    = "user_id"
	IndexTimestamp = "timestamp"
)

type Repository interface {
	// Append stores e, assigns e.ID and returns it.
	Append(ctx context.Context, e *models.SecurityLogEntry) (int64, error)
	Get(ctx context.Context, id int64) (*models.SecurityLogEntry, error)
	// GetAll returns entries in id order.
	GetAll(ctx context.Context) ([]*models.SecurityLogEntry, error)
	GetByIndex(ctx context.Context, index string, value any) ([]*models.SecurityLogEntry, error)
	Count(ctx context.Context) (int, error)
}
