// Package users persists cached user records (the "users" collection of the
// local store). Records are keyed by user id with secondary indexes on the
// email address and the last synchronization time.
package users

import (
	"context"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
)

// Indexes supported by GetByIndex.
const (
	IndexEmail      = "email"
	IndexLastSyncAt = "last_sync_at"
)

type Repository interface {
	// Put upserts by id. The stored LastSyncAt never moves backwards and
	// CreatedAt keeps its first value.
	Put(ctx context.Context, r *models.CachedUserRecord) error

	// Get returns (nil, nil) when the id is unknown.
	Get(ctx context.Context, id string) (*models.CachedUserRecord, error)

	GetAll(ctx context.Context) ([]*models.CachedUserRecord, error)

	// GetByIndex performs an exact-match lookup on one of the indexes above.
	GetByIndex(ctx context.Context, index string, value any) ([]*models.CachedUserRecord, error)

	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, id string) error
}
