// Package deadletters keeps queued operations that exhausted their retry
// budget, pending manual requeue or removal.
package deadletters

import (
	"context"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
)

type Repository interface {
	Put(ctx context.Context, dl *models.DeadLetter) error
	// Get returns (nil, nil) when the id is unknown.
	Get(ctx context.Context, id string) (*models.DeadLetter, error)
	// GetAll returns dead letters ordered by failure time.
	GetAll(ctx context.Context) ([]*models.DeadLetter, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
