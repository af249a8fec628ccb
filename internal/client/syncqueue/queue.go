package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/deadletters"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/operations"
	"github.com/dmitrijs2005/offlinekit/internal/logging"
	"github.com/google/uuid"
)

const (
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = time.Second
	DefaultHistorySize   = 100
	DefaultDrainInterval = 5 * time.Minute
)

// Store is the part of the local store the queue works on.
type Store interface {
	Operations() operations.Repository
	DeadLetters() deadletters.Repository
	MoveToDeadLetter(ctx context.Context, dl *models.DeadLetter) (bool, error)
	Requeue(ctx context.Context, id string) (*models.QueuedOperation, error)
}

// Auditor records security-relevant queue events.
type Auditor interface {
	LogUserActivity(ctx context.Context, userID, eventType string, details any)
}

// Options tunes a Queue. Zero values fall back to the Default* constants.
type Options struct {
	// DefaultMaxRetries is the retry budget of operations enqueued without one.
	DefaultMaxRetries int
	// DefaultRetryDelay is recorded on operations enqueued without a delay.
	// Replay timing is driven by Run's triggers, not by this value.
	DefaultRetryDelay time.Duration
	// HistorySize bounds the in-memory ring of replay attempts behind Stats.
	HistorySize int
	// DrainInterval is the period of the background drain in Run.
	DrainInterval time.Duration
	Now           func() time.Time
}

func (o *Options) setDefaults() {
	if o.DefaultMaxRetries <= 0 {
		o.DefaultMaxRetries = DefaultMaxRetries
	}
	if o.DefaultRetryDelay <= 0 {
		o.DefaultRetryDelay = DefaultRetryDelay
	}
	if o.HistorySize <= 0 {
		o.HistorySize = DefaultHistorySize
	}
	if o.DrainInterval <= 0 {
		o.DrainInterval = DefaultDrainInterval
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Queue is the durable outbox of mutations made while offline. Operations
// live in the store's operations collection until a replay succeeds or they
// run out of retries and move to dead letters. At most one drain runs at a
// time per Queue; a concurrent Drain call returns a skipped Report.
type Queue struct {
	store     Store
	transport Transport
	auditor   Auditor
	log       logging.Logger
	opts      Options

	draining atomic.Bool
	history  *history
}

// NewQueue builds a queue. auditor may be nil.
func NewQueue(store Store, transport Transport, auditor Auditor, opts Options, log logging.Logger) *Queue {
	opts.setDefaults()
	return &Queue{
		store:     store,
		transport: transport,
		auditor:   auditor,
		log:       logging.OrNop(log).With("component", "syncqueue"),
		opts:      opts,
		history:   newHistory(opts.HistorySize),
	}
}

func (q *Queue) now() time.Time {
	return q.opts.Now().UTC()
}

// Enqueue persists op and returns its new id. ID and EnqueuedAt are always
// assigned here; Priority, MaxRetries and RetryDelay get defaults when unset.
func (q *Queue) Enqueue(ctx context.Context, op models.QueuedOperation) (string, error) {
	if _, err := op.Kind.Method(); err != nil {
		return "", err
	}
	if op.Endpoint == "" {
		return "", errors.New("operation without endpoint")
	}

	op.ID = uuid.NewString()
	op.EnqueuedAt = q.now()
	op.RetryCount = 0
	op.LastAttemptAt = time.Time{}
	op.LastError = ""
	if op.Priority == "" {
		op.Priority = models.PriorityNormal
	}
	if op.MaxRetries <= 0 {
		op.MaxRetries = q.opts.DefaultMaxRetries
	}
	if op.RetryDelay <= 0 {
		op.RetryDelay = q.opts.DefaultRetryDelay
	}

	if err := q.store.Operations().Put(ctx, &op); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	q.log.Debug(ctx, "operation enqueued", "id", op.ID, "kind", string(op.Kind), "endpoint", op.Endpoint, "priority", string(op.Priority))
	return op.ID, nil
}

// Pending returns the queued operations in drain order.
func (q *Queue) Pending(ctx context.Context) ([]*models.QueuedOperation, error) {
	return q.store.Operations().GetAll(ctx)
}

// Recent returns the retained replay attempts, oldest first.
func (q *Queue) Recent() []models.SyncResult {
	return q.history.recent()
}
