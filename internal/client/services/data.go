// Package services contains the data orchestrator: the public surface of the
// offline data layer. DataService combines the local store, the security
// layer, the sync queue and the remote source into user-facing operations
// and keeps no authoritative state of its own.
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/client/export"
	"github.com/dmitrijs2005/offlinekit/internal/client/merge"
	"github.com/dmitrijs2005/offlinekit/internal/client/models"
	"github.com/dmitrijs2005/offlinekit/internal/client/remote"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/securitylogs"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/users"
	"github.com/dmitrijs2005/offlinekit/internal/client/security"
	"github.com/dmitrijs2005/offlinekit/internal/logging"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultStaleAfter   = 24 * time.Hour
	DefaultLogRetention = 90 * 24 * time.Hour
)

// DataService is the orchestrator contract.
//
// Offline reads and writes are gated by the security layer's offline-access
// check and fail with ErrAccessDenied when it does not pass. Missing records
// read as nil rather than as an error.
type DataService interface {
	SyncUserData(ctx context.Context, userID string) (*models.UserData, error)
	GetOfflineUserData(ctx context.Context, userID string) (*models.UserData, error)
	GetAllOfflineUsers(ctx context.Context) ([]*models.UserData, error)
	UpdateProfileOffline(ctx context.Context, patch json.RawMessage) (*models.UserData, error)
	UpdateUserOffline(ctx context.Context, patch json.RawMessage) (*models.UserData, error)
	ExportData(ctx context.Context, userID string) ([]byte, error)
	ExportTo(ctx context.Context, userID string, sink export.Sink) (string, error)
	DataFreshnessSeconds(ctx context.Context, userID string) (int64, error)
	IsStale(ctx context.Context, userID string, maxAge time.Duration) (bool, error)
	RefreshIfStale(ctx context.Context, userID string, maxAge time.Duration) (bool, error)
	Metrics(ctx context.Context, userID string) (*models.Metrics, error)
	PurgeUser(ctx context.Context, userID string) error
	CleanupSecurityLogs(ctx context.Context) (int, error)
}

// Security is what the orchestrator needs from the security layer.
type Security interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, blob []byte) ([]byte, error)
	ValidateOfflineAccess(ctx context.Context) bool
	CurrentClaims(ctx context.Context) (*security.Claims, error)
	LogActivity(ctx context.Context, eventType string, details any)
	LogUserActivity(ctx context.Context, userID, eventType string, details any)
	VerifyIntegrity(blob []byte) error
	PurgeLogsOlderThan(ctx context.Context, retention time.Duration) (int, error)
}

// Queue is the part of the sync queue the orchestrator enqueues into and
// reads pending updates from.
type Queue interface {
	Enqueue(ctx context.Context, op models.QueuedOperation) (string, error)
	Pending(ctx context.Context) ([]*models.QueuedOperation, error)
	Stats(ctx context.Context) (models.QueueStats, error)
}

// Store is the part of the local store the orchestrator reads and writes.
type Store interface {
	Users() users.Repository
	SecurityLogs() securitylogs.Repository
	Stats(ctx context.Context) (models.StoreStats, error)
}

// FlagReader exposes advisory flags such as the offline-since marker.
type FlagReader interface {
	Get(key string) (time.Time, bool, error)
}

// Options configures a DataService. Zero values select LastWriteWins,
// DefaultStaleAfter, DefaultLogRetention and the wall clock.
type Options struct {
	Merge        merge.Policy
	StaleAfter   time.Duration
	LogRetention time.Duration
	Flags        FlagReader
	Now          func() time.Time
}

type dataService struct {
	store  Store
	sec    Security
	queue  Queue
	remote remote.Source
	log    logging.Logger
	opts   Options

	group singleflight.Group
}

// NewDataService wires the orchestrator. src is the remote API used by
// SyncUserData; log may be nil.
func NewDataService(store Store, sec Security, queue Queue, src remote.Source, opts Options, log logging.Logger) DataService {
	if opts.Merge == nil {
		opts.Merge = merge.LastWriteWins{}
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.LogRetention <= 0 {
		opts.LogRetention = DefaultLogRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &dataService{
		store:  store,
		sec:    sec,
		queue:  queue,
		remote: src,
		log:    logging.OrNop(log).With("component", "orchestrator"),
		opts:   opts,
	}
}

func (s *dataService) now() time.Time {
	return s.opts.Now().UTC()
}
