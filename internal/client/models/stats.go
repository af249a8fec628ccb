package models

import "time"

// SyncResult records one replay attempt. Kept in memory only.
type SyncResult struct {
	OperationID string        `json:"operation_id"`
	Success     bool          `json:"success"`
	Err         string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// QueueStats is a point-in-time view of the sync queue.
type QueueStats struct {
	Pending          int              `json:"pending"`
	ByPriority       map[Priority]int `json:"by_priority"`
	DeadLettered     int              `json:"dead_lettered"`
	OldestEnqueuedAt *time.Time       `json:"oldest_enqueued_at,omitempty"`
	NextAttemptAt    *time.Time       `json:"next_attempt_at,omitempty"`
	RecentAttempts   int              `json:"recent_attempts"`
	RecentSuccesses  int              `json:"recent_successes"`
	// SuccessRate is RecentSuccesses/RecentAttempts, or 1 with no history.
	SuccessRate float64 `json:"success_rate"`
	Draining    bool    `json:"draining"`
}

// CollectionStats is the size of one local-store collection.
type CollectionStats struct {
	Count int   `json:"count"`
	Bytes int64 `json:"approx_bytes"`
}

// StoreStats reports per-collection counts and an approximate byte size.
type StoreStats struct {
	Collections map[string]CollectionStats `json:"collections"`
	TotalBytes  int64                      `json:"approx_total_bytes"`
	// SchemaVersion is the applied migration version.
	SchemaVersion int64 `json:"schema_version"`
}

// Metrics is the combined observability view for one user.
type Metrics struct {
	UserID       string  `json:"user_id"`
	QueueDepth   int     `json:"queue_depth"`
	DeadLettered int     `json:"dead_lettered"`
	SuccessRate  float64 `json:"success_rate"`
	// FreshnessSeconds is -1 when the user has no cached copy.
	FreshnessSeconds int64      `json:"freshness_seconds"`
	IsStale          bool       `json:"is_stale"`
	Store            StoreStats `json:"store"`
	OfflineSince     *time.Time `json:"offline_since,omitempty"`
	CollectedAt      time.Time  `json:"collected_at"`
}
