// Package models defines the data kept by the offline data layer: cached
// user records, queued operations, dead letters and security log entries,
// plus the derived read-only aggregates used for observability.
package models

import (
	"encoding/json"
	"time"
)

// CachedUserRecord is the locally persisted copy of one user's data.
// User and Profile hold sealed (encrypted) JSON as stored on disk.
type CachedUserRecord struct {
	// ID is the opaque user identifier (primary key).
	ID string
	// Email is kept in clear text for the unique email index.
	Email string

	User    []byte
	Profile []byte

	// SecurityLogs references SecurityLogEntry ids recorded for this user.
	SecurityLogs []int64

	// Version is bumped on every local edit and every resync.
	Version int64

	LastSyncAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserData is the decrypted view of a CachedUserRecord handed to callers.
type UserData struct {
	ID           string          `json:"id"`
	Email        string          `json:"email,omitempty"`
	User         json.RawMessage `json:"user"`
	Profile      json.RawMessage `json:"profile"`
	SecurityLogs []int64         `json:"security_logs"`
	Version      int64           `json:"version"`
	LastSyncAt   time.Time       `json:"last_sync"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
