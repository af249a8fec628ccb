package models

import (
	"encoding/json"
	"time"
)

// LogSource tells whether an audited action happened online or offline.
type LogSource string

const (
	SourceOnline  LogSource = "online"
	SourceOffline LogSource = "offline"
)

// Security log event types emitted by the data layer.
const (
	EventOfflineAccessDenied  = "offline_access_denied"
	EventOfflineRead          = "offline_read"
	EventOfflineUpdate        = "offline_update"
	EventDataSynced           = "data_synced"
	EventSyncFailed           = "sync_failed"
	EventDataExported         = "data_exported"
	EventDataPurged           = "data_purged"
	EventDecryptionFailed     = "decryption_failed"
	EventIntegrityFailed      = "integrity_check_failed"
	EventOperationDeadLetter  = "operation_dead_lettered"
	EventOperationRequeued    = "operation_requeued"
	EventSecurityLogRetention = "security_log_retention"
)

// SecurityLogEntry is an append-only audit record.
type SecurityLogEntry struct {
	ID            int64           `json:"id"`
	UserID        string          `json:"user_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	Details       json.RawMessage `json:"details,omitempty"`
	Source        LogSource       `json:"source"`
	SessionID     string          `json:"session_id,omitempty"`
	NetworkOrigin string          `json:"network_origin,omitempty"`
	ClientAgent   string          `json:"client_agent,omitempty"`
}
