package models

import (
	"encoding/json"
	"time"
)

const (
	ExportFormat  = "json"
	ExportSource  = "offline"
	ExportVersion = "1.0"
)

// ExportInfo describes how and when an export bundle was produced.
type ExportInfo struct {
	ExportedAt time.Time `json:"exported_at"`
	ExportedBy string    `json:"exported_by"`
	Format     string    `json:"format"`
	Source     string    `json:"source"`
	Version    string    `json:"version"`
}

// ExportBundle is the self-describing download format.
type ExportBundle struct {
	User         json.RawMessage    `json:"user"`
	Profile      json.RawMessage    `json:"profile"`
	SecurityLogs []SecurityLogEntry `json:"security_logs"`
	ExportInfo   ExportInfo         `json:"export_info"`
}
