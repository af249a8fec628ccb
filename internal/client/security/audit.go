package security

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/securitylogs"
	"github.com/dmitrijs2005/offlinekit/internal/client/store"
)

// LogActivity appends an audit entry attributed to the user named in the
// live credential (empty when it cannot be determined). Failures are logged
// and swallowed.
func (s *Service) LogActivity(ctx context.Context, eventType string, details any) {
	var userID, sessionID string
	if c, err := s.CurrentClaims(ctx); err == nil {
		userID, sessionID = c.UserID, c.SessionID
	}
	s.logEntry(ctx, userID, sessionID, eventType, details)
}

// LogUserActivity is LogActivity with an explicit subject, for events raised
// on behalf of a user other than the signed-in one (a queued operation, a
// purge).
func (s *Service) LogUserActivity(ctx context.Context, userID, eventType string, details any) {
	var sessionID string
	if c, err := s.CurrentClaims(ctx); err == nil {
		sessionID = c.SessionID
	}
	s.logEntry(ctx, userID, sessionID, eventType, details)
}

func (s *Service) logEntry(ctx context.Context, userID, sessionID, eventType string, details any) {
	var raw json.RawMessage
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			s.log.Warn(ctx, "security log details not encodable", "event", eventType, "error", err.Error())
		} else {
			raw = b
		}
	}

	source := models.SourceOffline
	if s.opts.Status != nil && s.opts.Status.Online() {
		source = models.SourceOnline
	}

	entry := &models.SecurityLogEntry{
		UserID:        userID,
		EventType:     eventType,
		Timestamp:     s.now(),
		Details:       raw,
		Source:        source,
		SessionID:     sessionID,
		NetworkOrigin: s.opts.NetworkOrigin,
		ClientAgent:   s.opts.ClientAgent,
	}
	if _, err := s.store.SecurityLogs().Append(ctx, entry); err != nil {
		s.log.Warn(ctx, "failed to append security log", "event", eventType, "error", err.Error())
	}
}

// PurgeLogsOlderThan drops audit entries older than retention and records
// the cleanup itself as an audit entry when anything was removed.
func (s *Service) PurgeLogsOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.now().Add(-retention)
	n, err := s.store.PurgeOlderThan(ctx, store.CollectionSecurityLogs, securitylogs.IndexTimestamp, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.LogActivity(ctx, models.EventSecurityLogRetention, map[string]any{
			"deleted": n,
			"cutoff":  cutoff,
		})
	}
	return n, nil
}
