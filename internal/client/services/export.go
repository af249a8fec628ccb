package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/offlinekit/internal/client/export"
	"github.com/dmitrijs2005/offlinekit/internal/client/models"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/securitylogs"
)

// ExportData renders the cached data of userID, with its audit trail, as a
// self-describing JSON bundle.
func (s *dataService) ExportData(ctx context.Context, userID string) ([]byte, error) {
	if err := s.gate(ctx, "export"); err != nil {
		return nil, err
	}
	rec, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("export %s: %w", userID, ErrNoCachedData)
	}
	data, err := s.open(ctx, rec)
	if err != nil {
		return nil, err
	}

	logs, err := s.store.SecurityLogs().GetByIndex(ctx, securitylogs.IndexUserID, userID)
	if err != nil {
		return nil, err
	}
	entries := make([]models.SecurityLogEntry, 0, len(logs))
	for _, e := range logs {
		entries = append(entries, *e)
	}

	exportedBy := userID
	if c, err := s.sec.CurrentClaims(ctx); err == nil && c.UserID != "" {
		exportedBy = c.UserID
	}

	bundle := models.ExportBundle{
		User:         data.User,
		Profile:      data.Profile,
		SecurityLogs: entries,
		ExportInfo: models.ExportInfo{
			ExportedAt: s.now(),
			ExportedBy: exportedBy,
			Format:     models.ExportFormat,
			Source:     models.ExportSource,
			Version:    models.ExportVersion,
		},
	}
	out, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	s.sec.LogUserActivity(ctx, userID, models.EventDataExported, map[string]int{"bytes": len(out)})
	return out, nil
}

// ExportTo writes the export bundle of userID to sink and returns its location.
func (s *dataService) ExportTo(ctx context.Context, userID string, sink export.Sink) (string, error) {
	data, err := s.ExportData(ctx, userID)
	if err != nil {
		return "", err
	}
	loc, err := sink.Write(ctx, export.ObjectName(userID, s.now()), data)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", userID, err)
	}
	s.log.Info(ctx, "export written", "user_id", userID, "location", loc)
	return loc, nil
}
