package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/client/flags"
	"github.com/dmitrijs2005/offlinekit/internal/client/models"
)

// DataFreshnessSeconds is the age of the cached copy, or -1 when none exists.
func (s *dataService) DataFreshnessSeconds(ctx context.Context, userID string) (int64, error) {
	rec, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if rec == nil || rec.LastSyncAt.IsZero() {
		return -1, nil
	}
	age := s.now().Sub(rec.LastSyncAt)
	if age < 0 {
		return 0, nil
	}
	return int64(age / time.Second), nil
}

// IsStale reports whether the cached copy is older than maxAge. A missing
// record is stale.
func (s *dataService) IsStale(ctx context.Context, userID string, maxAge time.Duration) (bool, error) {
	age, err := s.DataFreshnessSeconds(ctx, userID)
	if err != nil {
		return false, err
	}
	return age < 0 || time.Duration(age)*time.Second > maxAge, nil
}

// RefreshIfStale resyncs userID when stale and reports whether it did.
func (s *dataService) RefreshIfStale(ctx context.Context, userID string, maxAge time.Duration) (bool, error) {
	stale, err := s.IsStale(ctx, userID, maxAge)
	if err != nil || !stale {
		return false, err
	}
	if _, err := s.SyncUserData(ctx, userID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *dataService) Metrics(ctx context.Context, userID string) (*models.Metrics, error) {
	qs, err := s.queue.Stats(ctx)
	if err != nil {
		return nil, err
	}
	age, err := s.DataFreshnessSeconds(ctx, userID)
	if err != nil {
		return nil, err
	}
	ss, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	m := &models.Metrics{
		UserID:           userID,
		QueueDepth:       qs.Pending,
		DeadLettered:     qs.DeadLettered,
		SuccessRate:      qs.SuccessRate,
		FreshnessSeconds: age,
		IsStale:          age < 0 || time.Duration(age)*time.Second > s.opts.StaleAfter,
		Store:            ss,
		CollectedAt:      s.now(),
	}
	if s.opts.Flags != nil {
		if t, ok, err := s.opts.Flags.Get(flags.KeyOfflineSince); err == nil && ok {
			m.OfflineSince = &t
		} else if err != nil {
			s.log.Debug(ctx, "offline flag unreadable", "error", err.Error())
		}
	}
	return m, nil
}

// PurgeUser drops the cached copy of userID. Queued operations are kept.
func (s *dataService) PurgeUser(ctx context.Context, userID string) error {
	if err := s.store.Users().Delete(ctx, userID); err != nil {
		return err
	}
	s.sec.LogUserActivity(ctx, userID, models.EventDataPurged, nil)
	s.log.Info(ctx, "cached user purged", "user_id", userID)
	return nil
}

// CleanupSecurityLogs applies the configured audit-log retention.
func (s *dataService) CleanupSecurityLogs(ctx context.Context) (int, error) {
	return s.sec.PurgeLogsOlderThan(ctx, s.opts.LogRetention)
}
