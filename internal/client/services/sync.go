package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
)

// SyncUserData replaces the cached copy of userID with the remote one.
// Concurrent calls for the same user share a single fetch. Nothing is
// written unless the fetch and the encryption both succeed.
//
// The shared fetch does not inherit the cancellation of whichever caller
// started it; each caller stops waiting when its own ctx ends.
func (s *dataService) SyncUserData(ctx context.Context, userID string) (*models.UserData, error) {
	ch := s.group.DoChan(userID, func() (any, error) {
		return s.syncUser(context.WithoutCancel(ctx), userID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.log.Debug(ctx, "sync shared with concurrent caller", "user_id", userID)
		}
		return res.Val.(*models.UserData), nil
	}
}

// rebase reapplies the user's still-queued updates on top of a fresh remote
// snapshot, oldest first, so that a sync does not hide offline edits the
// remote has not received yet.
func (s *dataService) rebase(ctx context.Context, userID string, user, profile json.RawMessage) (json.RawMessage, json.RawMessage, int, error) {
	ops, err := s.queue.Pending(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("load queued updates: %w", err)
	}
	slices.SortStableFunc(ops, func(a, b *models.QueuedOperation) int {
		return a.EnqueuedAt.Compare(b.EnqueuedAt)
	})

	applied := 0
	userEndpoint := UserEndpoint(userID)
	for _, op := range ops {
		if op.UserID != userID || op.Kind != models.OperationUpdate {
			continue
		}
		switch op.Endpoint {
		case ProfileEndpoint:
			profile, err = s.opts.Merge.Merge(profile, op.Payload)
		case userEndpoint:
			if user, err = s.opts.Merge.Merge(user, op.Payload); err == nil {
				user, err = withID(user, userID)
			}
		default:
			continue
		}
		if err != nil {
			return nil, nil, 0, fmt.Errorf("reapply queued update %s: %w", op.ID, err)
		}
		applied++
	}
	return user, profile, applied, nil
}

func (s *dataService) syncUser(ctx context.Context, userID string) (*models.UserData, error) {
	snap, err := s.remote.Fetch(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sync %s: %w", userID, err)
	}
	if snap == nil || len(snap.User) == 0 {
		return nil, fmt.Errorf("sync %s: %w", userID, ErrNoRemoteData)
	}
	user, err := withID(snap.User, userID)
	if err != nil {
		return nil, fmt.Errorf("sync %s: %w", userID, err)
	}
	profile := snap.Profile
	if len(profile) == 0 {
		profile = json.RawMessage(`{}`)
	}

	user, profile, reapplied, err := s.rebase(ctx, userID, user, profile)
	if err != nil {
		return nil, fmt.Errorf("sync %s: %w", userID, err)
	}

	existing, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := &models.CachedUserRecord{
		ID:         userID,
		Email:      snap.Email,
		Version:    1,
		LastSyncAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if existing != nil {
		rec.CreatedAt = existing.CreatedAt
		rec.Version = existing.Version + 1
		if existing.LastSyncAt.After(now) {
			rec.LastSyncAt = existing.LastSyncAt
		}
	}
	if err := s.seal(ctx, rec, user, profile); err != nil {
		return nil, fmt.Errorf("sync %s: %w", userID, err)
	}

	// data_synced is appended before the record is stored so that the
	// record's log references include it; a failed store is audited too.
	s.sec.LogUserActivity(ctx, userID, models.EventDataSynced, map[string]any{"version": rec.Version, "reapplied": reapplied})
	rec.SecurityLogs = s.logRefs(ctx, userID)

	if err := s.store.Users().Put(ctx, rec); err != nil {
		s.sec.LogUserActivity(ctx, userID, models.EventSyncFailed, map[string]string{"error": err.Error()})
		return nil, fmt.Errorf("sync %s: %w", userID, err)
	}
	s.log.Info(ctx, "user data synced", "user_id", userID, "version", rec.Version, "reapplied", reapplied)

	return &models.UserData{
		ID:           rec.ID,
		Email:        rec.Email,
		User:         user,
		Profile:      profile,
		SecurityLogs: rec.SecurityLogs,
		Version:      rec.Version,
		LastSyncAt:   rec.LastSyncAt,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}
