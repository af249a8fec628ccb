package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
)

// ProfileEndpoint is where profile patches are replayed.
const ProfileEndpoint = "/profile"

// UserEndpoint is the remote resource of userID.
func UserEndpoint(userID string) string {
	return "/users/" + url.PathEscape(userID)
}

func (s *dataService) gate(ctx context.Context, action string) error {
	if s.sec.ValidateOfflineAccess(ctx) {
		return nil
	}
	s.sec.LogActivity(ctx, models.EventOfflineAccessDenied, map[string]string{"action": action})
	return fmt.Errorf("%s: %w", action, ErrAccessDenied)
}

// GetOfflineUserData decrypts the cached copy of userID, or returns nil when
// there is none.
func (s *dataService) GetOfflineUserData(ctx context.Context, userID string) (*models.UserData, error) {
	if err := s.gate(ctx, "read"); err != nil {
		return nil, err
	}
	rec, err := s.store.Users().Get(ctx, userID)
	if err != nil || rec == nil {
		return nil, err
	}
	data, err := s.open(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.sec.LogUserActivity(ctx, userID, models.EventOfflineRead, nil)
	return data, nil
}

// GetAllOfflineUsers returns every readable cached user. Records that fail to
// decrypt or validate are skipped, not deleted.
func (s *dataService) GetAllOfflineUsers(ctx context.Context) ([]*models.UserData, error) {
	if err := s.gate(ctx, "read all"); err != nil {
		return nil, err
	}
	recs, err := s.store.Users().GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.UserData, 0, len(recs))
	for _, rec := range recs {
		data, err := s.open(ctx, rec)
		if err != nil {
			s.log.Warn(ctx, "skipping unreadable cached user", "user_id", rec.ID, "error", err.Error())
			continue
		}
		out = append(out, data)
	}
	return out, nil
}

func (s *dataService) UpdateProfileOffline(ctx context.Context, patch json.RawMessage) (*models.UserData, error) {
	return s.updateOffline(ctx, patch, true)
}

func (s *dataService) UpdateUserOffline(ctx context.Context, patch json.RawMessage) (*models.UserData, error) {
	return s.updateOffline(ctx, patch, false)
}

// updateOffline queues the patch for the remote API and applies it to the
// cached copy with the merge policy. The returned data is nil when the user
// has no cached record yet.
func (s *dataService) updateOffline(ctx context.Context, patch json.RawMessage, profile bool) (*models.UserData, error) {
	if err := s.gate(ctx, "update"); err != nil {
		return nil, err
	}
	claims, err := s.sec.CurrentClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve acting user: %w", err)
	}
	userID := claims.UserID
	if userID == "" {
		return nil, errors.New("credential names no user")
	}
	if !json.Valid(patch) {
		return nil, errors.New("patch is not valid JSON")
	}

	endpoint := ProfileEndpoint
	if !profile {
		endpoint = UserEndpoint(userID)
	}

	var (
		rec     *models.CachedUserRecord
		current *models.UserData
		merged  json.RawMessage
	)
	rec, err = s.store.Users().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		if current, err = s.open(ctx, rec); err != nil {
			return nil, err
		}
		doc := current.User
		if profile {
			doc = current.Profile
		}
		if merged, err = s.opts.Merge.Merge(doc, patch); err != nil {
			return nil, fmt.Errorf("merge patch: %w", err)
		}
		if !profile {
			if merged, err = withID(merged, userID); err != nil {
				return nil, err
			}
		}
	}

	opID, err := s.queue.Enqueue(ctx, models.QueuedOperation{
		UserID:   userID,
		Kind:     models.OperationUpdate,
		Endpoint: endpoint,
		Payload:  patch,
		Priority: models.PriorityNormal,
	})
	if err != nil {
		return nil, err
	}
	s.sec.LogUserActivity(ctx, userID, models.EventOfflineUpdate, map[string]string{"endpoint": endpoint, "operation_id": opID})

	if rec == nil {
		return nil, nil
	}

	user, prof := current.User, current.Profile
	if profile {
		prof = merged
	} else {
		user = merged
	}
	rec.Version++
	rec.UpdatedAt = s.now()
	rec.SecurityLogs = s.logRefs(ctx, userID)
	if err := s.seal(ctx, rec, user, prof); err != nil {
		return nil, err
	}
	if err := s.store.Users().Put(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "offline update applied", "user_id", userID, "endpoint", endpoint, "version", rec.Version)

	current.User, current.Profile = user, prof
	current.Version = rec.Version
	current.UpdatedAt = rec.UpdatedAt
	current.SecurityLogs = rec.SecurityLogs
	return current, nil
}
