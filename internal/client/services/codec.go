package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/securitylogs"
	"github.com/dmitrijs2005/offlinekit/internal/client/security"
)

// envelope is the decrypted shape checked by VerifyIntegrity.
type envelope struct {
	User         json.RawMessage `json:"user"`
	Profile      json.RawMessage `json:"profile"`
	SecurityLogs []int64         `json:"security_logs"`
	LastSync     string          `json:"last_sync"`
}

// open decrypts rec and validates the result. Failures are audited.
func (s *dataService) open(ctx context.Context, rec *models.CachedUserRecord) (*models.UserData, error) {
	user, err := s.sec.Decrypt(ctx, rec.User)
	if err == nil {
		var profile []byte
		profile, err = s.sec.Decrypt(ctx, rec.Profile)
		if err == nil {
			return s.verify(ctx, rec, user, profile)
		}
	}
	if errors.Is(err, security.ErrDecryptionFailure) {
		s.sec.LogUserActivity(ctx, rec.ID, models.EventDecryptionFailed, nil)
	}
	return nil, fmt.Errorf("open cached user %s: %w", rec.ID, err)
}

func (s *dataService) verify(ctx context.Context, rec *models.CachedUserRecord, user, profile []byte) (*models.UserData, error) {
	logs := rec.SecurityLogs
	if logs == nil {
		logs = []int64{}
	}
	env, err := json.Marshal(envelope{
		User:         user,
		Profile:      profile,
		SecurityLogs: logs,
		LastSync:     rec.LastSyncAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		err = fmt.Errorf("%w: %v", security.ErrIntegrityCheckFailure, err)
	} else {
		err = s.sec.VerifyIntegrity(env)
	}
	if err != nil {
		s.sec.LogUserActivity(ctx, rec.ID, models.EventIntegrityFailed, map[string]string{"error": err.Error()})
		return nil, fmt.Errorf("cached user %s: %w", rec.ID, err)
	}

	return &models.UserData{
		ID:           rec.ID,
		Email:        rec.Email,
		User:         user,
		Profile:      profile,
		SecurityLogs: logs,
		Version:      rec.Version,
		LastSyncAt:   rec.LastSyncAt,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}

// seal encrypts user and profile into rec.
func (s *dataService) seal(ctx context.Context, rec *models.CachedUserRecord, user, profile []byte) error {
	sealedUser, err := s.sec.Encrypt(ctx, user)
	if err != nil {
		return err
	}
	sealedProfile, err := s.sec.Encrypt(ctx, profile)
	if err != nil {
		return err
	}
	rec.User = sealedUser
	rec.Profile = sealedProfile
	return nil
}

// withID makes sure the user document carries its id.
func withID(user json.RawMessage, userID string) (json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(user, &m); err != nil {
		return nil, fmt.Errorf("user document is not an object: %w", err)
	}
	if _, ok := m["id"]; ok {
		return user, nil
	}
	id, err := json.Marshal(userID)
	if err != nil {
		return nil, err
	}
	m["id"] = id
	return json.Marshal(m)
}

// logRefs lists the audit entry ids recorded for userID.
func (s *dataService) logRefs(ctx context.Context, userID string) []int64 {
	entries, err := s.store.SecurityLogs().GetByIndex(ctx, securitylogs.IndexUserID, userID)
	if err != nil {
		s.log.Warn(ctx, "failed to list security logs", "user_id", userID, "error", err.Error())
		return []int64{}
	}
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}
