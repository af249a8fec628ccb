package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
	"github.com/dmitrijs2005/offlinekit/internal/common"
	"github.com/dmitrijs2005/offlinekit/internal/dbx"
)

const selectColumns = `id, email, user, profile, security_logs, version, last_sync_at, created_at, updated_at`

type SQLiteRepository struct {
	src dbx.Source
}

func NewSQLiteRepository(src dbx.Source) *SQLiteRepository {
	return &SQLiteRepository{src: src}
}

func (r *SQLiteRepository) Put(ctx context.Context, u *models.CachedUserRecord) error {
	if u == nil || u.ID == "" {
		return errors.New("user record without id")
	}
	db, err := r.src.DB()
	if err != nil {
		return err
	}

	logs, err := json.Marshal(nonNilIDs(u.SecurityLogs))
	if err != nil {
		return fmt.Errorf("failed to encode security log refs: %w", err)
	}

	updatedAt := u.UpdatedAt
	if updatedAt.Before(u.CreatedAt) {
		updatedAt = u.CreatedAt
	}

	query := `INSERT INTO users (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			user = excluded.user,
			profile = excluded.profile,
			security_logs = excluded.security_logs,
			version = excluded.version,
			last_sync_at = MAX(users.last_sync_at, excluded.last_sync_at),
			created_at = MIN(users.created_at, excluded.created_at),
			updated_at = MAX(excluded.updated_at, MIN(users.created_at, excluded.created_at))`

	_, err = db.ExecContext(ctx, query,
		u.ID, nullableEmail(u.Email), nonNilBytes(u.User), nonNilBytes(u.Profile), string(logs), u.Version,
		dbx.UnixNano(u.LastSyncAt), dbx.UnixNano(u.CreatedAt), dbx.UnixNano(updatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.CachedUserRecord, error) {
	db, err := r.src.DB()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.CachedUserRecord, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM users ORDER BY id`)
}

func (r *SQLiteRepository) GetByIndex(ctx context.Context, index string, value any) ([]*models.CachedUserRecord, error) {
	switch index {
	case IndexEmail:
		email, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("email index expects string, got %T", value)
		}
		return r.query(ctx, `SELECT `+selectColumns+` FROM users WHERE email = ?`, email)
	case IndexLastSyncAt:
		ts, ok := value.(time.Time)
		if !ok {
			return nil, fmt.Errorf("last_sync_at index expects time.Time, got %T", value)
		}
		return r.query(ctx, `SELECT `+selectColumns+` FROM users WHERE last_sync_at = ? ORDER BY id`, dbx.UnixNano(ts))
	default:
		return nil, fmt.Errorf("users.%s: %w", index, common.ErrUnknownIndex)
	}
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	db, err := r.src.DB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.CachedUserRecord, error) {
	db, err := r.src.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select users: %w", err)
	}
	defer rows.Close()

	result := make([]*models.CachedUserRecord, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.CachedUserRecord, error) {
	var (
		u                          models.CachedUserRecord
		email                      sql.NullString
		logs                       string
		lastSync, created, updated int64
	)
	if err := s.Scan(&u.ID, &email, &u.User, &u.Profile, &logs, &u.Version, &lastSync, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(logs), &u.SecurityLogs); err != nil {
		return nil, fmt.Errorf("corrupt security log refs for %s: %w", u.ID, err)
	}
	u.Email = email.String
	u.LastSyncAt = dbx.FromUnixNano(lastSync)
	u.CreatedAt = dbx.FromUnixNano(created)
	u.UpdatedAt = dbx.FromUnixNano(updated)
	return &u, nil
}

func nullableEmail(email string) any {
	if email == "" {
		return nil
	}
	return email
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
