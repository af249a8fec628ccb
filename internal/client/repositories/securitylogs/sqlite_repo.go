package securitylogs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
	"github.com/dmitrijs2005/offlinekit/internal/common"
	"github.com/dmitrijs2005/offlinekit/internal/dbx"
)

const selectColumns = `id, user_id, event_type, timestamp, details, source, session_id, network_origin, client_agent`

type SQLiteRepository struct {
	src dbx.Source
}

func NewSQLiteRepository(src dbx.Source) *SQLiteRepository {
	return &SQLiteRepository{src: src}
}

func (r *SQLiteRepository) Append(ctx context.Context, e *models.SecurityLogEntry) (int64, error) {
	db, err := r.src.DB()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, `INSERT INTO security_logs
		(user_id, event_type, timestamp, details, source, session_id, network_origin, client_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.EventType, dbx.UnixNano(e.Timestamp), []byte(e.Details), string(e.Source),
		e.SessionID, e.NetworkOrigin, e.ClientAgent)
	if err != nil {
		return 0, fmt.Errorf("failed to append security log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read security log id: %w", err)
	}
	e.ID = id
	return id, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.SecurityLogEntry, error) {
	db, err := r.src.DB()
	if err != nil {
		return nil, err
	}
	e, err := scanEntry(db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM security_logs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security log %d: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.SecurityLogEntry, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM security_logs ORDER BY id`)
}

func (r *SQLiteRepository) GetByIndex(ctx context.Context, index string, value any) ([]*models.SecurityLogEntry, error) {
	switch index {
	case IndexUserID:
		userID, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("user_id index expects string, got %T", value)
		}
		return r.query(ctx, `SELECT `+selectColumns+` FROM security_logs WHERE user_id = ? ORDER BY id`, userID)
	case IndexTimestamp:
		ts, ok := value.(time.Time)
		if !ok {
			return nil, fmt.Errorf("timestamp index expects time.Time, got %T", value)
		}
		return r.query(ctx, `SELECT `+selectColumns+` FROM security_logs WHERE timestamp = ? ORDER BY id`, dbx.UnixNano(ts))
	default:
		return nil, fmt.Errorf("security_logs.%s: %w", index, common.ErrUnknownIndex)
	}
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	db, err := r.src.DB()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM security_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count security logs: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.SecurityLogEntry, error) {
	db, err := r.src.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select security logs: %w", err)
	}
	defer rows.Close()

	result := make([]*models.SecurityLogEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.SecurityLogEntry, error) {
	var (
		e       models.SecurityLogEntry
		ts      int64
		source  string
		details []byte
	)
	if err := s.Scan(&e.ID, &e.UserID, &e.EventType, &ts, &details, &source, &e.SessionID, &e.NetworkOrigin, &e.ClientAgent); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		e.Details = details
	}
	e.Timestamp = dbx.FromUnixNano(ts)
	e.Source = models.LogSource(source)
	return &e, nil
}
