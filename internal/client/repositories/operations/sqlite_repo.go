package operations

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

const selectColumns = `id, user_id, kind, endpoint, payload, enqueued_at, retry_count, max_retries,
	retry_delay_ms, priority, depends_on, last_attempt_at, last_error`

const orderBy = ` ORDER BY priority_rank, enqueued_at, id`

type SQLiteRepository struct {
	src dbx.Source
}

func NewSQLiteRepository(src dbx.Source) *SQLiteRepository {
	return &SQLiteRepository{src: src}
}

func (r *SQLiteRepository) Put(ctx context.Context, op *models.QueuedOperation) error {
	if op == nil || op.ID == "" {
		return errors.New("operation without id")
	}
	db, err := r.src.DB()
	if err != nil {
		return err
	}

	deps := op.DependsOn
	if deps == nil {
		deps = []string{}
	}
	depsJSON, err := json.Marshal(deps)
	if err != nil {
		return fmt.Errorf("failed to encode dependencies: %w", err)
	}

	query := `INSERT INTO operations (id, user_id, kind, endpoint, payload, enqueued_at, retry_count, max_retries,
			retry_delay_ms, priority, priority_rank, depends_on, last_attempt_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			kind = excluded.kind,
			endpoint = excluded.endpoint,
			payload = excluded.payload,
			enqueued_at = excluded.enqueued_at,
			retry_count = excluded.retry_count,
			max_retries = excluded.max_retries,
			retry_delay_ms = excluded.retry_delay_ms,
			priority = excluded.priority,
			priority_rank = excluded.priority_rank,
			depends_on = excluded.depends_on,
			last_attempt_at = excluded.last_attempt_at,
			last_error = excluded.last_error`

	_, err = db.ExecContext(ctx, query,
		op.ID, op.UserID, string(op.Kind), op.Endpoint, op.Payload, dbx.UnixNano(op.EnqueuedAt),
		op.RetryCount, op.MaxRetries, op.RetryDelay.Milliseconds(), string(op.Priority), op.Priority.Rank(),
		string(depsJSON), dbx.UnixNano(op.LastAttemptAt), op.LastError)
	if err != nil {
		return fmt.Errorf("failed to upsert operation %s: %w", op.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.QueuedOperation, error) {
	db, err := r.src.DB()
	if err != nil {
		return nil, err
	}
	op, err := scanOperation(db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM operations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation %s: %w", id, err)
	}
	return op, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.QueuedOperation, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM operations`+orderBy)
}

func (r *SQLiteRepository) GetByIndex(ctx context.Context, index string, value any) ([]*models.QueuedOperation, error) {
	switch index {
	case IndexPriority:
		var p models.Priority
		switch v := value.(type) {
		case models.Priority:
			p = v
		case string:
			p = models.Priority(v)
		default:
			return nil, fmt.Errorf("priority index expects Priority, got %T", value)
		}
		return r.query(ctx, `SELECT `+selectColumns+` FROM operations WHERE priority = ?`+orderBy, string(p))
	case IndexEnqueuedAt:
		ts, ok := value.(time.Time)
		if !ok {
			return nil, fmt.Errorf("enqueued_at index expects time.Time, got %T", value)
		}
		return r.query(ctx, `SELECT `+selectColumns+` FROM operations WHERE enqueued_at = ?`+orderBy, dbx.UnixNano(ts))
	default:
		return nil, fmt.Errorf("operations.%s: %w", index, common.ErrUnknownIndex)
	}
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	db, err := r.src.DB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete operation %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) RecordFailure(ctx context.Context, op *models.QueuedOperation) (bool, error) {
	db, err := r.src.DB()
	if err != nil {
		return false, err
	}
	n, err := dbx.ExecAffected(ctx, db,
		`UPDATE operations SET retry_count = ?, last_attempt_at = ?, last_error = ? WHERE id = ?`,
		op.RetryCount, dbx.UnixNano(op.LastAttemptAt), op.LastError, op.ID)
	if err != nil {
		return false, fmt.Errorf("failed to record failure of operation %s: %w", op.ID, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) (bool, error) {
	db, err := r.src.DB()
	if err != nil {
		return false, err
	}
	n, err := dbx.ExecAffected(ctx, db, `DELETE FROM operations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete operation %s: %w", id, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	db, err := r.src.DB()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.QueuedOperation, error) {
	db, err := r.src.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select operations: %w", err)
	}
	defer rows.Close()

	result := make([]*models.QueuedOperation, 0)
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(s scanner) (*models.QueuedOperation, error) {
	var (
		op                    models.QueuedOperation
		kind, priority, deps  string
		enqueued, lastAttempt int64
		retryDelayMs          int64
	)
	err := s.Scan(&op.ID, &op.UserID, &kind, &op.Endpoint, &op.Payload, &enqueued, &op.RetryCount, &op.MaxRetries,
		&retryDelayMs, &priority, &deps, &lastAttempt, &op.LastError)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(deps), &op.DependsOn); err != nil {
		return nil, fmt.Errorf("corrupt dependencies for %s: %w", op.ID, err)
	}
	if len(op.DependsOn) == 0 {
		op.DependsOn = nil
	}
	op.Kind = models.OperationKind(kind)
	op.Priority = models.Priority(priority)
	op.EnqueuedAt = dbx.FromUnixNano(enqueued)
	op.LastAttemptAt = dbx.FromUnixNano(lastAttempt)
	op.RetryDelay = time.Duration(retryDelayMs) * time.Millisecond
	return &op, nil
}
