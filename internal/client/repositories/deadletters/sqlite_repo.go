package deadletters

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
	"github.com/dmitrijs2005/offlinekit/internal/dbx"
)

type SQLiteRepository struct {
	src dbx.Source
}

func NewSQLiteRepository(src dbx.Source) *SQLiteRepository {
	return &SQLiteRepository{src: src}
}

func (r *SQLiteRepository) Put(ctx context.Context, dl *models.DeadLetter) error {
	if dl == nil || dl.Operation.ID == "" {
		return errors.New("dead letter without operation id")
	}
	db, err := r.src.DB()
	if err != nil {
		return err
	}
	blob, err := json.Marshal(dl.Operation)
	if err != nil {
		return fmt.Errorf("failed to encode operation %s: %w", dl.Operation.ID, err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO dead_letters (id, operation, reason, failed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET operation = excluded.operation, reason = excluded.reason, failed_at = excluded.failed_at`,
		dl.Operation.ID, blob, dl.Reason, dbx.UnixNano(dl.FailedAt))
	if err != nil {
		return fmt.Errorf("failed to store dead letter %s: %w", dl.Operation.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.DeadLetter, error) {
	db, err := r.src.DB()
	if err != nil {
		return nil, err
	}
	dl, err := scanDeadLetter(db.QueryRowContext(ctx, `SELECT operation, reason, failed_at FROM dead_letters WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dead letter %s: %w", id, err)
	}
	return dl, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.DeadLetter, error) {
	db, err := r.src.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT operation, reason, failed_at FROM dead_letters ORDER BY failed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select dead letters: %w", err)
	}
	defer rows.Close()

	result := make([]*models.DeadLetter, 0)
	for rows.Next() {
		dl, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	db, err := r.src.DB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete dead letter %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	db, err := r.src.DB()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDeadLetter(s scanner) (*models.DeadLetter, error) {
	var (
		dl       models.DeadLetter
		blob     []byte
		failedAt int64
	)
	if err := s.Scan(&blob, &dl.Reason, &failedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(blob, &dl.Operation); err != nil {
		return nil, fmt.Errorf("corrupt dead letter: %w", err)
	}
	dl.FailedAt = dbx.FromUnixNano(failedAt)
	return &dl, nil
}
