package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/offlinekit/internal/dbx"
)

const (
	selectValue  = `SELECT value FROM metadata WHERE key = ?`
	upsertValue  = `INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	insertAbsent = `INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`
	deleteKey    = `DELETE FROM metadata WHERE key = ?`
	selectAll    = `SELECT key, value FROM metadata ORDER BY key`
)

type SQLiteRepository struct {
	src dbx.Source
}

func NewSQLiteRepository(src dbx.Source) *SQLiteRepository {
	return &SQLiteRepository{src: src}
}

// exec runs a write against the current handle, naming key in any error.
func (r *SQLiteRepository) exec(ctx context.Context, op, key, query string, args ...any) error {
	db, err := r.src.DB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("metadata %s %q: %w", op, key, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	db, err := r.src.DB()
	if err != nil {
		return nil, err
	}
	var value []byte
	switch err := db.QueryRowContext(ctx, selectValue, key).Scan(&value); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("metadata get %q: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	return r.exec(ctx, "set", key, upsertValue, key, value)
}

func (r *SQLiteRepository) SetIfAbsent(ctx context.Context, key string, value []byte) ([]byte, error) {
	if err := r.exec(ctx, "init", key, insertAbsent, key, value); err != nil {
		return nil, err
	}
	return r.Get(ctx, key)
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	return r.exec(ctx, "delete", key, deleteKey, key)
}

// List returns every stored pair.
func (r *SQLiteRepository) List(ctx context.Context) (map[string][]byte, error) {
	db, err := r.src.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, selectAll)
	if err != nil {
		return nil, fmt.Errorf("metadata list: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("metadata list: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadata list: %w", err)
	}
	return out, nil
}
