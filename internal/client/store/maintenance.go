package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/deadletters"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/operations"
	"github.com/dmitrijs2005/offlinekit/internal/dbx"
)

// Collection names as used by PurgeOlderThan and Stats.
const (
	CollectionUsers        = "users"
	CollectionOperations   = "operations"
	CollectionSecurityLogs = "security_logs"
	CollectionDeadLetters  = "dead_letters"
	CollectionMetadata     = "metadata"
)

type timeIndex struct {
	table  string
	column string
	key    string
}

// timeIndexes lists the timestamp indexes that accept range purges.
var timeIndexes = map[string]map[string]timeIndex{
	CollectionUsers: {
		"last_sync_at": {table: "users", column: "last_sync_at", key: "id"},
	},
	CollectionOperations: {
		"enqueued_at": {table: "operations", column: "enqueued_at", key: "id"},
	},
	CollectionSecurityLogs: {
		"timestamp": {table: "security_logs", column: "timestamp", key: "id"},
	},
	CollectionDeadLetters: {
		"failed_at": {table: "dead_letters", column: "failed_at", key: "id"},
	},
}

// PurgeOlderThan deletes every record of collection whose index value is at
// or before cutoff, walking the index in ascending order, and returns how
// many were removed. Only timestamp indexes are accepted.
func (s *Store) PurgeOlderThan(ctx context.Context, collection, index string, cutoff time.Time) (int, error) {
	idx, ok := timeIndexes[collection][index]
	if !ok {
		return 0, fmt.Errorf("%s.%s is not a timestamp index: %w", collection, index, ErrUnknownIndex)
	}
	db, err := s.sqlDB()
	if err != nil {
		return 0, err
	}

	deleted := 0
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+idx.key+` FROM `+idx.table+` WHERE `+idx.column+` <= ? ORDER BY `+idx.column+`, `+idx.key,
			dbx.UnixNano(cutoff))
		if err != nil {
			return err
		}
		var keys []any
		for rows.Next() {
			var k any
			if err := rows.Scan(&k); err != nil {
				_ = rows.Close()
				return err
			}
			keys = append(keys, k)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, k := range keys {
			n, err := dbx.ExecAffected(ctx, tx, `DELETE FROM `+idx.table+` WHERE `+idx.key+` = ?`, k)
			if err != nil {
				return err
			}
			deleted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge %s.%s: %w", collection, index, err)
	}
	if deleted > 0 {
		s.log.Info(ctx, "purged records", "collection", collection, "index", index, "cutoff", cutoff, "deleted", deleted)
	}
	return deleted, nil
}

// MoveToDeadLetter atomically removes dl.Operation from the queue and files
// it under dead letters. It reports false, and files nothing, when the
// operation had already left the queue.
func (s *Store) MoveToDeadLetter(ctx context.Context, dl *models.DeadLetter) (bool, error) {
	db, err := s.sqlDB()
	if err != nil {
		return false, err
	}
	moved := false
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		src := dbx.Fixed{Handle: tx}
		removed, err := operations.NewSQLiteRepository(src).Remove(ctx, dl.Operation.ID)
		if err != nil || !removed {
			return err
		}
		if err := deadletters.NewSQLiteRepository(src).Put(ctx, dl); err != nil {
			return err
		}
		moved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return moved, nil
}

// Requeue moves a dead letter back to the pending queue with a fresh retry
// budget. It returns (nil, nil) when no dead letter has that id.
func (s *Store) Requeue(ctx context.Context, id string) (*models.QueuedOperation, error) {
	db, err := s.sqlDB()
	if err != nil {
		return nil, err
	}
	var op *models.QueuedOperation
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		src := dbx.Fixed{Handle: tx}
		dead := deadletters.NewSQLiteRepository(src)
		dl, err := dead.Get(ctx, id)
		if err != nil || dl == nil {
			return err
		}
		requeued := dl.Operation
		requeued.RetryCount = 0
		requeued.LastError = ""
		requeued.LastAttemptAt = time.Time{}
		if err := operations.NewSQLiteRepository(src).Put(ctx, &requeued); err != nil {
			return err
		}
		if err := dead.Delete(ctx, id); err != nil {
			return err
		}
		op = &requeued
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("requeue %s: %w", id, err)
	}
	return op, nil
}

// Stats counts records per collection and approximates their size as the
// length of each record's JSON encoding.
func (s *Store) Stats(ctx context.Context) (models.StoreStats, error) {
	stats := models.StoreStats{Collections: make(map[string]models.CollectionStats, 5)}
	if _, err := s.DB(); err != nil {
		return stats, err
	}

	us, err := s.users.GetAll(ctx)
	if err != nil {
		return stats, err
	}
	if stats.Collections[CollectionUsers], err = measure(us); err != nil {
		return stats, err
	}

	ops, err := s.operations.GetAll(ctx)
	if err != nil {
		return stats, err
	}
	if stats.Collections[CollectionOperations], err = measure(ops); err != nil {
		return stats, err
	}

	logs, err := s.securityLogs.GetAll(ctx)
	if err != nil {
		return stats, err
	}
	if stats.Collections[CollectionSecurityLogs], err = measure(logs); err != nil {
		return stats, err
	}

	dead, err := s.deadLetters.GetAll(ctx)
	if err != nil {
		return stats, err
	}
	if stats.Collections[CollectionDeadLetters], err = measure(dead); err != nil {
		return stats, err
	}

	meta, err := s.metadata.List(ctx)
	if err != nil {
		return stats, err
	}
	var metaBytes int64
	for k, v := range meta {
		metaBytes += int64(len(k) + len(v))
	}
	stats.Collections[CollectionMetadata] = models.CollectionStats{Count: len(meta), Bytes: metaBytes}

	for _, c := range stats.Collections {
		stats.TotalBytes += c.Bytes
	}
	stats.SchemaVersion = s.SchemaVersion()
	return stats, nil
}

func measure[T any](records []T) (models.CollectionStats, error) {
	cs := models.CollectionStats{Count: len(records)}
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return cs, fmt.Errorf("measure: %w", err)
		}
		cs.Bytes += int64(len(b))
	}
	return cs, nil
}
