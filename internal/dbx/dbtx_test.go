package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openQueueDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE ops (id TEXT PRIMARY KEY, endpoint TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func opCount(t *testing.T, db DBTX) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM ops`).Scan(&n))
	return n
}

func insertOp(ctx context.Context, tx DBTX, id string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO ops(id, endpoint) VALUES (?, '/profile')`, id)
	return err
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when fn succeeds", func(t *testing.T) {
		db := openQueueDB(t)
		err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
			if err := insertOp(ctx, tx, "a"); err != nil {
				return err
			}
			return insertOp(ctx, tx, "b")
		})
		require.NoError(t, err)
		assert.Equal(t, 2, opCount(t, db))
	})

	t.Run("discards all writes when fn fails", func(t *testing.T) {
		db := openQueueDB(t)
		sentinel := errors.New("replay rejected")
		err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, insertOp(ctx, tx, "a"))
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Zero(t, opCount(t, db))
	})

	t.Run("constraint violation rolls back earlier statements", func(t *testing.T) {
		db := openQueueDB(t)
		err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, insertOp(ctx, tx, "dup"))
			return insertOp(ctx, tx, "dup")
		})
		assert.Error(t, err)
		assert.Zero(t, opCount(t, db))
	})

	t.Run("panic rolls back and propagates", func(t *testing.T) {
		db := openQueueDB(t)
		assert.Panics(t, func() {
			_ = WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
				require.NoError(t, insertOp(ctx, tx, "a"))
				panic("boom")
			})
		})
		assert.Zero(t, opCount(t, db))
	})

	t.Run("closed database fails to begin", func(t *testing.T) {
		db := openQueueDB(t)
		require.NoError(t, db.Close())
		called := false
		err := WithTx(ctx, db, nil, func(context.Context, DBTX) error {
			called = true
			return nil
		})
		assert.Error(t, err)
		assert.False(t, called)
	})
}

func TestExecAffected(t *testing.T) {
	db := openQueueDB(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, insertOp(ctx, db, id))
	}

	n, err := ExecAffected(ctx, db, `DELETE FROM ops WHERE id <> ?`, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = ExecAffected(ctx, db, `DELETE FROM ops WHERE id = ?`, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFixedSource(t *testing.T) {
	db := openQueueDB(t)
	src := Fixed{Handle: db}
	h, err := src.DB()
	require.NoError(t, err)
	require.NoError(t, insertOp(context.Background(), h, "x"))
	assert.Equal(t, 1, opCount(t, db))
}

func TestUnixNano_RoundTripAndZero(t *testing.T) {
	assert.Zero(t, UnixNano(time.Time{}))
	assert.True(t, FromUnixNano(0).IsZero())

	at := time.Date(2026, 3, 1, 12, 30, 0, 42, time.FixedZone("X", 3600))
	back := FromUnixNano(UnixNano(at))
	assert.True(t, at.Equal(back))
	assert.Equal(t, time.UTC, back.Location())
}
