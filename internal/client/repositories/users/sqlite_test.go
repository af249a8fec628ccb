package users

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/client/models"
	"github.com/dmitrijs2005/offlinekit/internal/client/repositories/repotest"
	"github.com/dmitrijs2005/offlinekit/internal/common"
	"github.com/dmitrijs2005/offlinekit/internal/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	return NewSQLiteRepository(dbx.Fixed{Handle: repotest.OpenDB(t)})
}

func record(id, email string) *models.CachedUserRecord {
	return &models.CachedUserRecord{
		ID:           id,
		Email:        email,
		User:         []byte("sealed-user"),
		Profile:      []byte("sealed-profile"),
		SecurityLogs: []int64{1, 2},
		Version:      1,
		LastSyncAt:   t0,
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
}

func TestPut_IsIdempotent(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	rec := record("u1", "a@example.com")
	require.NoError(t, r.Put(ctx, rec))
	require.NoError(t, r.Put(ctx, rec))

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "u1", all[0].ID)
}

func TestPut_RoundTrip(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, record("u1", "a@example.com")))

	got, err := r.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a@example.com", got.Email)
	assert.Equal(t, []byte("sealed-user"), got.User)
	assert.Equal(t, []byte("sealed-profile"), got.Profile)
	assert.Equal(t, []int64{1, 2}, got.SecurityLogs)
	assert.True(t, got.LastSyncAt.Equal(t0))
	assert.True(t, got.CreatedAt.Equal(t0))
}

func TestPut_LastSyncNeverMovesBackwards(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	rec := record("u1", "")
	rec.LastSyncAt = t0.Add(time.Hour)
	require.NoError(t, r.Put(ctx, rec))

	older := record("u1", "")
	older.LastSyncAt = t0
	older.CreatedAt = t0.Add(time.Minute)
	older.UpdatedAt = t0.Add(2 * time.Hour)
	require.NoError(t, r.Put(ctx, older))

	got, err := r.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.LastSyncAt.Equal(t0.Add(time.Hour)))
	assert.True(t, got.CreatedAt.Equal(t0), "created_at keeps first value")
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestPut_UpdatedNotBeforeCreated(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	rec := record("u1", "")
	rec.UpdatedAt = t0.Add(-time.Hour)
	require.NoError(t, r.Put(ctx, rec))

	got, err := r.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(got.CreatedAt))
}

func TestPut_RejectsMissingID(t *testing.T) {
	r := newRepo(t)
	require.Error(t, r.Put(context.Background(), &models.CachedUserRecord{}))
}

func TestGet_AbsentReturnsNil(t *testing.T) {
	r := newRepo(t)
	got, err := r.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetByIndex(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	a := record("a", "a@example.com")
	b := record("b", "b@example.com")
	b.LastSyncAt = t0.Add(time.Minute)
	c := record("c", "")
	require.NoError(t, r.Put(ctx, a))
	require.NoError(t, r.Put(ctx, b))
	require.NoError(t, r.Put(ctx, c))

	byEmail, err := r.GetByIndex(ctx, IndexEmail, "b@example.com")
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "b", byEmail[0].ID)

	bySync, err := r.GetByIndex(ctx, IndexLastSyncAt, t0)
	require.NoError(t, err)
	require.Len(t, bySync, 2)
	assert.Equal(t, "a", bySync[0].ID)
	assert.Equal(t, "c", bySync[1].ID)

	none, err := r.GetByIndex(ctx, IndexEmail, "zzz@example.com")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = r.GetByIndex(ctx, "nickname", "x")
	require.ErrorIs(t, err, common.ErrUnknownIndex)

	_, err = r.GetByIndex(ctx, IndexLastSyncAt, "yesterday")
	require.Error(t, err)
}

func TestPut_EmailMustBeUnique(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, record("a", "same@example.com")))
	require.Error(t, r.Put(ctx, record("b", "same@example.com")))
}

func TestDelete_AbsentIsNoop(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, record("a", "")))
	require.NoError(t, r.Delete(ctx, "a"))
	require.NoError(t, r.Delete(ctx, "a"))

	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	require.Nil(t, got)
}
