package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docshare/docshare/internal/config"
)

func TestRedisRevoker_Mock(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRedisRevoker(db)
	r.now = func() time.Time { return now }

	t.Run("Revoke sets key with remaining lifetime", func(t *testing.T) {
		mock.ExpectSet("blacklist:tok", "1", time.Hour).SetVal("OK")
		assert.NoError(t, r.Revoke(ctx, "tok", now.Add(time.Hour)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Revoke of an expired token is a no-op", func(t *testing.T) {
		assert.NoError(t, r.Revoke(ctx, "old", now.Add(-time.Minute)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("IsRevoked true", func(t *testing.T) {
		mock.ExpectGet("blacklist:tok").SetVal("1")
		revoked, err := r.IsRevoked(ctx, "tok")
		assert.NoError(t, err)
		assert.True(t, revoked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("IsRevoked false", func(t *testing.T) {
		mock.ExpectGet("blacklist:other").RedisNil()
		revoked, err := r.IsRevoked(ctx, "other")
		assert.NoError(t, err)
		assert.False(t, revoked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("IsRevoked error", func(t *testing.T) {
		mock.ExpectGet("blacklist:tok").SetErr(errors.New("connection refused"))
		_, err := r.IsRevoked(ctx, "tok")
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedisRevoker_Miniredis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	rev, err := NewRevoker(ctx, config.CacheConfig{
		Type:  "redis",
		Redis: config.RedisConfig{Address: mr.Addr()},
	})
	require.NoError(t, err)
	require.IsType(t, &RedisRevoker{}, rev)

	require.NoError(t, rev.Revoke(ctx, "tok", time.Now().Add(time.Hour)))
	assert.True(t, mr.Exists("blacklist:tok"))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL("blacklist:tok").Seconds(), 5)

	revoked, err := rev.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Hour)
	revoked, err = rev.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestNewRevoker_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRevoker(context.Background(), config.CacheConfig{
		Type:  "redis",
		Redis: config.RedisConfig{Address: addr},
	})
	assert.Error(t, err)
}

func TestMemoryRevoker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryRevoker()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Revoke(ctx, "tok", now.Add(time.Hour)))
	require.NoError(t, m.Revoke(ctx, "stale", now.Add(-time.Second)))

	revoked, err := m.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = m.IsRevoked(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, err = m.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Empty(t, m.entries)
}

func TestNewRevoker_Memory(t *testing.T) {
	rev, err := NewRevoker(context.Background(), config.CacheConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryRevoker{}, rev)
}
