package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalService_RoundTrip(t *testing.T) {
	s, err := NewLocalService(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := DocumentKey()
	require.NoError(t, s.Put(ctx, key, []byte("aGVsbG8=")))

	data, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", string(data))

	require.NoError(t, s.Put(ctx, key, []byte("d29ybGQ=")))
	data, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "d29ybGQ=", string(data))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	assert.NoError(t, s.Delete(ctx, key))
}

func TestLocalService_KeysStayUnderRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalService(root)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(s.path("../../etc/passwd"), root))
}

func TestKeysAreUnique(t *testing.T) {
	assert.NotEqual(t, DocumentKey(), DocumentKey())
	assert.NotEqual(t, GrantKey(1), GrantKey(1))
	assert.True(t, strings.HasPrefix(GrantKey(3), "grants/3/"))
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "documents/a", normalizeKey("/documents/a"))
	assert.Equal(t, "etc/passwd", normalizeKey("../../etc/passwd"))
}
