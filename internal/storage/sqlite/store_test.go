package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "robots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "https://example.com", []byte("User-agent: *"), time.Hour))
	got, ok, err := store.Read(ctx, "https://example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "User-agent: *", string(got))

	require.NoError(t, store.Write(ctx, "https://example.com", []byte("Disallow: /"), time.Hour))
	got, _, err = store.Read(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Disallow: /", string(got))

	require.NoError(t, store.Delete(ctx, "https://example.com"))
	_, ok, err = store.Read(ctx, "https://example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreExpiryAndPurge(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Write(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, store.Write(ctx, "forever", []byte("b"), 0))

	now = now.Add(2 * time.Second)
	_, ok, err := store.Read(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err = store.Read(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.Error(t, err)
}
