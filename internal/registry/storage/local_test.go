package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_RoundTrip(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "abc123", strings.NewReader("hello")))

	data, err := store.GetBytes(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	exists, err := store.Exists(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, "abc123"))
	exists, err = store.Exists(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocal_MissingBlob(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.GetBytes(context.Background(), "nope12")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_RejectsPathyIDs(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestMemory_RoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "id1", strings.NewReader("data")))
	data, err := store.GetBytes(ctx, "id1")
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	require.NoError(t, store.Delete(ctx, "id1"))
	_, err = store.GetBytes(ctx, "id1")
	assert.ErrorIs(t, err, ErrNotFound)
}
