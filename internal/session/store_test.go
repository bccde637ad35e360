package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenShape(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)

	other, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestMemoryStoreCreateLookup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	sess, err := store.Create(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "alice", sess.Username)
	assert.Len(t, sess.Token, 64)
	assert.False(t, sess.CreatedAt.IsZero())

	found, err := store.Lookup(ctx, sess.Token)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "alice", found.Username)
}

func TestMemoryStoreUnknownToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	found, err := store.Lookup(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMemoryStoreDestroy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	sess, err := store.Create(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, store.Destroy(ctx, sess.Token))

	found, err := store.Lookup(ctx, sess.Token)
	require.NoError(t, err)
	assert.Nil(t, found)

	// Destroying an already-destroyed token succeeds.
	require.NoError(t, store.Destroy(ctx, sess.Token))
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(20 * time.Millisecond)

	sess, err := store.Create(ctx, "carol")
	require.NoError(t, err)

	found, err := store.Lookup(ctx, sess.Token)
	require.NoError(t, err)
	require.NotNil(t, found)

	time.Sleep(50 * time.Millisecond)

	found, err = store.Lookup(ctx, sess.Token)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMemoryStoreDistinctTokens(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		sess, err := store.Create(ctx, "dave")
		require.NoError(t, err)
		assert.False(t, seen[sess.Token])
		seen[sess.Token] = true
	}
}
