package sessions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBag_Values(t *testing.T) {
	b := newBag("", nil)
	assert.NotEmpty(t, b.ID())

	_, ok := b.Get("missing")
	assert.False(t, ok)

	b.Set("user_id", "7")
	v, ok := b.Get("user_id")
	assert.True(t, ok)
	assert.Equal(t, "7", v)

	b.Delete("user_id")
	_, ok = b.Get("user_id")
	assert.False(t, ok)

	b.Set("a", "1")
	b.Set("b", "2")
	b.Clear()
	_, ok = b.Get("a")
	assert.False(t, ok)
}

func TestBag_RegenerateKeepsValues(t *testing.T) {
	b := newBag("", nil)
	b.Set("user_id", "7")
	oldID := b.ID()

	b.Regenerate()

	assert.NotEqual(t, oldID, b.ID())
	v, ok := b.Get("user_id")
	assert.True(t, ok)
	assert.Equal(t, "7", v)
	assert.Contains(t, b.stale, oldID)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sess, err := store.Load(ctx, "")
	require.NoError(t, err)
	sess.Set("user_id", "7")
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, sess.ID())
	require.NoError(t, err)
	v, ok := loaded.Get("user_id")
	assert.True(t, ok)
	assert.Equal(t, "7", v)
}

func TestMemoryStore_UnknownIDIsFresh(t *testing.T) {
	store := NewMemoryStore()

	sess, err := store.Load(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Equal(t, "does-not-exist", sess.ID())
	_, ok := sess.Get("user_id")
	assert.False(t, ok)
}

func TestMemoryStore_SaveDropsStaleIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sess, err := store.Load(ctx, "")
	require.NoError(t, err)
	sess.Set("user_id", "7")
	require.NoError(t, store.Save(ctx, sess))
	oldID := sess.ID()

	sess.Regenerate()
	require.NoError(t, store.Save(ctx, sess))

	assert.False(t, store.Has(oldID), "pre-regeneration identifier must be invalidated")
	assert.True(t, store.Has(sess.ID()))
}

func TestMemoryStore_EmptySessionIsDeleted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sess, err := store.Load(ctx, "")
	require.NoError(t, err)
	sess.Set("user_id", "7")
	require.NoError(t, store.Save(ctx, sess))
	require.True(t, store.Has(sess.ID()))

	sess.Clear()
	require.NoError(t, store.Save(ctx, sess))
	assert.False(t, store.Has(sess.ID()))
}
