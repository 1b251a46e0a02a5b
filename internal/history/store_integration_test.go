//go:build integration

package history

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellora/coach/internal/testutil"
)

func TestStoreAppendAndListRecent(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(db.Pool, testutil.Logger())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := store.Append(ctx, "conv-1", "user", "hello", 2, nil)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.NotZero(t, first.CreatedAt)

	_, err = store.Append(ctx, "conv-1", "assistant", "hi there", 3,
		map[string]string{"model": "gpt-3.5-turbo"})
	require.NoError(t, err)

	// Other conversations stay isolated.
	_, err = store.Append(ctx, "conv-2", "user", "unrelated", 1, nil)
	require.NoError(t, err)

	recent, err := store.ListRecent(ctx, "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "hello", recent[0].Content)
	assert.Equal(t, "hi there", recent[1].Content)
	assert.Equal(t, "gpt-3.5-turbo", recent[1].Metadata["model"])

	count, err := store.Count(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStoreListPagination(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(db.Pool, testutil.Logger())
	require.NoError(t, err)
	ctx := context.Background()

	contents := []string{"one", "two", "three", "four"}
	ids := make([]uuid.UUID, len(contents))
	for i, c := range contents {
		m, err := store.Append(ctx, "conv-1", "user", c, 1, nil)
		require.NoError(t, err)
		ids[i] = m.ID
	}

	// Newest first, bounded.
	page, err := store.List(ctx, "conv-1", 2, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "four", page[0].Content)
	assert.Equal(t, "three", page[1].Content)

	// Older than "three".
	older, err := store.List(ctx, "conv-1", 10, &ids[2])
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "two", older[0].Content)
	assert.Equal(t, "one", older[1].Content)
}

func TestStoreTypingRoundTrip(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(db.Pool, testutil.Logger())
	require.NoError(t, err)
	ctx := context.Background()

	typing, err := store.GetTyping(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, typing, "unknown conversation reads as not typing")

	require.NoError(t, store.SetTyping(ctx, "conv-1", true))
	typing, err = store.GetTyping(ctx, "conv-1")
	require.NoError(t, err)
	assert.True(t, typing)

	// Upsert, not insert.
	require.NoError(t, store.SetTyping(ctx, "conv-1", false))
	typing, err = store.GetTyping(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, typing)
}
