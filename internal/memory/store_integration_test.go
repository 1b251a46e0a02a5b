//go:build integration

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellora/coach/internal/testutil"
)

func TestStoreAppendAndList(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(db.Pool, testutil.NewMemoryCache(), testutil.Logger())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Append(ctx, "conv-1", TypeFact, "has diabetes", 9, nil)
	require.NoError(t, err)
	_, err = store.Append(ctx, "conv-1", TypePreference, "prefers morning workouts", 4, nil)
	require.NoError(t, err)
	_, err = store.Append(ctx, "conv-2", TypeGoal, "unrelated goal", 5, nil)
	require.NoError(t, err)

	memories, err := store.List(ctx, "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, memories, 2)
	assert.Equal(t, "has diabetes", memories[0].Content, "importance orders first")
	assert.Equal(t, 9, memories[0].Importance)
}

func TestStoreAppendClampsAndValidates(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(db.Pool, nil, testutil.Logger())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Append(ctx, "conv-1", "rumor", "nope", 5, nil)
	require.Error(t, err, "unknown type is rejected")

	m, err := store.Append(ctx, "conv-1", TypeConcern, "worried about sleep", 42, nil)
	require.NoError(t, err)
	assert.Equal(t, MaxImportance, m.Importance)
}

func TestStoreListServesFromCacheAndInvalidates(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	c := testutil.NewMemoryCache()
	store, err := NewStore(db.Pool, c, testutil.Logger())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Append(ctx, "conv-1", TypeFact, "first", 5, nil)
	require.NoError(t, err)

	first, err := store.List(ctx, "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, c.Has("memories:conv-1:10"), "list populates the cache")

	// A new memory must drop the cached list.
	_, err = store.Append(ctx, "conv-1", TypeFact, "second", 5, nil)
	require.NoError(t, err)
	assert.False(t, c.Has("memories:conv-1:10"))

	second, err := store.List(ctx, "conv-1", 10)
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestStoreSetImportance(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store, err := NewStore(db.Pool, nil, testutil.Logger())
	require.NoError(t, err)
	ctx := context.Background()

	m, err := store.Append(ctx, "conv-1", TypeGoal, "run a 10k", 3, nil)
	require.NoError(t, err)

	require.NoError(t, store.SetImportance(ctx, m.ID, 8))

	memories, err := store.List(ctx, "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, 8, memories[0].Importance)
}
