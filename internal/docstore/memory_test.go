package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "builds/b1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "builds/b1", Document{"name": "morning run"}))

	doc, err := store.Get(ctx, "builds/b1")
	require.NoError(t, err)
	assert.Equal(t, "morning run", doc["name"])

	// Deleting twice is a no-op, not an error.
	require.NoError(t, store.Delete(ctx, "builds/b1"))
	require.NoError(t, store.Delete(ctx, "builds/b1"))

	_, err = store.Get(ctx, "builds/b1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorePathValidation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "builds")
	assert.ErrorIs(t, err, ErrInvalidPath)

	err = store.Set(ctx, "builds/b1/by", Document{})
	assert.ErrorIs(t, err, ErrInvalidPath)

	err = store.Set(ctx, "builds//b1/x", Document{})
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = store.List(ctx, "builds/b1")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestMemoryStoreListDirectChildrenOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "likes/b1/by/u1", Document{}))
	require.NoError(t, store.Set(ctx, "likes/b1/by/u2", Document{}))
	require.NoError(t, store.Set(ctx, "likes/b2/by/u1", Document{}))

	entries, err := store.List(ctx, "likes/b1/by")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "u1", entries[0].ID)
	assert.Equal(t, "u2", entries[1].ID)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "builds/b1", Document{"popularity": int64(3)}))

	doc, err := store.Get(ctx, "builds/b1")
	require.NoError(t, err)
	doc["popularity"] = int64(99)

	doc2, err := store.Get(ctx, "builds/b1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), doc2["popularity"])
}

func TestMemoryStoreTransactionCreatesAndUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.RunTransaction(ctx, "builds/b1", func(cur Document, exists bool) (Document, error) {
		assert.False(t, exists)
		return Document{"popularity": int64(1)}, nil
	})
	require.NoError(t, err)

	// Returning nil leaves the document untouched.
	err = store.RunTransaction(ctx, "builds/b1", func(cur Document, exists bool) (Document, error) {
		assert.True(t, exists)
		return nil, nil
	})
	require.NoError(t, err)

	doc, err := store.Get(ctx, "builds/b1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc["popularity"])
}

func TestMemoryStoreTransactionError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	boom := errors.New("boom")

	err := store.RunTransaction(ctx, "builds/b1", func(cur Document, exists bool) (Document, error) {
		return Document{"popularity": int64(1)}, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Get(ctx, "builds/b1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "builds/b1", Document{"popularity": int64(0)}))

	const workers = 100
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = store.RunTransaction(ctx, "builds/b1", func(cur Document, exists bool) (Document, error) {
				cur["popularity"] = cur["popularity"].(int64) + 1
				return cur, nil
			})
		}()
	}
	wg.Wait()

	doc, err := store.Get(ctx, "builds/b1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers), doc["popularity"])
}
