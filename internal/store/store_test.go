package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"bag-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	testStorage(t, store.NewMemory())
}

func TestBoltStorage(t *testing.T) {
	s, err := store.NewBolt(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	testStorage(t, s)
}

func TestBoltStorageSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := store.NewBolt(path)
	require.NoError(t, err)
	require.NoError(t, store.PutJSON(ctx, s, "iartwork", []int64{3, 1}))
	require.NoError(t, s.Close())

	reopened, err := store.NewBolt(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	var ids []int64
	found, err := store.GetJSON(ctx, reopened, "iartwork", &ids)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []int64{3, 1}, ids)
}

func TestPrefixedStorage(t *testing.T) {
	backend := store.NewMemory()
	ctx := context.Background()

	alice := store.WithPrefix(backend, "alice:")
	bob := store.WithPrefix(backend, "bob:")

	require.NoError(t, alice.Set(ctx, "iartwork", []byte("[1]")))
	require.NoError(t, bob.Set(ctx, "iartwork", []byte("[2]")))

	v, err := alice.Get(ctx, "iartwork")
	require.NoError(t, err)
	assert.Equal(t, "[1]", string(v))

	v, err = bob.Get(ctx, "iartwork")
	require.NoError(t, err)
	assert.Equal(t, "[2]", string(v))

	assert.ElementsMatch(t, []string{"alice:iartwork", "bob:iartwork"}, backend.Keys())

	require.NoError(t, alice.Close())
	_, err = backend.Get(ctx, "bob:iartwork")
	assert.NoError(t, err, "closing a prefixed view must not close the backend")
}

func TestGetJSONDecodeError(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "orders", []byte("not json")))

	var v []string
	_, err := store.GetJSON(ctx, s, "orders", &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode orders")
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	value := []byte("[1,2]")
	require.NoError(t, s.Set(ctx, "iartwork", value))
	value[1] = '9'

	got, err := s.Get(ctx, "iartwork")
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", string(got))
}

// testStorage exercises the Storage contract shared by every backend
func testStorage(t *testing.T, s store.Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "iartwork")
	require.ErrorIs(t, err, store.ErrNotFound)

	var ids []int64
	found, err := store.GetJSON(ctx, s, "iartwork", &ids)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.PutJSON(ctx, s, "iartwork", []int64{1, 2, 2}))
	found, err = store.GetJSON(ctx, s, "iartwork", &ids)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []int64{1, 2, 2}, ids)

	// last write wins
	require.NoError(t, store.PutJSON(ctx, s, "iartwork", []int64{}))
	found, err = store.GetJSON(ctx, s, "iartwork", &ids)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, ids)

	require.NoError(t, s.Delete(ctx, "iartwork"))
	_, err = s.Get(ctx, "iartwork")
	require.ErrorIs(t, err, store.ErrNotFound)

	// deleting a missing key is not an error
	require.NoError(t, s.Delete(ctx, "iartwork"))
}
