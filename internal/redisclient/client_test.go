package redisclient

import (
	"context"
	"os"
	"testing"

	"bag-service/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires REDIS_ADDR")
	}

	client, err := NewClient(addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	s := store.WithPrefix(client, uuid.New().String()+":")

	_, err = s.Get(ctx, "iartwork")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, store.PutJSON(ctx, s, "iartwork", []int64{5, 7}))

	var ids []int64
	found, err := store.GetJSON(ctx, s, "iartwork", &ids)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []int64{5, 7}, ids)

	require.NoError(t, s.Delete(ctx, "iartwork"))
	_, err = s.Get(ctx, "iartwork")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
