package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/support-chat/internal/domain"
)

func TestKVStore(t *testing.T) {
	ctx := context.Background()
	kv := NewKVStore()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	value := []byte("v1")
	require.NoError(t, kv.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	got[0] = 'y'
	again, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(again), "stored values are copied in and out")
	assert.Equal(t, 1, kv.Len())

	require.NoError(t, kv.Remove(ctx, "k"))
	require.NoError(t, kv.Remove(ctx, "k"))
	assert.Equal(t, 0, kv.Len())
	assert.NoError(t, kv.Ping(ctx))
}
