package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("Requires database connection - set POSTGRES_TEST_DSN to run")
	}
	ctx := context.Background()

	require.NoError(t, RunMigrations(dsn))
	// a second run finds nothing to do
	require.NoError(t, RunMigrations(dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	kv := NewKVStore(pool)
	t.Cleanup(func() { kv.Remove(context.Background(), "test:key") })

	_, err = kv.Get(ctx, "test:key")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, kv.Set(ctx, "test:key", []byte("one")))
	require.NoError(t, kv.Set(ctx, "test:key", []byte("two")))
	got, err := kv.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	require.NoError(t, kv.Remove(ctx, "test:key"))
	_, err = kv.Get(ctx, "test:key")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
