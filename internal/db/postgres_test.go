package db

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a disposable database only: DB_TEST=1 plus the usual DB_* variables.
func TestPostgresStoreImportAndLoad(t *testing.T) {
	if os.Getenv("DB_TEST") != "1" {
		t.Skip("DB_TEST not set")
	}
	ctx := context.Background()

	pool, err := Open(ctx, LoadConfigFromEnv())
	require.NoError(t, err)
	defer pool.Close()

	store := NewPostgresStore(pool, nil)
	require.NoError(t, store.HealthCheck(ctx))
	require.NoError(t, store.EnsureSchema(ctx))

	entry, err := store.Import(ctx, sampleFeed("pg-v1"), "test")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, entry.Status)

	feed, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pg-v1", feed.Version)
	require.Len(t, feed.Stops, 2)
	assert.Equal(t, "s2", feed.Stops[0].StopID)
	assert.Equal(t, sampleFeed("pg-v1").StopTimes, feed.StopTimes)
}
