package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/postpilot/internal/logger"
	"github.com/jonesrussell/postpilot/internal/models"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), logger.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	in := doc{Name: "alpha", Count: 3}
	require.NoError(t, store.Save(ctx, "testdoc", in))

	var out doc
	require.NoError(t, store.Load(ctx, "testdoc", &out))
	assert.Equal(t, in, out)
}

func TestFileStoreMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), logger.NewNop())
	require.NoError(t, err)

	var out doc
	err = store.Load(context.Background(), "nope", &out)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{truncated"), 0o600))

	var out doc
	err = store.Load(context.Background(), "bad", &out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrNotFound)
}

func TestFileStoreOverwrite(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), logger.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "testdoc", doc{Name: "first"}))
	require.NoError(t, store.Save(ctx, "testdoc", doc{Name: "second"}))

	var out doc
	require.NoError(t, store.Load(ctx, "testdoc", &out))
	assert.Equal(t, "second", out.Name)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	in := doc{Name: "beta", Count: 7}
	require.NoError(t, store.Save(ctx, "testdoc", in))

	var out doc
	require.NoError(t, store.Load(ctx, "testdoc", &out))
	assert.Equal(t, in, out)

	err := store.Load(ctx, "missing", &out)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Mutating the saved value must not affect the stored copy.
	in := []string{"a", "b"}
	require.NoError(t, store.Save(ctx, "list", in))
	in[0] = "mutated"

	var out []string
	require.NoError(t, store.Load(ctx, "list", &out))
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, logger.NewNop())
	ctx := context.Background()

	in := doc{Name: "gamma", Count: 11}
	require.NoError(t, store.Save(ctx, "testdoc", in))

	var out doc
	require.NoError(t, store.Load(ctx, "testdoc", &out))
	assert.Equal(t, in, out)

	// Stored under the namespaced key.
	assert.True(t, mr.Exists("postpilot:state:testdoc"))
}

func TestRedisStoreMissingKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, logger.NewNop())

	var out doc
	err := store.Load(context.Background(), "nope", &out)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRateLimitKey(t *testing.T) {
	assert.Equal(t, "rate_limit_blogger", RateLimitKey("blogger"))
}
