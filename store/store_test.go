package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

// exerciseStore runs the behaviour every Store must share.
func exerciseStore(t *testing.T, s Store, key string) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, key)
	assert.True(t, errors.Is(err, ErrStateNotFound), "got %v", err)

	require.NoError(t, s.Put(ctx, key, []byte(`{"v":1}`)))
	require.NoError(t, s.Put(ctx, key, []byte(`{"v":2}`)))

	data, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.True(t, errors.Is(err, ErrStateNotFound))
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "states")
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	exerciseStore(t, s, "housing")

	require.NoError(t, s.Put(context.Background(), "kept", []byte("x")))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
	assert.Equal(t, "kept.json", entries[0].Name())
}

func TestFileStoreRejectsBadKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "a/b", `a\b`} {
		err := s.Put(context.Background(), key, []byte("x"))
		var vErr *errors.ValidationError
		assert.True(t, errors.As(err, &vErr), "key %q", key)
	}
}

func TestFileStoreHonoursContext(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Put(ctx, "k", []byte("x")), context.Canceled)
}

func TestNewRedisStoreValidation(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{})
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer rdb.Close()
	s, err := NewRedisStore(RedisConfig{Redis: rdb})
	require.NoError(t, err)
	assert.Equal(t, "tabprep:state:k", s.key("k"))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TABPREP_REDIS_ADDR")
	if addr == "" {
		t.Skip("TABPREP_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	s, err := NewRedisStore(RedisConfig{
		Redis:  rdb,
		Prefix: "tabprep:test:",
		TTL:    time.Minute,
	})
	require.NoError(t, err)
	exerciseStore(t, s, "housing")
}
