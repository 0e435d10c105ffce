package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

// RedisConfig holds configuration for RedisStore.
type RedisConfig struct {
	// Redis client used for storage
	Redis redis.UniversalClient

	// Prefix is prepended to every key (defaults to "tabprep:state:")
	Prefix string

	// TTL is how long stored states live; zero keeps them forever
	TTL time.Duration

	// Timeout bounds each Redis call (defaults to 500ms)
	Timeout time.Duration
}

// RedisStore keeps states as Redis string values so that several processes
// can share one fitted pipeline.
type RedisStore struct {
	cfg RedisConfig
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore validates cfg and returns a store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Redis == nil {
		return nil, errors.NewValidationError("redis", "client must not be nil", nil)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "tabprep:state:"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	if cfg.TTL < 0 {
		return nil, errors.NewValidationError("ttl", "must not be negative", cfg.TTL)
	}
	return &RedisStore{cfg: cfg}, nil
}

func (s *RedisStore) key(key string) string {
	return s.cfg.Prefix + key
}

// Put stores data under key with the configured TTL.
func (s *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.cfg.Redis.Set(ctx, s.key(key), data, s.cfg.TTL).Err(); err != nil {
		return errors.Wrapf(err, "redis set %q", key)
	}
	return nil
}

// Get returns the data stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	data, err := s.cfg.Redis.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrapf(ErrStateNotFound, "key %q", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %q", key)
	}
	return data, nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.cfg.Redis.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.Wrapf(err, "redis del %q", key)
	}
	return nil
}
