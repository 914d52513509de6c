package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps every transport-level Redis failure returned by this
// package. Logical misses (absent keys, value mismatches) are never wrapped
// with it.
var ErrUnavailable = errors.New("store unavailable")

// compareAndDeleteScript deletes KEYS[1] only when its current value equals
// ARGV[1]. A plain read-then-delete is racy: the key could expire and be
// re-acquired by another holder between the two commands.
const compareAndDeleteScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end
`

var compareAndDeleteLua = redis.NewScript(compareAndDeleteScript)

// Store is a thin key-value adapter over a Redis client. It is safe for
// concurrent use; all coordination lives in Redis itself.
type Store struct {
	redis redis.UniversalClient
}

// New returns a Store backed by the given Redis client. The caller retains
// ownership of the client and is responsible for closing it.
func New(client redis.UniversalClient) *Store {
	return &Store{redis: client}
}

// SetWithTTL writes value under key with the given TTL, overwriting any
// existing entry. A non-positive TTL writes without expiry.
func (s *Store) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SetIfAbsent atomically writes value under key with the given TTL only when
// the key does not exist (SET NX EX). Returns false when the key was already
// present.
func (s *Store) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.redis.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// Get reads the value under key. found is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, true, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// CompareAndDelete atomically deletes key only when its stored value equals
// expected. Returns false when the value differs or the key is gone.
func (s *Store) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	result, err := compareAndDeleteLua.Run(ctx, s.redis, []string{key}, expected).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	deleted, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("%w: invalid check-and-delete script response", ErrUnavailable)
	}
	return deleted == 1, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
