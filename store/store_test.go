package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "miniredis run")

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return New(rdb), mr
}

func TestSetWithTTLOverwrites(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetWithTTL(ctx, "k", "v1", time.Minute))
	require.NoError(t, s.SetWithTTL(ctx, "k", "v2", time.Hour))

	value, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
	assert.Equal(t, time.Hour, mr.TTL("k"))
}

func TestSetIfAbsent(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	ok, err := s.SetIfAbsent(ctx, "k", "first", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetIfAbsent(ctx, "k", "second", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "existing key must not be overwritten")

	value, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "first", value)
}

func TestGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	value, found, err := s.Get(ctx, "absent")
	require.NoError(t, err, "a miss is not a transport failure")
	assert.False(t, found)
	assert.Empty(t, value)

	require.NoError(t, s.SetWithTTL(ctx, "k", "v", time.Minute))
	value, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", value)
}

func TestDeleteAndExists(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, "absent"), "deleting an absent key is fine")

	require.NoError(t, s.SetWithTTL(ctx, "k", "v", time.Minute))
	present, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, present)

	require.NoError(t, s.Delete(ctx, "k"))
	present, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, present)
}

func TestCompareAndDelete(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetWithTTL(ctx, "k", "owner-1", time.Minute))

	deleted, err := s.CompareAndDelete(ctx, "k", "owner-2")
	require.NoError(t, err)
	assert.False(t, deleted, "mismatched value must not delete")
	assert.True(t, mr.Exists("k"))

	deleted, err = s.CompareAndDelete(ctx, "k", "owner-1")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists("k"))

	deleted, err = s.CompareAndDelete(ctx, "k", "owner-1")
	require.NoError(t, err)
	assert.False(t, deleted, "deleting a gone key reports false, not an error")
}

func TestTransportErrorsWrapUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := New(rdb)
	ctx := context.Background()

	mr.Close()

	assert.ErrorIs(t, s.SetWithTTL(ctx, "k", "v", time.Minute), ErrUnavailable)

	_, err = s.SetIfAbsent(ctx, "k", "v", time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, _, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.ErrorIs(t, s.Delete(ctx, "k"), ErrUnavailable)

	_, err = s.Exists(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = s.CompareAndDelete(ctx, "k", "v")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = s.Ping(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPing(t *testing.T) {
	s, _ := newTestStore(t)

	latency, err := s.Ping(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, latency, time.Duration(0))
}

func TestGetMissIsNotUnavailable(t *testing.T) {
	s, _ := newTestStore(t)

	_, found, err := s.Get(context.Background(), "absent")
	assert.False(t, found)
	assert.False(t, errors.Is(err, ErrUnavailable))
	assert.NoError(t, err)
}
