package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskify-stack/authkit/store"
)

func newTestMutex(t *testing.T) (*Mutex, *miniredis.Miniredis) {
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

func TestAcquireAndRelease(t *testing.T) {
	mutex, mr := newTestMutex(t)
	ctx := context.Background()

	identifier, err := mutex.Acquire(ctx, "jobs", 10*time.Second, 1, 0)
	require.NoError(t, err)
	require.NotEmpty(t, identifier)

	stored, err := mr.Get("lock:jobs")
	require.NoError(t, err)
	assert.Equal(t, identifier, stored, "lock record holds the owner identifier")
	assert.Equal(t, 10*time.Second, mr.TTL("lock:jobs"))

	require.NoError(t, mutex.Release(ctx, "jobs", identifier))
	assert.False(t, mr.Exists("lock:jobs"))
}

func TestAcquireContended(t *testing.T) {
	mutex, _ := newTestMutex(t)
	ctx := context.Background()

	first, err := mutex.Acquire(ctx, "jobs", time.Minute, 1, 0)
	require.NoError(t, err)

	start := time.Now()
	_, err = mutex.Acquire(ctx, "jobs", time.Minute, 3, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrContended)
	// two delays between three attempts, none after the last
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	require.NoError(t, mutex.Release(ctx, "jobs", first))

	second, err := mutex.Acquire(ctx, "jobs", time.Minute, 1, 0)
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "each acquisition gets a fresh identifier")
}

func TestAcquireRetrySucceedsAfterExpiry(t *testing.T) {
	mutex, mr := newTestMutex(t)
	ctx := context.Background()

	_, err := mutex.Acquire(ctx, "jobs", 50*time.Millisecond, 1, 0)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		// lock TTLs only advance in miniredis via explicit fast-forward
		time.Sleep(30 * time.Millisecond)
		mr.FastForward(time.Second)
		close(done)
	}()

	identifier, err := mutex.Acquire(ctx, "jobs", time.Minute, 10, 20*time.Millisecond)
	require.NoError(t, err, "retry loop must win once the holder's TTL lapses")
	require.NotEmpty(t, identifier)
	<-done
}

func TestReleaseWrongIdentifier(t *testing.T) {
	mutex, mr := newTestMutex(t)
	ctx := context.Background()

	identifier, err := mutex.Acquire(ctx, "jobs", time.Minute, 1, 0)
	require.NoError(t, err)

	assert.ErrorIs(t, mutex.Release(ctx, "jobs", "not-the-owner"), ErrNotOwned)
	assert.True(t, mr.Exists("lock:jobs"), "a failed release must leave the lock intact")

	require.NoError(t, mutex.Release(ctx, "jobs", identifier))
}

func TestReleaseAfterExpiryAndReacquire(t *testing.T) {
	mutex, mr := newTestMutex(t)
	ctx := context.Background()

	stale, err := mutex.Acquire(ctx, "jobs", time.Second, 1, 0)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	current, err := mutex.Acquire(ctx, "jobs", time.Minute, 1, 0)
	require.NoError(t, err)

	// the stale owner's release must not evict the new holder
	assert.ErrorIs(t, mutex.Release(ctx, "jobs", stale), ErrNotOwned)

	stored, err := mr.Get("lock:jobs")
	require.NoError(t, err)
	assert.Equal(t, current, stored)

	require.NoError(t, mutex.Release(ctx, "jobs", current))
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	mutex, _ := newTestMutex(t)
	ctx := context.Background()

	const goroutines = 8
	var wg sync.WaitGroup
	winners := make(chan string, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if identifier, err := mutex.Acquire(ctx, "jobs", time.Minute, 1, 0); err == nil {
				winners <- identifier
			}
		}()
	}
	wg.Wait()
	close(winners)

	var held []string
	for identifier := range winners {
		held = append(held, identifier)
	}
	require.Len(t, held, 1, "exactly one goroutine may hold the lock")
	require.NoError(t, mutex.Release(ctx, "jobs", held[0]))
}

func TestAcquireContextCancelledDuringRetry(t *testing.T) {
	mutex, _ := newTestMutex(t)

	_, err := mutex.Acquire(context.Background(), "jobs", time.Minute, 1, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = mutex.Acquire(ctx, "jobs", time.Minute, 100, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquireStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mutex := New(rdb)

	mr.Close()

	_, err = mutex.Acquire(context.Background(), "jobs", time.Minute, 3, time.Millisecond)
	assert.ErrorIs(t, err, store.ErrUnavailable, "transport failure aborts instead of retrying")

	assert.ErrorIs(t, mutex.Release(context.Background(), "jobs", "anything"), store.ErrUnavailable)
}

func TestSnapshotCounters(t *testing.T) {
	mutex, _ := newTestMutex(t)
	ctx := context.Background()

	identifier, err := mutex.Acquire(ctx, "jobs", time.Minute, 1, 0)
	require.NoError(t, err)

	_, err = mutex.Acquire(ctx, "jobs", time.Minute, 2, time.Millisecond)
	require.ErrorIs(t, err, ErrContended)

	require.ErrorIs(t, mutex.Release(ctx, "jobs", "wrong"), ErrNotOwned)
	require.NoError(t, mutex.Release(ctx, "jobs", identifier))

	stats := mutex.Snapshot()
	assert.Equal(t, uint64(1), stats.Acquired)
	assert.Equal(t, uint64(1), stats.Contended)
	assert.Equal(t, uint64(1), stats.NotOwned)
}
