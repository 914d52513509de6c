package lock

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskify-stack/authkit/store"
)

// ErrContended is returned when every acquire attempt found the lock held.
var ErrContended = errors.New("lock contended")

// ErrNotOwned is returned when a release presents an identifier that does
// not match the stored lock record, or the record is already gone.
var ErrNotOwned = errors.New("lock not owned")

// keyPrefix is fixed for interoperability with existing deployments.
const keyPrefix = "lock:"

// Mutex acquires and releases named distributed locks against a shared
// Redis instance. A single Mutex can manage any number of lock names and is
// safe for concurrent use.
type Mutex struct {
	store *store.Store
	newID func() string

	acquired  atomic.Uint64
	contended atomic.Uint64
	notOwned  atomic.Uint64
}

// Stats is a point-in-time snapshot of lock outcomes.
type Stats struct {
	Acquired  uint64
	Contended uint64
	NotOwned  uint64
}

// New returns a Mutex backed by the given Redis client.
func New(client redis.UniversalClient) *Mutex {
	return &Mutex{
		store: store.New(client),
		newID: uuid.NewString,
	}
}

// Acquire attempts to take the named lock. It generates a fresh unique
// identifier, writes it with SET NX EX and the given TTL, and on contention
// retries up to retryTimes total attempts with a fixed retryDelay between
// them (no backoff). On success the identifier is returned as the caller's
// proof of ownership for Release.
//
// Failure modes are distinct: ErrContended when all attempts found the lock
// held, a [store.ErrUnavailable]-wrapped error when Redis is unreachable
// (the first transport failure aborts the loop), and ctx.Err() when the
// caller cancels mid-retry.
func (m *Mutex) Acquire(ctx context.Context, name string, ttl time.Duration, retryTimes int, retryDelay time.Duration) (string, error) {
	if retryTimes < 1 {
		retryTimes = 1
	}

	identifier := m.newID()
	key := keyPrefix + name

	for attempt := 0; attempt < retryTimes; attempt++ {
		ok, err := m.store.SetIfAbsent(ctx, key, identifier, ttl)
		if err != nil {
			return "", err
		}
		if ok {
			m.acquired.Add(1)
			return identifier, nil
		}

		if attempt == retryTimes-1 {
			break
		}
		if err := sleep(ctx, retryDelay); err != nil {
			return "", err
		}
	}

	m.contended.Add(1)
	return "", ErrContended
}

// Release removes the named lock if and only if the stored identifier
// matches the one returned by Acquire. The check and the delete happen in a
// single atomic server-side operation, so a lock that expired and was
// re-acquired by another holder can never be deleted by the stale owner.
func (m *Mutex) Release(ctx context.Context, name, identifier string) error {
	deleted, err := m.store.CompareAndDelete(ctx, keyPrefix+name, identifier)
	if err != nil {
		return err
	}
	if !deleted {
		m.notOwned.Add(1)
		return ErrNotOwned
	}
	return nil
}

// Snapshot returns cumulative lock outcome counters.
func (m *Mutex) Snapshot() Stats {
	return Stats{
		Acquired:  m.acquired.Load(),
		Contended: m.contended.Load(),
		NotOwned:  m.notOwned.Load(),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
