package authkit

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeClock is a controllable time source so expiry tests never sleep.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "miniredis run")

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return mr, rdb
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Token.Secret = []byte("test-signing-secret")
	return cfg
}

func newTestService(t *testing.T, cfg Config) (*Service, *miniredis.Miniredis, *fakeClock) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	clk := newFakeClock(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))

	service, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithTimeFunc(clk.Now).
		Build()
	require.NoError(t, err, "build service")
	t.Cleanup(service.Close)

	return service, mr, clk
}
