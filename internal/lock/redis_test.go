package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Redis, *logtest.Hook) {
	t.Helper()
	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	log, hook := logtest.NewNullLogger()
	return m, NewRedis(rdb, "lock", ttl, log), hook
}

func TestRedis_LockAndRelease(t *testing.T) {
	m, l, _ := newRedisLocker(t, time.Second)

	unlock, err := l.Lock(context.Background(), AuditoriumKey(1))
	require.NoError(t, err)
	assert.True(t, m.Exists("lock:auditorium:1"))
	assert.Equal(t, time.Second, m.TTL("lock:auditorium:1"))

	unlock()
	assert.False(t, m.Exists("lock:auditorium:1"))
	unlock()
}

func TestRedis_ContentionBlocksUntilRelease(t *testing.T) {
	_, l, _ := newRedisLocker(t, time.Second)
	key := AuditoriumKey(7)

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	second, err := l.Lock(ctx, key)
	assert.Error(t, err)
	assert.Nil(t, second)

	other, err := l.Lock(context.Background(), ProjectionKey(uuid.New()))
	require.NoError(t, err)
	other()

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(context.Background(), key)
		if err == nil {
			close(acquired)
			u()
		}
	}()
	select {
	case <-acquired:
		t.Fatal("acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}

func TestRedis_ReleaseAfterContextCancelled(t *testing.T) {
	m, l, _ := newRedisLocker(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	unlock, err := l.Lock(ctx, AuditoriumKey(2))
	require.NoError(t, err)
	cancel()
	unlock()
	assert.False(t, m.Exists("lock:auditorium:2"))
}

func TestRedis_RenewsLeaseWhileHeld(t *testing.T) {
	m, l, _ := newRedisLocker(t, 300*time.Millisecond)
	const full = "lock:auditorium:3"

	unlock, err := l.Lock(context.Background(), AuditoriumKey(3))
	require.NoError(t, err)
	defer unlock()

	// Twice the TTL passes in total; only renewal keeps the key alive.
	for i := 0; i < 3; i++ {
		m.FastForward(200 * time.Millisecond)
		require.True(t, m.Exists(full))
		require.Eventually(t, func() bool { return m.TTL(full) > 200*time.Millisecond },
			2*time.Second, 10*time.Millisecond)
	}
}

func TestRedis_ExpiredHolderCannotReleaseNewOwner(t *testing.T) {
	m, l, hook := newRedisLocker(t, time.Second)
	const full = "lock:auditorium:4"

	unlockA, err := l.Lock(context.Background(), AuditoriumKey(4))
	require.NoError(t, err)
	m.FastForward(2 * time.Second)
	require.False(t, m.Exists(full))

	unlockB, err := l.Lock(context.Background(), AuditoriumKey(4))
	require.NoError(t, err)
	tokenB, err := m.Get(full)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "lock lost before release" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	unlockA()
	got, err := m.Get(full)
	require.NoError(t, err)
	assert.Equal(t, tokenB, got)
	assert.Equal(t, time.Second, m.TTL(full), "the stale holder must not renew the new owner's lease")

	unlockB()
	assert.False(t, m.Exists(full))
}

func TestRedis_UnreachableServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()
	log, _ := logtest.NewNullLogger()

	unlock, err := NewRedis(rdb, "lock", time.Second, log).Lock(context.Background(), AuditoriumKey(1))
	assert.Error(t, err)
	assert.Nil(t, unlock)
}
