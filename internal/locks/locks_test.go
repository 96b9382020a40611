package locks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/staffline/pkg/logging"
)

func exerciseExclusive(t *testing.T, l Locker) {
	t.Helper()
	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			unlock, err := l.Lock(ctx, "c-1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
}

func TestKeyedMutexExclusive(t *testing.T) {
	k := NewKeyedMutex()
	exerciseExclusive(t, k)
	assert.Equal(t, 0, k.Len())
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	k := NewKeyedMutex()
	a, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer a()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b, err := k.Lock(ctx, "b")
	require.NoError(t, err)
	b()
	b()
}

func TestKeyedMutexTimeout(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "c-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "c-1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	assert.Equal(t, 0, k.Len())
}

func newRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, ttl, logging.Discard()), mr
}

func TestRedisLockerExclusive(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second)
	exerciseExclusive(t, l)
	assert.False(t, mr.Exists(keyPrefix+"c-1"))
}

func TestRedisLockerTimeoutAndExpiry(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second)
	_, err := l.Lock(context.Background(), "c-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "c-1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	mr.FastForward(2 * time.Second)
	unlock, err := l.Lock(context.Background(), "c-1")
	require.NoError(t, err)
	unlock()
}

func TestRedisLockerDoesNotReleaseForeignLock(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second)
	unlock, err := l.Lock(context.Background(), "c-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	other, err := l.Lock(context.Background(), "c-1")
	require.NoError(t, err)

	unlock()
	assert.True(t, mr.Exists(keyPrefix+"c-1"), "stale unlock must not drop the new holder's lock")
	other()
	assert.False(t, mr.Exists(keyPrefix+"c-1"))
}
