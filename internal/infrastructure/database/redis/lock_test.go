package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/coursekit-backend/internal/config"
	"github.com/your-org/coursekit-backend/internal/pkg/logger"
)

func setupTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewLocker(client)
	locker.retryInterval = 5 * time.Millisecond
	return locker, mr
}

func TestLock_AcquireAndRelease(t *testing.T) {
	locker, mr := setupTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "payment:settle:user:1", time.Minute, 0)
	require.NoError(t, err)
	assert.True(t, mr.Exists("payment:settle:user:1"))
	assert.Equal(t, time.Minute, mr.TTL("payment:settle:user:1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("payment:settle:user:1"))
}

func TestLock_HeldElsewhere(t *testing.T) {
	locker, _ := setupTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k", time.Minute, 0)
	require.NoError(t, err)
	defer unlock(ctx)

	_, err = locker.Lock(ctx, "k", time.Minute, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestLock_WaitsForRelease(t *testing.T) {
	locker, _ := setupTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k", time.Minute, 0)
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = unlock(ctx)
	}()

	second, err := locker.Lock(ctx, "k", time.Minute, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, second(ctx))
}

func TestLock_ReleaseKeepsForeignToken(t *testing.T) {
	locker, mr := setupTestLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k", time.Minute, 0)
	require.NoError(t, err)

	// Our lock expired and someone else took it
	mr.Del("k")
	require.NoError(t, mr.Set("k", "someone-else"))

	require.NoError(t, unlock(ctx))
	value, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestLock_ContextCancelled(t *testing.T) {
	locker, _ := setupTestLocker(t)

	unlock, err := locker.Lock(context.Background(), "k", time.Minute, 0)
	require.NoError(t, err)
	defer unlock(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = locker.Lock(ctx, "k", time.Minute, time.Second)
	assert.Error(t, err)
}

func TestLock_MutualExclusion(t *testing.T) {
	locker, _ := setupTestLocker(t)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "shared", time.Minute, 5*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, unlock(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestNewConnection(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &config.Config{Redis: config.RedisConfig{Host: mr.Host(), Port: mr.Port(), PoolSize: 2}}
	client, err := NewConnection(cfg, logger.Discard())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Health())
	assert.NotNil(t, client.GetClient())
}

func TestNewConnection_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	cfg := &config.Config{Redis: config.RedisConfig{Host: host, Port: port}}
	_, err := NewConnection(cfg, logger.Discard())
	assert.Error(t, err)
}
