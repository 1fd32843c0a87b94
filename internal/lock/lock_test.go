package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLocal_SerializesSameRoom(t *testing.T) {
	t.Parallel()

	locker := NewLocal()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.LockRoom(context.Background(), "room-1")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				current := maxInside.Load()
				if n <= current || maxInside.CompareAndSwap(current, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Zero(t, locker.held(), "idle rooms must be dropped")
}

func TestLocal_DifferentRoomsDoNotBlock(t *testing.T) {
	t.Parallel()

	locker := NewLocal(WithLocalWait(50 * time.Millisecond))
	releaseA, err := locker.LockRoom(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := locker.LockRoom(context.Background(), "b")
	require.NoError(t, err)
	releaseB()
}

func TestLocal_WaitBound(t *testing.T) {
	t.Parallel()

	locker := NewLocal(WithLocalWait(20 * time.Millisecond))
	release, err := locker.LockRoom(context.Background(), "room-1")
	require.NoError(t, err)

	_, err = locker.LockRoom(context.Background(), "room-1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	release() // idempotent

	again, err := locker.LockRoom(context.Background(), "room-1")
	require.NoError(t, err)
	again()
	assert.Zero(t, locker.held())
}

func TestLocal_CallerContextCancelled(t *testing.T) {
	t.Parallel()

	locker := NewLocal(WithLocalWait(time.Minute))
	release, err := locker.LockRoom(context.Background(), "room-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.LockRoom(ctx, "room-1")
	assert.True(t, errors.Is(err, context.Canceled))
}

func setupRedisLocker(t *testing.T, cfg RedisConfig) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedis(client, cfg, zap.NewNop())
}

func TestRedis_AcquireAndRelease(t *testing.T) {
	mr, locker := setupRedisLocker(t, RedisConfig{KeyPrefix: "test:", Wait: 50 * time.Millisecond, RetryDelay: 5 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, locker.Ping(ctx))

	release, err := locker.LockRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:room-1"))

	_, err = locker.LockRoom(ctx, "room-1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	assert.False(t, mr.Exists("test:room-1"))

	again, err := locker.LockRoom(ctx, "room-1")
	require.NoError(t, err)
	again()
}

func TestRedis_ReleaseKeepsForeignLease(t *testing.T) {
	mr, locker := setupRedisLocker(t, RedisConfig{KeyPrefix: "test:", LeaseTTL: time.Second})
	ctx := context.Background()

	release, err := locker.LockRoom(ctx, "room-1")
	require.NoError(t, err)

	// The lease expires and another replica takes the room.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("test:room-1", "someone-else"))

	release()
	got, err := mr.Get("test:room-1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedis_SerializesAcrossLockers(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := RedisConfig{KeyPrefix: "test:", Wait: 2 * time.Second, RetryDelay: time.Millisecond}

	var inside, violations atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		locker := NewRedis(client, cfg, nil)

		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.LockRoom(context.Background(), "room-1")
			if !assert.NoError(t, err) {
				return
			}
			if inside.Add(1) > 1 {
				violations.Add(1)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()
	assert.Zero(t, violations.Load())
}

func TestRedis_RenewsLeaseWhileHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cfg := RedisConfig{KeyPrefix: "test:", LeaseTTL: time.Second, RenewEvery: 20 * time.Millisecond, Wait: 50 * time.Millisecond, RetryDelay: 5 * time.Millisecond}
	holder := NewRedis(client, cfg, zap.NewNop())
	rival := NewRedis(client, cfg, zap.NewNop())
	ctx := context.Background()

	release, err := holder.LockRoom(ctx, "room-1")
	require.NoError(t, err)

	// Most of the lease elapses; renewal must push the expiry back out.
	mr.FastForward(800 * time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL("test:room-1") > 500*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)

	mr.FastForward(800 * time.Millisecond)
	require.True(t, mr.Exists("test:room-1"))
	_, err = rival.LockRoom(ctx, "room-1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	assert.False(t, mr.Exists("test:room-1"))

	taken, err := rival.LockRoom(ctx, "room-1")
	require.NoError(t, err)
	taken()
}

func TestRedis_LogsExpiredLeaseOnRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	core, logs := observer.New(zapcore.WarnLevel)
	locker := NewRedis(client, RedisConfig{KeyPrefix: "test:", LeaseTTL: time.Minute}, zap.New(core))

	release, err := locker.LockRoom(context.Background(), "room-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	require.False(t, mr.Exists("test:room-1"))

	release()
	assert.Equal(t, 1, logs.FilterMessage("room lock lease expired before release").Len())
}
