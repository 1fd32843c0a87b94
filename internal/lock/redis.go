package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix  = "room-booking:lock:room:"
	defaultLeaseTTL   = 10 * time.Second
	defaultRetryDelay = 25 * time.Millisecond
	releaseTimeout    = 2 * time.Second
)

// releaseScript deletes the key only while it still holds our token, so a
// holder whose lease expired cannot free a lock someone else now owns.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisConfig tunes the Redis locker.
type RedisConfig struct {
	KeyPrefix  string
	LeaseTTL   time.Duration
	Wait       time.Duration
	RetryDelay time.Duration
	// RenewEvery is how often a held lease is extended. Defaults to a third
	// of LeaseTTL.
	RenewEvery time.Duration
}

// Redis is a lease based room lock shared by every replica using the same Redis.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
	logger *zap.Logger
}

// NewRedis constructs a Redis locker. Zero config values fall back to defaults.
func NewRedis(client *redis.Client, cfg RedisConfig, logger *zap.Logger) *Redis {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = defaultLeaseTTL
	}
	if cfg.Wait <= 0 {
		cfg.Wait = DefaultWait
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.RenewEvery <= 0 || cfg.RenewEvery >= cfg.LeaseTTL {
		cfg.RenewEvery = cfg.LeaseTTL / 3
	}
	if cfg.RenewEvery <= 0 {
		cfg.RenewEvery = cfg.LeaseTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, cfg: cfg, logger: logger}
}

// NewRedisClient builds the go-redis client for the locker.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Ping checks connectivity with the Redis server.
func (l *Redis) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// LockRoom acquires the room lease, polling until it is free or the wait bound passes.
func (l *Redis) LockRoom(ctx context.Context, roomID string) (func(), error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("lock: redis locker is not configured")
	}

	key := l.cfg.KeyPrefix + roomID
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.cfg.Wait)
	defer cancel()

	for {
		acquired, err := l.client.SetNX(waitCtx, key, token, l.cfg.LeaseTTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if waitCtx.Err() != nil {
				return nil, fmt.Errorf("%w: room %s", ErrLockTimeout, roomID)
			}
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if acquired {
			break
		}

		timer := time.NewTimer(l.cfg.RetryDelay)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: room %s", ErrLockTimeout, roomID)
		case <-timer.C:
		}
	}

	stop := make(chan struct{})
	renewed := make(chan struct{})
	go l.renew(key, token, roomID, stop, renewed)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-renewed

			releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			deleted, err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Int64()
			switch {
			case err != nil && !errors.Is(err, redis.Nil):
				l.logger.Warn("failed to release room lock",
					zap.String("room_id", roomID),
					zap.String("key", key),
					zap.Error(err),
				)
			case deleted == 0:
				l.logger.Warn("room lock lease expired before release",
					zap.String("room_id", roomID),
					zap.String("key", key),
				)
			}
		})
	}, nil
}

// renew keeps the lease alive until stop is closed or the lease is lost.
func (l *Redis) renew(key, token, roomID string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.cfg.RenewEvery)
	defer ticker.Stop()
	ttl := strconv.FormatInt(l.cfg.LeaseTTL.Milliseconds(), 10)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		extended, err := renewScript.Run(ctx, l.client, []string{key}, token, ttl).Int64()
		cancel()
		if err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("failed to renew room lock",
				zap.String("room_id", roomID),
				zap.String("key", key),
				zap.Error(err),
			)
			continue
		}
		if extended == 0 {
			l.logger.Warn("room lock lease lost while held",
				zap.String("room_id", roomID),
				zap.String("key", key),
			)
			return
		}
	}
}
