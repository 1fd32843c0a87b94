package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/lock"
)

// advisoryNamespace is the first key of the two-key advisory lock form,
// keeping room locks apart from any other advisory users of the database.
const advisoryNamespace int32 = 0x524f4f4d

// AdvisoryLocker serializes room work across replicas sharing one
// PostgreSQL database. A held lock pins one pooled connection.
type AdvisoryLocker struct {
	pool       *pgxpool.Pool
	wait       time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewAdvisoryLocker builds a locker; wait <= 0 selects lock.DefaultWait.
func NewAdvisoryLocker(pool *pgxpool.Pool, wait time.Duration, logger *zap.Logger) *AdvisoryLocker {
	if wait <= 0 {
		wait = lock.DefaultWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdvisoryLocker{pool: pool, wait: wait, retryDelay: 25 * time.Millisecond, logger: logger}
}

// LockRoom takes the room's advisory lock, polling until the wait bound.
func (l *AdvisoryLocker) LockRoom(ctx context.Context, roomID string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	conn, err := l.pool.Acquire(waitCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("acquire connection for room %s: %w", roomID, err)
	}

	for {
		var acquired bool
		err := conn.QueryRow(waitCtx, `SELECT pg_try_advisory_lock($1, hashtext($2))`, advisoryNamespace, roomID).Scan(&acquired)
		if err != nil {
			conn.Release()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if waitCtx.Err() != nil {
				return nil, fmt.Errorf("room %s: %w", roomID, lock.ErrLockTimeout)
			}
			return nil, fmt.Errorf("try advisory lock for room %s: %w", roomID, err)
		}
		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			conn.Release()
			return nil, ctx.Err()
		case <-waitCtx.Done():
			conn.Release()
			return nil, fmt.Errorf("room %s: %w", roomID, lock.ErrLockTimeout)
		case <-time.After(l.retryDelay):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.unlock(conn, roomID) })
	}, nil
}

func (l *AdvisoryLocker) unlock(conn *pgxpool.Conn, roomID string) {
	unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := conn.Exec(unlockCtx, `SELECT pg_advisory_unlock($1, hashtext($2))`, advisoryNamespace, roomID); err != nil {
		l.logger.Warn("advisory unlock failed; dropping connection",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		// Closing the session releases every lock it holds.
		_ = conn.Conn().Close(unlockCtx)
	}
	conn.Release()
}
