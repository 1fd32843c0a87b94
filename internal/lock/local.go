// Package lock provides per-room mutual exclusion scopes used to serialize
// the conflict check and the write that follows it.
//
// Local covers a single process. Redis covers replicas sharing a Redis
// instance. Both honour the caller's context and an upper bound on waiting.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a room lock could not be obtained within the wait bound.
var ErrLockTimeout = errors.New("lock: timed out waiting for room lock")

// DefaultWait bounds how long LockRoom waits when no explicit wait is configured.
const DefaultWait = 5 * time.Second

type slot struct {
	token chan struct{}
	refs  int
}

// Local is an in-process keyed mutex. Idle keys are dropped so the map only
// grows with rooms currently being worked on.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

// LocalOption configures a Local locker.
type LocalOption func(*Local)

// WithLocalWait overrides the maximum time LockRoom blocks. Zero or negative
// values leave only the caller's context as the bound.
func WithLocalWait(wait time.Duration) LocalOption {
	return func(l *Local) {
		l.wait = wait
	}
}

// NewLocal constructs an in-process locker.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{slots: make(map[string]*slot), wait: DefaultWait}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LockRoom blocks until the room is free, the wait bound passes, or ctx ends.
// The returned release function is safe to call more than once.
func (l *Local) LockRoom(ctx context.Context, roomID string) (func(), error) {
	if l == nil {
		return nil, fmt.Errorf("lock: local locker is nil")
	}

	l.mu.Lock()
	s, ok := l.slots[roomID]
	if !ok {
		s = &slot{token: make(chan struct{}, 1)}
		l.slots[roomID] = s
	}
	s.refs++
	l.mu.Unlock()

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case s.token <- struct{}{}:
	case <-waitCtx.Done():
		l.drop(roomID, s)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: room %s", ErrLockTimeout, roomID)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.token
			l.drop(roomID, s)
		})
	}, nil
}

func (l *Local) drop(roomID string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 && l.slots[roomID] == s {
		delete(l.slots, roomID)
	}
}

// held reports how many rooms currently have holders or waiters.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
