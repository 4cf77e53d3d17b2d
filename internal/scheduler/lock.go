package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrLockHeld = errors.New("lock is held by another runner")

// Lock is a held distributed mutual-exclusion guard.
type Lock interface {
	// Release gives the lock up. If the minimum hold time has not elapsed
	// yet, the lock stays unavailable until it has, which prevents other
	// replicas from thundering straight into a re-run.
	Release(ctx context.Context) error
}

// LockManager scopes a distributed lock to a job name. maxHold force-expires
// the lock so a crashed holder cannot wedge the job forever.
type LockManager interface {
	Acquire(ctx context.Context, name string, maxHold, minHold time.Duration) (Lock, error)
}

// MemoryLockManager is a process-local LockManager for tests and
// single-instance wiring.
type MemoryLockManager struct {
	mu    sync.Mutex
	locks map[string]time.Time // name -> earliest next acquire
	now   func() time.Time
}

func NewMemoryLockManager() *MemoryLockManager {
	return &MemoryLockManager{locks: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryLockManager) Acquire(ctx context.Context, name string, maxHold, minHold time.Duration) (Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if until, held := m.locks[name]; held && now.Before(until) {
		return nil, ErrLockHeld
	}
	m.locks[name] = now.Add(maxHold)
	return &memoryLock{mgr: m, name: name, acquired: now, minHold: minHold}, nil
}

type memoryLock struct {
	mgr      *MemoryLockManager
	name     string
	acquired time.Time
	minHold  time.Duration
}

func (l *memoryLock) Release(ctx context.Context) error {
	l.mgr.mu.Lock()
	defer l.mgr.mu.Unlock()
	held := l.mgr.now().Sub(l.acquired)
	if held < l.minHold {
		l.mgr.locks[l.name] = l.acquired.Add(l.minHold)
		return nil
	}
	delete(l.mgr.locks, l.name)
	return nil
}
