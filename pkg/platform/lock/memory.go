package lock

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Locker. Expired holders are displaced so a caller
// that never releases cannot block a key forever.
type Memory struct {
	mu    sync.Mutex
	held  map[string]*memoryEntry
	seq   uint64
	now   func() time.Time
	retry time.Duration
}

type memoryEntry struct {
	token     uint64
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{
		held:  make(map[string]*memoryEntry),
		now:   time.Now,
		retry: 5 * time.Millisecond,
	}
}

func (m *Memory) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	for {
		if token, ok := m.tryAcquire(key, ttl); ok {
			return &memoryLease{m: m, key: key, token: token}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ErrNotAcquired
		case <-time.After(m.retry):
		}
	}
}

func (m *Memory) tryAcquire(key string, ttl time.Duration) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if e, ok := m.held[key]; ok && now.Before(e.expiresAt) {
		return 0, false
	}
	m.seq++
	m.held[key] = &memoryEntry{token: m.seq, expiresAt: now.Add(ttl)}
	return m.seq, true
}

type memoryLease struct {
	m     *Memory
	key   string
	token uint64
}

func (l *memoryLease) Extend(_ context.Context, ttl time.Duration) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	now := l.m.now()
	e, ok := l.m.held[l.key]
	if !ok || e.token != l.token || !now.Before(e.expiresAt) {
		return ErrLost
	}
	e.expiresAt = now.Add(ttl)
	return nil
}

func (l *memoryLease) Release(context.Context) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	if e, ok := l.m.held[l.key]; ok && e.token == l.token {
		delete(l.m.held, l.key)
	}
	return nil
}
