package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"rrfiler/pkg/platform/sentinel"
)

var errHeld = errors.New("lock held")

type heldLock struct {
	token   string
	expires time.Time
}

// InMemoryLocker is a keyed lock for single-process deployments.
type InMemoryLocker struct {
	mu    sync.Mutex
	ttl   time.Duration
	held  map[string]heldLock
	clock func() time.Time
}

func NewInMemory(ttl time.Duration) *InMemoryLocker {
	return &InMemoryLocker{ttl: ttl, held: make(map[string]heldLock), clock: time.Now}
}

func (l *InMemoryLocker) Acquire(ctx context.Context, key string, wait time.Duration) (Lease, error) {
	token := uuid.NewString()
	err := waitFor(ctx, wait, func() (bool, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		now := l.clock()
		if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
			return false, nil
		}
		l.held[key] = heldLock{token: token, expires: now.Add(l.ttl)}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, errHeld) {
			return nil, fmt.Errorf("lock %s: %w", key, sentinel.ErrLocked)
		}
		return nil, err
	}
	return &memoryLease{locker: l, key: key, token: token}, nil
}

type memoryLease struct {
	locker *InMemoryLocker
	key    string
	token  string
}

func (m *memoryLease) Release(context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	if cur, ok := m.locker.held[m.key]; ok && cur.token == m.token {
		delete(m.locker.held, m.key)
	}
	return nil
}
