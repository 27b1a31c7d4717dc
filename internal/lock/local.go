package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/catalog/internal/clock"
)

type lease struct {
	token     string
	expiresAt time.Time
}

// LocalLocker serializes writers inside one process.
type LocalLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	clock  clock.Clock
}

func NewLocalLocker(c clock.Clock) *LocalLocker {
	return &LocalLocker{
		leases: make(map[string]lease),
		clock:  c,
	}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := validate(key, ttl); err != nil {
		return "", false, err
	}

	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if current, ok := l.leases[key]; ok && now.Before(current.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.leases[key] = lease{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.leases[key]; ok && current.token == token {
		delete(l.leases, key)
	}
	return nil
}
