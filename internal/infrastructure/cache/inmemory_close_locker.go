package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/google/uuid"
)

type lease struct {
	token     string
	expiresAt time.Time
}

// InMemoryCloseLocker implements finance.CloseLocker inside one process.
// It does not coordinate across instances.
type InMemoryCloseLocker struct {
	mu        sync.Mutex
	leases    map[string]lease
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryCloseLocker creates a locker and starts its expiry sweeper
func NewInMemoryCloseLocker() *InMemoryCloseLocker {
	l := &InMemoryCloseLocker{
		leases:   make(map[string]lease),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupLoop()

	return l
}

// Lock takes key for ttl unless an unexpired lease exists
func (l *InMemoryCloseLocker) Lock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, held := l.leases[key]; held && now.Before(cur.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.leases[key] = lease{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Unlock releases key when token still owns it
func (l *InMemoryCloseLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, held := l.leases[key]; held && cur.token == token {
		delete(l.leases, key)
	}
	return nil
}

// Ping always succeeds; there is nothing remote to reach.
func (l *InMemoryCloseLocker) Ping(context.Context) error {
	return nil
}

// Close stops the sweeper. Safe to call multiple times.
func (l *InMemoryCloseLocker) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
	})
	return nil
}

func (l *InMemoryCloseLocker) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *InMemoryCloseLocker) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, cur := range l.leases {
		if !now.Before(cur.expiresAt) {
			delete(l.leases, key)
		}
	}
}

// Size returns the number of live or not-yet-swept leases
func (l *InMemoryCloseLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.leases)
}

var _ finance.CloseLocker = (*InMemoryCloseLocker)(nil)
