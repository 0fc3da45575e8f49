package session

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/beach-seat-reservation/internal/model"
)

type entry[T any] struct {
	v   T
	exp time.Time
}

// MemoryStore is a process-local Store used when Redis is not available.
// Expired entries are dropped lazily on access and by Sweep.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]entry[Session]
	pending  map[string]entry[model.PendingPayment]
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]entry[Session]),
		pending:  make(map[string]entry[model.PendingPayment]),
		now:      time.Now,
	}
}

func (m *MemoryStore) Save(_ context.Context, s Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = entry[Session]{v: s, exp: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok || !m.now().Before(e.exp) {
		delete(m.sessions, id)
		return Session{}, ErrNotFound
	}
	return e.v, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.pending, id)
	return nil
}

func (m *MemoryStore) PutPending(_ context.Context, sid string, p model.PendingPayment, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[sid] = entry[model.PendingPayment]{v: p, exp: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) GetPending(_ context.Context, sid string) (model.PendingPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingLocked(sid)
}

func (m *MemoryStore) TakePending(_ context.Context, sid string) (model.PendingPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.pendingLocked(sid)
	delete(m.pending, sid)
	return p, err
}

func (m *MemoryStore) DropPending(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, sid)
	return nil
}

func (m *MemoryStore) pendingLocked(sid string) (model.PendingPayment, error) {
	e, ok := m.pending[sid]
	if !ok || !m.now().Before(e.exp) {
		delete(m.pending, sid)
		return model.PendingPayment{}, ErrNoPending
	}
	return e.v, nil
}

// Sweep removes every expired entry.
func (m *MemoryStore) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.sessions {
		if !now.Before(e.exp) {
			delete(m.sessions, k)
		}
	}
	for k, e := range m.pending {
		if !now.Before(e.exp) {
			delete(m.pending, k)
		}
	}
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
