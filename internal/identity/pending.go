package identity

import (
	"context"
	"sync"
	"time"

	"auth-bootstrap/internal/models"
)

// PendingStore tracks outstanding one-time-code challenges keyed by
// identifier. A fresh Put for the same identifier replaces the record.
type PendingStore interface {
	Put(ctx context.Context, req *models.PendingCredentialRequest, ttl time.Duration) error
	Get(ctx context.Context, identifier string) (*models.PendingCredentialRequest, bool, error)
	Delete(ctx context.Context, identifier string) error
}

type pendingEntry struct {
	req       models.PendingCredentialRequest
	expiresAt time.Time
}

// MemoryPendingStore is the in-process PendingStore used when no Redis is
// configured on the device.
type MemoryPendingStore struct {
	mu   sync.RWMutex
	m    map[string]pendingEntry
	nowF func() time.Time
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{
		m:    make(map[string]pendingEntry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryPendingStore) Put(ctx context.Context, req *models.PendingCredentialRequest, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[req.Identifier] = pendingEntry{req: *req, expiresAt: s.nowF().Add(ttl)}
	return nil
}

func (s *MemoryPendingStore) Get(ctx context.Context, identifier string) (*models.PendingCredentialRequest, bool, error) {
	s.mu.RLock()
	e, ok := s.m[identifier]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, identifier)
		s.mu.Unlock()
		return nil, false, nil
	}
	req := e.req
	return &req, true, nil
}

func (s *MemoryPendingStore) Delete(ctx context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, identifier)
	return nil
}
