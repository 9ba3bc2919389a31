package accesscode

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a stored dev access code stays retrievable.
const DefaultTTL = 5 * time.Minute

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore holds the last plain access code per login for dev-only retrieval.
// It implements Sender so it can sit in a MultiSender. Not used in production.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	ttl  time.Duration
	nowF func() time.Time
}

// NewMemoryStore returns a dev access-code store. ttl <= 0 uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		m:    make(map[string]entry),
		ttl:  ttl,
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Send stores code for login, replacing any earlier one.
func (s *MemoryStore) Send(ctx context.Context, login, code string) error {
	s.Put(ctx, login, code, s.nowF().Add(s.ttl))
	return nil
}

// Put stores code for login until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, login, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[login] = entry{code: code, expiresAt: expiresAt}
}

// Get returns the code for login if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, login string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[login]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		if cur, ok := s.m[login]; ok && cur == e {
			delete(s.m, login)
		}
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}

// Clear drops every stored code.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.m)
}
