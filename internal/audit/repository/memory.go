package repository

import (
	"context"
	"sync"

	"identity-registry/internal/audit/domain"
)

// MemoryRepository keeps audit logs in process memory. Safe for concurrent use.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []*domain.AuditLog
}

// NewMemoryRepository returns an empty in-memory audit repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, a)
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	start := 0
	if limit > 0 && len(r.entries) > limit {
		start = len(r.entries) - limit
	}
	out := make([]*domain.AuditLog, len(r.entries)-start)
	copy(out, r.entries[start:])
	return out, nil
}

func (r *MemoryRepository) ListByLogin(ctx context.Context, login string) ([]*domain.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.AuditLog
	for _, e := range r.entries {
		if e.Login == login {
			out = append(out, e)
		}
	}
	return out, nil
}
