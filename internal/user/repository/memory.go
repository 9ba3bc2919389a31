package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"identity-registry/internal/user/domain"
)

// MemoryRepository is an in-process Repository. Safe for concurrent use.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMemoryRepository returns an empty in-memory user repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*domain.User)}
}

// GetByLogin returns the user for login, or nil if not found.
func (r *MemoryRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[login], nil
}

// Create stores u unless its login is already present.
func (r *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	if u == nil {
		return fmt.Errorf("create user: nil user")
	}
	login := u.Login()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[login]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateLogin, login)
	}
	r.users[login] = u
	return nil
}

// List returns all users ordered by login.
func (r *MemoryRepository) List(ctx context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, login := range slices.Sorted(maps.Keys(r.users)) {
		out = append(out, r.users[login])
	}
	return out, nil
}

// Clear removes every user.
func (r *MemoryRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.users)
	return nil
}
