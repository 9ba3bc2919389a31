package repository

import (
	"context"
	"errors"

	"identity-registry/internal/user/domain"
)

// ErrDuplicateLogin is returned by Create when a user with the same login is already stored.
var ErrDuplicateLogin = errors.New("login already registered")

// Repository defines storage for users keyed by their login.
type Repository interface {
	// GetByLogin returns the user for login, or nil if not found.
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	// Create stores u under u.Login(). It fails with ErrDuplicateLogin if the login is taken;
	// the check and the insert are atomic.
	Create(ctx context.Context, u *domain.User) error
	// List returns all users ordered by login.
	List(ctx context.Context) ([]*domain.User, error)
	// Clear removes every user.
	Clear(ctx context.Context) error
}
