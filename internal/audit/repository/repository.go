package repository

import (
	"context"

	"identity-registry/internal/audit/domain"
)

// Repository defines storage for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// List returns entries in insertion order, newest last. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]*domain.AuditLog, error)
	// ListByLogin returns entries recorded for login in insertion order.
	ListByLogin(ctx context.Context, login string) ([]*domain.AuditLog, error)
}
