package audit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"identity-registry/internal/audit/domain"
)

// mockAuditRepo implements the audit repository interface for tests.
type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return m.entries, nil
}

func (m *mockAuditRepo) ListByLogin(ctx context.Context, login string) ([]*domain.AuditLog, error) {
	return nil, nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, zerolog.Nop())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	logger.nowF = func() time.Time { return fixed }

	logger.LogEvent(context.Background(), "john@example.com", ActionRegister, domain.OutcomeSuccess, "source=password")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.Login != "john@example.com" {
		t.Errorf("login = %q, want %q", entry.Login, "john@example.com")
	}
	if entry.Action != ActionRegister {
		t.Errorf("action = %q, want %q", entry.Action, ActionRegister)
	}
	if entry.Resource != ResourceUser {
		t.Errorf("resource = %q, want %q", entry.Resource, ResourceUser)
	}
	if entry.Outcome != domain.OutcomeSuccess {
		t.Errorf("outcome = %q, want %q", entry.Outcome, domain.OutcomeSuccess)
	}
	if entry.Metadata != "source=password" {
		t.Errorf("metadata = %q, want %q", entry.Metadata, "source=password")
	}
	if entry.ID == "" {
		t.Error("entry ID should be set")
	}
	if !entry.CreatedAt.Equal(fixed) {
		t.Errorf("created_at = %v, want %v", entry.CreatedAt, fixed)
	}
}

func TestLogger_LogEvent_SystemLogin(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, zerolog.Nop())

	logger.LogEvent(context.Background(), "", ActionClear, domain.OutcomeSuccess, "")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].Login != SystemLogin {
		t.Errorf("login = %q, want %q", repo.entries[0].Login, SystemLogin)
	}
}

func TestLogger_LogEvent_RepositoryError(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("storage error")}
	var buf bytes.Buffer
	logger := NewLogger(repo, zerolog.New(&buf))

	// Best-effort: must not panic or surface the error.
	logger.LogEvent(context.Background(), "john@example.com", ActionLogin, domain.OutcomeFailure, "")

	if !strings.Contains(buf.String(), "storage error") {
		t.Errorf("log output = %q, want repository error", buf.String())
	}
}

func TestLogger_LogEvent_NilRepo(t *testing.T) {
	logger := NewLogger(nil, zerolog.Nop())
	// No-op when repo is nil.
	logger.LogEvent(context.Background(), "john@example.com", ActionLogin, domain.OutcomeSuccess, "")

	var nilLogger *Logger
	nilLogger.LogEvent(context.Background(), "john@example.com", ActionLogin, domain.OutcomeSuccess, "")
}
