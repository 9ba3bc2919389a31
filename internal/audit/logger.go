package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"identity-registry/internal/audit/domain"
	auditrepo "identity-registry/internal/audit/repository"
)

// SystemLogin is recorded for events that have no resolvable login, such as a failed login
// with an unparseable identifier or a registry clear.
const SystemLogin = "_system"

// AuditLogger writes a single audit event. Used by every registry operation.
// LogEvent is best-effort: failures are logged and do not affect the caller.
// Metadata must never carry passwords, hashes or access codes.
type AuditLogger interface {
	LogEvent(ctx context.Context, login, action, outcome, metadata string)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
	log  zerolog.Logger
	nowF func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and reports write failures to log.
func NewLogger(repo auditrepo.Repository, log zerolog.Logger) *Logger {
	return &Logger{
		repo: repo,
		log:  log,
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, login, action, outcome, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	if login == "" {
		login = SystemLogin
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		Login:     login,
		Action:    action,
		Resource:  ResourceUser,
		Outcome:   outcome,
		Metadata:  metadata,
		CreatedAt: l.nowF(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.Warn().Err(err).Str("action", action).Str("login", login).Msg("audit: failed to log event")
	}
}
