// Package service implements the identity registry: registration by email or phone, login,
// access-code reset and bulk import, keyed by each user's login.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"identity-registry/internal/accesscode"
	"identity-registry/internal/audit"
	auditdomain "identity-registry/internal/audit/domain"
	"identity-registry/internal/credential"
	"identity-registry/internal/telemetry"
	"identity-registry/internal/user/domain"
	userrepo "identity-registry/internal/user/repository"
)

// Sentinel errors for the registry. Authentication failures wrap both ErrAuthenticationFailure
// and the specific cause, so callers can show a uniform denial and still log the cause.
var (
	ErrDuplicateIdentity     = errors.New("a user with this login already exists")
	ErrAuthenticationFailure = errors.New("authentication failed")
	ErrUnknownLogin          = errors.New("unknown login")
	ErrPasswordMismatch      = errors.New("password mismatch")
)

// UserRepo is the minimal user repository needed by the registry.
type UserRepo interface {
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	List(ctx context.Context) ([]*domain.User, error)
	Clear(ctx context.Context) error
}

// MetricsRecorder receives registry counters. *otel.Metrics implements it.
type MetricsRecorder interface {
	RecordRegistration(ctx context.Context, source, outcome string)
	RecordLogin(ctx context.Context, outcome string)
	RecordAccessCode(ctx context.Context, outcome string)
	RecordImport(ctx context.Context, imported, skipped int)
}

// Options holds the optional collaborators of RegistryService. Nil fields disable that side channel.
type Options struct {
	Sender      accesscode.Sender
	AuditLogger audit.AuditLogger
	Events      telemetry.EventEmitter
	Metrics     MetricsRecorder
	// Delimiter separates import fields; empty means domain.CSVDelimiter.
	Delimiter string
}

// RegistryService owns the login→User mapping and the operations on it.
type RegistryService struct {
	repo      UserRepo
	sender    accesscode.Sender
	audit     audit.AuditLogger
	events    telemetry.EventEmitter
	metrics   MetricsRecorder
	delimiter string
	log       zerolog.Logger
}

// NewRegistryService returns a RegistryService storing users in repo.
func NewRegistryService(repo UserRepo, log zerolog.Logger, opts Options) *RegistryService {
	s := &RegistryService{
		repo:      repo,
		sender:    opts.Sender,
		audit:     opts.AuditLogger,
		events:    opts.Events,
		metrics:   opts.Metrics,
		delimiter: opts.Delimiter,
		log:       log,
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.delimiter == "" {
		s.delimiter = domain.CSVDelimiter
	}
	return s
}

// RegisterByEmail creates a password user. Fails with ErrDuplicateIdentity if the login is taken.
func (s *RegistryService) RegisterByEmail(ctx context.Context, fullName, email, password string) (*domain.User, error) {
	return s.register(ctx, domain.EmailSignup{FullName: fullName, Email: email, Password: password}, domain.SourcePassword)
}

// RegisterByPhone creates a phone user and delivers its first access code.
// Fails with ErrDuplicateIdentity if the login is taken; no code is delivered then.
func (s *RegistryService) RegisterByPhone(ctx context.Context, fullName, phone string) (*domain.User, error) {
	u, err := s.register(ctx, domain.PhoneSignup{FullName: fullName, Phone: phone}, domain.SourceSMS)
	if err != nil {
		return nil, err
	}
	s.deliver(ctx, u.Login(), u.AccessCode())
	return u, nil
}

func (s *RegistryService) register(ctx context.Context, req domain.Request, src domain.Source) (*domain.User, error) {
	u, err := domain.Build(req)
	if err == nil {
		err = s.insert(ctx, u)
	}
	login := ""
	if u != nil {
		login = u.Login()
	}
	if err != nil {
		s.log.Info().Err(err).Str("source", string(src)).Str("login", login).Msg("registration rejected")
		s.metrics.RecordRegistration(ctx, string(src), auditdomain.OutcomeFailure)
		s.logAudit(ctx, login, audit.ActionRegister, auditdomain.OutcomeFailure, "source="+string(src)+" reason="+err.Error())
		s.emit(ctx, telemetry.EventUserRegistered, login, auditdomain.OutcomeFailure, map[string]string{"source": string(src)})
		return nil, err
	}
	s.log.Info().Str("source", string(src)).Str("login", login).Msg("user registered")
	s.metrics.RecordRegistration(ctx, string(src), auditdomain.OutcomeSuccess)
	s.logAudit(ctx, login, audit.ActionRegister, auditdomain.OutcomeSuccess, "source="+string(src))
	s.emit(ctx, telemetry.EventUserRegistered, login, auditdomain.OutcomeSuccess, map[string]string{"source": string(src)})
	return u, nil
}

// insert stores u, mapping a login conflict to ErrDuplicateIdentity.
func (s *RegistryService) insert(ctx context.Context, u *domain.User) error {
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrDuplicateLogin) {
			return fmt.Errorf("%w: %s", ErrDuplicateIdentity, u.Login())
		}
		return err
	}
	return nil
}

// Login authenticates login with password and returns the user's profile summary.
// Failures wrap ErrAuthenticationFailure together with ErrUnknownLogin, ErrPasswordMismatch
// or credential.ErrInvalidCredential.
func (s *RegistryService) Login(ctx context.Context, login, password string) (string, error) {
	u, key, err := s.lookup(ctx, login)
	if err == nil && !u.CheckPassword(password) {
		err = fmt.Errorf("%w: %w", ErrAuthenticationFailure, ErrPasswordMismatch)
	}
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailure) {
			s.log.Info().Str("login", key).Str("reason", failureReason(err)).Msg("login failed")
			s.metrics.RecordLogin(ctx, auditdomain.OutcomeFailure)
			s.logAudit(ctx, key, audit.ActionLogin, auditdomain.OutcomeFailure, "reason="+failureReason(err))
			s.emit(ctx, telemetry.EventLoginFailed, key, auditdomain.OutcomeFailure, map[string]string{"reason": failureReason(err)})
		}
		return "", err
	}
	s.log.Debug().Str("login", key).Msg("login succeeded")
	s.metrics.RecordLogin(ctx, auditdomain.OutcomeSuccess)
	s.logAudit(ctx, key, audit.ActionLogin, auditdomain.OutcomeSuccess, "")
	s.emit(ctx, telemetry.EventLoginSucceeded, key, auditdomain.OutcomeSuccess, nil)
	return u.ProfileSummary(), nil
}

// RequestAccessCode issues a new access code for login and delivers it. The previous password
// or code stops working. Delivery failures are logged, not returned.
func (s *RegistryService) RequestAccessCode(ctx context.Context, login string) error {
	u, key, err := s.lookup(ctx, login)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailure) {
			s.metrics.RecordAccessCode(ctx, auditdomain.OutcomeFailure)
			s.logAudit(ctx, key, audit.ActionRequestAccessCode, auditdomain.OutcomeFailure, "reason="+failureReason(err))
			s.emit(ctx, telemetry.EventAccessCodeRequested, key, auditdomain.OutcomeFailure, map[string]string{"reason": failureReason(err)})
		}
		return err
	}
	code, err := u.GenerateEncryptAccessCode()
	if err != nil {
		return err
	}
	s.deliver(ctx, key, code)
	s.logAudit(ctx, key, audit.ActionRequestAccessCode, auditdomain.OutcomeSuccess, "")
	s.emit(ctx, telemetry.EventAccessCodeRequested, key, auditdomain.OutcomeSuccess, nil)
	return nil
}

// lookup normalizes login and loads the user. It returns the normalized key (or the raw input
// when it cannot be normalized) for logging.
func (s *RegistryService) lookup(ctx context.Context, login string) (*domain.User, string, error) {
	key, err := credential.NormalizeLogin(login)
	if err != nil {
		return nil, login, fmt.Errorf("%w: %w", ErrAuthenticationFailure, err)
	}
	u, err := s.repo.GetByLogin(ctx, key)
	if err != nil {
		return nil, key, err
	}
	if u == nil {
		return nil, key, fmt.Errorf("%w: %w", ErrAuthenticationFailure, ErrUnknownLogin)
	}
	return u, key, nil
}

// deliver hands code to the sender. The credential is already rotated; a delivery failure
// leaves it in place.
func (s *RegistryService) deliver(ctx context.Context, login, code string) {
	if s.sender == nil {
		s.metrics.RecordAccessCode(ctx, "undelivered")
		return
	}
	if err := s.sender.Send(ctx, login, code); err != nil {
		s.log.Warn().Err(err).Str("login", login).Msg("access code delivery failed")
		s.metrics.RecordAccessCode(ctx, "delivery_failed")
		return
	}
	s.metrics.RecordAccessCode(ctx, "delivered")
}

// ListUsers returns every registered user ordered by login.
func (s *RegistryService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.repo.List(ctx)
}

// ClearRegistry removes every user.
func (s *RegistryService) ClearRegistry(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return err
	}
	s.log.Info().Msg("registry cleared")
	s.logAudit(ctx, "", audit.ActionClear, auditdomain.OutcomeSuccess, "")
	s.emit(ctx, telemetry.EventRegistryCleared, "", auditdomain.OutcomeSuccess, nil)
	return nil
}

func (s *RegistryService) logAudit(ctx context.Context, login, action, outcome, metadata string) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, login, action, outcome, metadata)
	}
}

func (s *RegistryService) emit(ctx context.Context, eventType, login, outcome string, metadata map[string]string) {
	if s.events == nil {
		return
	}
	telemetry.EmitAsync(s.events, ctx, telemetry.NewEvent(eventType, login, outcome, metadata), s.log)
}

// failureReason names the cause of an authentication failure for logs and audit.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownLogin):
		return "unknown_login"
	case errors.Is(err, ErrPasswordMismatch):
		return "password_mismatch"
	case errors.Is(err, credential.ErrInvalidCredential):
		return "invalid_credential"
	default:
		return "error"
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordRegistration(context.Context, string, string) {}
func (noopMetrics) RecordLogin(context.Context, string)                {}
func (noopMetrics) RecordAccessCode(context.Context, string)           {}
func (noopMetrics) RecordImport(context.Context, int, int)             {}
