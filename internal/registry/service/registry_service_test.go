package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	auditdomain "identity-registry/internal/audit/domain"
	"identity-registry/internal/credential"
	"identity-registry/internal/telemetry"
	"identity-registry/internal/user/domain"
	userrepo "identity-registry/internal/user/repository"
)

// fakeSender records deliveries and optionally fails.
type fakeSender struct {
	mu      sync.Mutex
	codes   map[string][]string
	sendErr error
}

func (f *fakeSender) Send(ctx context.Context, login, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.codes == nil {
		f.codes = make(map[string][]string)
	}
	f.codes[login] = append(f.codes[login], code)
	return f.sendErr
}

func (f *fakeSender) last(login string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.codes[login]
	if len(c) == 0 {
		return ""
	}
	return c[len(c)-1]
}

func (f *fakeSender) count(login string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.codes[login])
}

type auditEntry struct {
	login, action, outcome, metadata string
}

// fakeAudit implements audit.AuditLogger.
type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (f *fakeAudit) LogEvent(ctx context.Context, login, action, outcome, metadata string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, auditEntry{login, action, outcome, metadata})
}

func (f *fakeAudit) last() auditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return auditEntry{}
	}
	return f.entries[len(f.entries)-1]
}

// fakeEmitter implements telemetry.EventEmitter.
type fakeEmitter struct {
	mu     sync.Mutex
	events []*telemetry.Event
}

func (f *fakeEmitter) Emit(ctx context.Context, e *telemetry.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEmitter) waitFor(t *testing.T, eventType string) *telemetry.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for _, e := range f.events {
			if e.EventType == eventType {
				f.mu.Unlock()
				return e
			}
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %s event emitted", eventType)
	return nil
}

// fakeMetrics counts calls by name and outcome.
type fakeMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *fakeMetrics) inc(key string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[key] += n
}

func (f *fakeMetrics) get(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key]
}

func (f *fakeMetrics) RecordRegistration(ctx context.Context, source, outcome string) {
	f.inc("register."+source+"."+outcome, 1)
}
func (f *fakeMetrics) RecordLogin(ctx context.Context, outcome string) { f.inc("login."+outcome, 1) }
func (f *fakeMetrics) RecordAccessCode(ctx context.Context, outcome string) {
	f.inc("code."+outcome, 1)
}
func (f *fakeMetrics) RecordImport(ctx context.Context, imported, skipped int) {
	f.inc("import.imported", imported)
	f.inc("import.skipped", skipped)
}

type harness struct {
	svc     *RegistryService
	repo    *userrepo.MemoryRepository
	sender  *fakeSender
	audit   *fakeAudit
	events  *fakeEmitter
	metrics *fakeMetrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:    userrepo.NewMemoryRepository(),
		sender:  &fakeSender{},
		audit:   &fakeAudit{},
		events:  &fakeEmitter{},
		metrics: &fakeMetrics{},
	}
	h.svc = NewRegistryService(h.repo, zerolog.Nop(), Options{
		Sender:      h.sender,
		AuditLogger: h.audit,
		Events:      h.events,
		Metrics:     h.metrics,
	})
	return h
}

func TestRegisterByEmail_ThenLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.svc.RegisterByEmail(ctx, "John Doe", " John_Doe@unknown.com ", "testPass")
	if err != nil {
		t.Fatalf("RegisterByEmail: %v", err)
	}
	if u.Login() != "john_doe@unknown.com" {
		t.Errorf("Login = %q, want john_doe@unknown.com", u.Login())
	}

	summary, err := h.svc.Login(ctx, "JOHN_DOE@unknown.com", "testPass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	want := strings.Join([]string{
		"firstName: John",
		"lastName: Doe",
		"login: john_doe@unknown.com",
		"fullName: John Doe",
		"initials: J D",
		"email: John_Doe@unknown.com",
		"phone: null",
		"meta: {auth=password}",
	}, "\n")
	if summary != want {
		t.Errorf("Login summary =\n%s\nwant\n%s", summary, want)
	}
	if got := h.audit.last(); got.action != "login" || got.outcome != auditdomain.OutcomeSuccess {
		t.Errorf("last audit = %+v, want login success", got)
	}
	if h.metrics.get("register.password.success") != 1 || h.metrics.get("login.success") != 1 {
		t.Errorf("metrics = %v", h.metrics.counts)
	}
	ev := h.events.waitFor(t, telemetry.EventUserRegistered)
	if ev.Login != "john_doe@unknown.com" || ev.Outcome != auditdomain.OutcomeSuccess {
		t.Errorf("registered event = %+v", ev)
	}
}

func TestRegisterByEmail_Duplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.RegisterByEmail(ctx, "John Doe", "john@example.com", "p1"); err != nil {
		t.Fatalf("RegisterByEmail: %v", err)
	}
	_, err := h.svc.RegisterByEmail(ctx, "Jane Doe", "JOHN@example.com", "p2")
	if !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("duplicate err = %v, want ErrDuplicateIdentity", err)
	}
	if _, err := h.svc.Login(ctx, "john@example.com", "p1"); err != nil {
		t.Errorf("original credential broken by duplicate attempt: %v", err)
	}
	if got := h.audit.last(); got.action != "login" {
		t.Errorf("last audit = %+v", got)
	}
	if h.metrics.get("register.password.failure") != 1 {
		t.Errorf("failure metric = %d, want 1", h.metrics.get("register.password.failure"))
	}
}

func TestRegisterByEmail_ValidationErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testCases := []struct {
		name                      string
		fullName, email, password string
		wantErr                   error
	}{
		{"no letters in name", "1234", "a@b.c", "p", domain.ErrInvalidFullName},
		{"blank email", "John", " ", "p", domain.ErrMissingCredential},
		{"blank password", "John", "a@b.c", "  ", domain.ErrMissingCredential},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.RegisterByEmail(ctx, tc.fullName, tc.email, tc.password)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
	if users, _ := h.svc.ListUsers(ctx); len(users) != 0 {
		t.Errorf("users = %d, want 0", len(users))
	}
}

func TestRegisterByPhone_DeliversCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.svc.RegisterByPhone(ctx, "John Doe", "+7 (917) 971-11-11")
	if err != nil {
		t.Fatalf("RegisterByPhone: %v", err)
	}
	code := h.sender.last("+79179711111")
	if len(code) != credential.AccessCodeLength {
		t.Fatalf("delivered code = %q, want %d chars", code, credential.AccessCodeLength)
	}
	if code != u.AccessCode() {
		t.Errorf("delivered code %q differs from AccessCode %q", code, u.AccessCode())
	}
	if _, err := h.svc.Login(ctx, "+7 (917) 971 11 11", code); err != nil {
		t.Errorf("Login with access code: %v", err)
	}
	if h.metrics.get("code.delivered") != 1 {
		t.Errorf("code.delivered = %d, want 1", h.metrics.get("code.delivered"))
	}
}

func TestRegisterByPhone_DuplicateNotDelivered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.RegisterByPhone(ctx, "John Doe", "+79179711111"); err != nil {
		t.Fatalf("RegisterByPhone: %v", err)
	}
	_, err := h.svc.RegisterByPhone(ctx, "Jane Doe", "+7-917-971-11-11")
	if !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("duplicate err = %v, want ErrDuplicateIdentity", err)
	}
	if n := h.sender.count("+79179711111"); n != 1 {
		t.Errorf("deliveries = %d, want 1", n)
	}
}

func TestRegisterByPhone_InvalidPhoneReportedBeforeDuplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.RegisterByPhone(ctx, "John Doe", "+79179711111"); err != nil {
		t.Fatalf("RegisterByPhone: %v", err)
	}
	_, err := h.svc.RegisterByPhone(ctx, "John Doe", "+7917971111")
	if !errors.Is(err, domain.ErrInvalidPhone) {
		t.Errorf("err = %v, want ErrInvalidPhone", err)
	}
}

func TestLogin_Failures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.RegisterByEmail(ctx, "John Doe", "john@example.com", "secret"); err != nil {
		t.Fatalf("RegisterByEmail: %v", err)
	}
	testCases := []struct {
		name       string
		login      string
		password   string
		wantCause  error
		wantReason string
	}{
		{"unknown login", "nobody@example.com", "secret", ErrUnknownLogin, "unknown_login"},
		{"wrong password", "john@example.com", "Secret", ErrPasswordMismatch, "password_mismatch"},
		{"blank login", "   ", "secret", credential.ErrInvalidCredential, "invalid_credential"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			summary, err := h.svc.Login(ctx, tc.login, tc.password)
			if summary != "" {
				t.Errorf("summary = %q, want empty", summary)
			}
			if !errors.Is(err, ErrAuthenticationFailure) {
				t.Errorf("err = %v, want ErrAuthenticationFailure", err)
			}
			if !errors.Is(err, tc.wantCause) {
				t.Errorf("err = %v, want cause %v", err, tc.wantCause)
			}
			if got := failureReason(err); got != tc.wantReason {
				t.Errorf("failureReason = %q, want %q", got, tc.wantReason)
			}
			if got := h.audit.last(); got.outcome != auditdomain.OutcomeFailure || got.metadata != "reason="+tc.wantReason {
				t.Errorf("last audit = %+v", got)
			}
		})
	}
	if errors.Is(ErrPasswordMismatch, ErrUnknownLogin) {
		t.Error("causes must be distinguishable")
	}
	if h.metrics.get("login.failure") != 3 {
		t.Errorf("login.failure = %d, want 3", h.metrics.get("login.failure"))
	}
	ev := h.events.waitFor(t, telemetry.EventLoginFailed)
	if ev.Outcome != auditdomain.OutcomeFailure {
		t.Errorf("login_failed event outcome = %q", ev.Outcome)
	}
}

func TestRequestAccessCode_RotatesCredential(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.RegisterByEmail(ctx, "John Doe", "john@example.com", "secret"); err != nil {
		t.Fatalf("RegisterByEmail: %v", err)
	}
	if err := h.svc.RequestAccessCode(ctx, "John@Example.com"); err != nil {
		t.Fatalf("RequestAccessCode: %v", err)
	}
	code := h.sender.last("john@example.com")
	if code == "" {
		t.Fatal("no code delivered")
	}
	if _, err := h.svc.Login(ctx, "john@example.com", "secret"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("old password err = %v, want ErrPasswordMismatch", err)
	}
	if _, err := h.svc.Login(ctx, "john@example.com", code); err != nil {
		t.Errorf("Login with new code: %v", err)
	}

	ev := h.events.waitFor(t, telemetry.EventAccessCodeRequested)
	for k, v := range ev.Metadata {
		if v == code {
			t.Errorf("event metadata %q leaks the access code", k)
		}
	}
}

func TestRequestAccessCode_UnknownLogin(t *testing.T) {
	h := newHarness(t)
	err := h.svc.RequestAccessCode(context.Background(), "+79990001234")
	if !errors.Is(err, ErrUnknownLogin) || !errors.Is(err, ErrAuthenticationFailure) {
		t.Errorf("err = %v, want ErrUnknownLogin wrapped in ErrAuthenticationFailure", err)
	}
}

func TestRequestAccessCode_DeliveryFailureKeepsRotation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u, err := h.svc.RegisterByPhone(ctx, "John Doe", "+79990001234")
	if err != nil {
		t.Fatalf("RegisterByPhone: %v", err)
	}
	first := u.AccessCode()
	h.sender.sendErr = errors.New("sms gateway down")

	if err := h.svc.RequestAccessCode(ctx, "+79990001234"); err != nil {
		t.Fatalf("RequestAccessCode returned delivery error: %v", err)
	}
	if u.AccessCode() == "" || !u.CheckPassword(u.AccessCode()) {
		t.Error("rotated code does not authenticate")
	}
	if u.AccessCode() != first && u.CheckPassword(first) {
		t.Error("previous code still authenticates")
	}
	if h.metrics.get("code.delivery_failed") != 1 {
		t.Errorf("code.delivery_failed = %d, want 1", h.metrics.get("code.delivery_failed"))
	}
}

func TestRegistry_NoSender(t *testing.T) {
	svc := NewRegistryService(userrepo.NewMemoryRepository(), zerolog.Nop(), Options{})
	u, err := svc.RegisterByPhone(context.Background(), "John", "+79990001234")
	if err != nil {
		t.Fatalf("RegisterByPhone: %v", err)
	}
	if _, err := svc.Login(context.Background(), "+79990001234", u.AccessCode()); err != nil {
		t.Errorf("Login: %v", err)
	}
}

func TestClearRegistry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.RegisterByEmail(ctx, "John", "john@example.com", "p"); err != nil {
		t.Fatalf("RegisterByEmail: %v", err)
	}
	if err := h.svc.ClearRegistry(ctx); err != nil {
		t.Fatalf("ClearRegistry: %v", err)
	}
	if users, _ := h.svc.ListUsers(ctx); len(users) != 0 {
		t.Errorf("users after clear = %d, want 0", len(users))
	}
	if _, err := h.svc.RegisterByEmail(ctx, "John", "john@example.com", "p"); err != nil {
		t.Errorf("re-register after clear: %v", err)
	}
	h.events.waitFor(t, telemetry.EventRegistryCleared)
}

func TestRegisterByEmail_ConcurrentSingleWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var wins, dups atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.RegisterByEmail(ctx, "John", "race@example.com", "p")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrDuplicateIdentity):
				dups.Add(1)
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 || dups.Load() != 19 {
		t.Errorf("wins = %d dups = %d, want 1 and 19", wins.Load(), dups.Load())
	}
}
