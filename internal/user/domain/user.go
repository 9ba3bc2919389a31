// Package domain holds the User entity and the constructors that validate email, phone and
// CSV registrations before a User is returned.
package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"identity-registry/internal/credential"
)

// Source records which registration channel produced a user.
type Source string

const (
	SourcePassword Source = "password"
	SourceSMS      Source = "sms"
	SourceCSV      Source = "csv"
)

// Meta keys used for the provenance tag.
const (
	MetaAuth   = "auth"
	MetaSource = "src"
)

// Meta returns the provenance tag for s: {"auth": "password"}, {"auth": "sms"} or {"src": "csv"}.
func (s Source) Meta() map[string]string {
	if s == SourceCSV {
		return map[string]string{MetaSource: string(s)}
	}
	return map[string]string{MetaAuth: string(s)}
}

// User is a registered identity. It is built only by NewEmailUser, NewPhoneUser, NewCSVUser
// (or Build) and is read-only afterwards, except for the access code and password hash which
// GenerateEncryptAccessCode replaces together.
type User struct {
	firstName string
	lastName  string
	fullName  string
	initials  string
	email     string
	phone     string
	salt      string
	source    Source
	meta      map[string]string

	mu           sync.RWMutex
	accessCode   string
	passwordHash string
}

// FirstName is the capitalized first letter run of the full name.
func (u *User) FirstName() string { return u.firstName }

// LastName is empty when the name had a single letter run.
func (u *User) LastName() string { return u.lastName }

// FullName is the canonical "First" or "First Last" form.
func (u *User) FullName() string { return u.fullName }

// Initials are the upper-cased first letters, "J D" or "J" for a single name.
func (u *User) Initials() string { return u.initials }

// Email is the trimmed email, or empty for phone-only users.
func (u *User) Email() string { return u.email }

// Phone is the normalized "+NNNNNNNNNNN" phone, or empty for email-only users.
func (u *User) Phone() string { return u.phone }

// Salt is empty for users registered by email or phone.
func (u *User) Salt() string { return u.salt }

// Source is the registration channel that built the user.
func (u *User) Source() Source { return u.source }

// Meta returns a copy of the provenance tag.
func (u *User) Meta() map[string]string { return maps.Clone(u.meta) }

// Login is the registry key: the lower-cased email if present, otherwise the phone.
func (u *User) Login() string {
	if u.email != "" {
		return strings.ToLower(u.email)
	}
	return u.phone
}

// PasswordHash returns the current credential hash. Privileged; never render it to end users.
func (u *User) PasswordHash() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.passwordHash
}

// AccessCode returns the last issued access code, or empty if none was issued.
// Privileged; only delivery channels and tests should read it.
func (u *User) AccessCode() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.accessCode
}

// CheckPassword reports whether candidate matches the stored hash.
func (u *User) CheckPassword(candidate string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return credential.HashEqual(u.salt, candidate, u.passwordHash)
}

// GenerateEncryptAccessCode issues a new access code and makes it the user's only valid
// secret. The code and its hash are swapped as a pair; the previous password or code stops
// working. The new code is returned for delivery.
func (u *User) GenerateEncryptAccessCode() (string, error) {
	code, err := credential.GenerateAccessCode()
	if err != nil {
		return "", fmt.Errorf("generate access code: %w", err)
	}
	hash := credential.DeriveHash(u.salt, code)
	u.mu.Lock()
	u.accessCode = code
	u.passwordHash = hash
	u.mu.Unlock()
	return code, nil
}

// ProfileSummary renders the public profile. Salt, hash and access code are never included.
func (u *User) ProfileSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "firstName: %s\n", u.firstName)
	fmt.Fprintf(&b, "lastName: %s\n", orNull(u.lastName))
	fmt.Fprintf(&b, "login: %s\n", u.Login())
	fmt.Fprintf(&b, "fullName: %s\n", u.fullName)
	fmt.Fprintf(&b, "initials: %s\n", orNull(u.initials))
	fmt.Fprintf(&b, "email: %s\n", orNull(u.email))
	fmt.Fprintf(&b, "phone: %s\n", orNull(u.phone))
	fmt.Fprintf(&b, "meta: %s", formatMeta(u.meta))
	return b.String()
}

func (u *User) String() string { return u.ProfileSummary() }

func orNull(s string) string {
	if s == "" {
		return "null"
	}
	return s
}

func formatMeta(meta map[string]string) string {
	pairs := make([]string, 0, len(meta))
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		pairs = append(pairs, k+"="+meta[k])
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}
