// Package credential holds the stateless rules shared by every registration channel:
// email/phone/login normalization, salted hash derivation, access-code generation, and
// parsing of imported salt:hash fields.
package credential

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidCredential is returned when a login matches neither the phone nor the email rules.
	ErrInvalidCredential = errors.New("incorrect phone or email")
	// ErrMalformedCredentialField is returned when a salt:hash field does not split into two non-blank parts.
	ErrMalformedCredentialField = errors.New("invalid salt:hash string")
)

// PhoneDigits is the number of digits a normalized phone carries after the leading '+'.
const PhoneDigits = 11

var phonePattern = regexp.MustCompile(`^\+\d{11}$`)

// NormalizeEmail returns the trimmed email. ok is false when raw is blank.
// Case is preserved; only Login lower-cases.
func NormalizeEmail(raw string) (email string, ok bool) {
	email = strings.TrimSpace(raw)
	if email == "" {
		return "", false
	}
	return email, true
}

// NormalizePhone keeps only the digits of raw and returns them as "+" followed by exactly
// PhoneDigits digits. Separators, brackets and letters are discarded before the digit count,
// so "8(913)000-00-00" and "+7 (917) 971-11-11" both normalize. A "+" anywhere in raw is
// discarded too; the leading "+" is always added, never required. ok is false otherwise.
func NormalizePhone(raw string) (phone string, ok bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	var b strings.Builder
	b.Grow(PhoneDigits + 1)
	b.WriteByte('+')
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	phone = b.String()
	if !phonePattern.MatchString(phone) {
		return "", false
	}
	return phone, true
}

// NormalizeLogin maps user input to the registry key. Phone rules are tried first; otherwise
// the trimmed, lower-cased email is used. Returns ErrInvalidCredential when neither applies.
func NormalizeLogin(raw string) (string, error) {
	if phone, ok := NormalizePhone(raw); ok {
		return phone, nil
	}
	if email, ok := NormalizeEmail(raw); ok {
		return strings.ToLower(email), nil
	}
	return "", ErrInvalidCredential
}

// ParseSaltHashPair splits an imported "salt:hash" field. Blank segments are dropped and
// exactly two must remain.
func ParseSaltHashPair(raw string) (salt, hash string, err error) {
	parts := make([]string, 0, 2)
	for _, p := range strings.Split(raw, ":") {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedCredentialField, raw)
	}
	return parts[0], parts[1], nil
}
