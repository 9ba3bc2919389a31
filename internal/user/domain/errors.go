package domain

import "errors"

// Sentinel errors for user construction. Each failure is wrapped with the offending value,
// so callers should match with errors.Is.
var (
	ErrInvalidFullName   = errors.New("full name is empty or invalid")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidPhone      = errors.New("invalid phone")
	ErrMissingCredential = errors.New("required credential is missing")
	ErrAmbiguousIdentity = errors.New("exactly one of email or phone is required")
	ErrMalformedRecord   = errors.New("malformed import record")
)
