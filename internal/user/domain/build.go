package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"identity-registry/internal/credential"
)

// CSVFieldCount is the number of positional fields in an import record:
// name;email;salt:hash;phone.
const CSVFieldCount = 4

// CSVDelimiter separates import record fields.
const CSVDelimiter = ";"

// nameRun matches a run of Latin or Cyrillic letters.
var nameRun = regexp.MustCompile(`[a-zA-ZА-Яа-яЁё]+`)

// Request is one of EmailSignup, PhoneSignup or CSVImport.
type Request interface {
	build() (*User, error)
}

// EmailSignup registers a user with an email and a plaintext password.
type EmailSignup struct {
	FullName string
	Email    string
	Password string
}

// PhoneSignup registers a user with a phone; the first access code is generated on build.
type PhoneSignup struct {
	FullName string
	Phone    string
}

// CSVImport carries the raw fields of one import record.
type CSVImport struct {
	Fields []string
}

func (r EmailSignup) build() (*User, error) { return NewEmailUser(r.FullName, r.Email, r.Password) }
func (r PhoneSignup) build() (*User, error) { return NewPhoneUser(r.FullName, r.Phone) }
func (r CSVImport) build() (*User, error)   { return NewCSVUser(r.Fields) }

// Build constructs a User from any construction variant.
func Build(req Request) (*User, error) {
	if req == nil {
		return nil, errors.New("user request is nil")
	}
	return req.build()
}

// ParseCSVRecord splits one import line into positional fields.
func ParseCSVRecord(line string) CSVImport {
	return ParseCSVRecordWith(line, CSVDelimiter)
}

// ParseCSVRecordWith splits line on delim. An empty delim falls back to CSVDelimiter.
func ParseCSVRecordWith(line, delim string) CSVImport {
	if delim == "" {
		delim = CSVDelimiter
	}
	return CSVImport{Fields: strings.Split(line, delim)}
}

// NewEmailUser builds an email user with an unsalted hash of password.
func NewEmailUser(fullName, email, password string) (*User, error) {
	if isBlank(email) {
		return nil, fmt.Errorf("%w: email must not be blank", ErrMissingCredential)
	}
	if isBlank(password) {
		return nil, fmt.Errorf("%w: password must not be blank", ErrMissingCredential)
	}
	u, err := assemble(fullName, email, "", SourcePassword)
	if err != nil {
		return nil, err
	}
	u.passwordHash = credential.DeriveHash(u.salt, password)
	if err := u.validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// NewPhoneUser builds a phone user and issues its first access code.
func NewPhoneUser(fullName, phone string) (*User, error) {
	if isBlank(phone) {
		return nil, fmt.Errorf("%w: phone must not be blank", ErrMissingCredential)
	}
	u, err := assemble(fullName, "", phone, SourceSMS)
	if err != nil {
		return nil, err
	}
	if _, err := u.GenerateEncryptAccessCode(); err != nil {
		return nil, err
	}
	if err := u.validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// NewCSVUser builds a user from an import record. The stored salt and hash are kept as given,
// so the legacy password keeps working. Trailing blank fields past the fourth are tolerated.
func NewCSVUser(fields []string) (*User, error) {
	if len(fields) < CSVFieldCount {
		return nil, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedRecord, CSVFieldCount, len(fields))
	}
	for _, extra := range fields[CSVFieldCount:] {
		if !isBlank(extra) {
			return nil, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedRecord, CSVFieldCount, len(fields))
		}
	}
	salt, hash, err := credential.ParseSaltHashPair(fields[2])
	if err != nil {
		return nil, err
	}
	email, phone := fields[1], fields[3]
	if isBlank(email) == isBlank(phone) {
		return nil, ErrAmbiguousIdentity
	}
	u, err := assemble(fields[0], email, phone, SourceCSV)
	if err != nil {
		return nil, err
	}
	u.salt = salt
	u.passwordHash = hash
	if err := u.validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// assemble runs the shared pipeline: name parsing, email trim and phone normalization.
// Blank email or phone inputs are treated as absent.
func assemble(fullName, email, phone string, src Source) (*User, error) {
	first, last, err := parseFullName(fullName)
	if err != nil {
		return nil, err
	}
	u := &User{
		firstName: first,
		lastName:  last,
		fullName:  joinName(first, last),
		initials:  initials(first, last),
		source:    src,
		meta:      src.Meta(),
	}
	if !isBlank(email) {
		e, ok := credential.NormalizeEmail(email)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
		}
		u.email = e
	}
	if !isBlank(phone) {
		p, ok := credential.NormalizePhone(phone)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
		}
		u.phone = p
	}
	return u, nil
}

func (u *User) validate() error {
	if u.firstName == "" {
		return ErrInvalidFullName
	}
	if (u.email == "") == (u.phone == "") {
		return ErrAmbiguousIdentity
	}
	if u.passwordHash == "" {
		return fmt.Errorf("%w: password hash", ErrMissingCredential)
	}
	return nil
}

// parseFullName takes the first letter run as the first name and, when there is more than
// one run, the last run as the last name. Both are capitalized.
func parseFullName(raw string) (first, last string, err error) {
	runs := nameRun.FindAllString(raw, -1)
	if len(runs) == 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidFullName, raw)
	}
	first = capitalize(runs[0])
	if len(runs) > 1 {
		last = capitalize(runs[len(runs)-1])
	}
	return first, last, nil
}

// capitalize upper-cases the first letter and keeps the rest as written.
// Casers are stateful, so one is made per call.
func capitalize(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}

func joinName(first, last string) string {
	if last == "" {
		return first
	}
	return first + " " + last
}

func initials(first, last string) string {
	parts := make([]string, 0, 2)
	for _, s := range []string{first, last} {
		if r, _ := utf8.DecodeRuneInString(s); r != utf8.RuneError {
			parts = append(parts, string(r))
		}
	}
	return strings.ToUpper(strings.Join(parts, " "))
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
