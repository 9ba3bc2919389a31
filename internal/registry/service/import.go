package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"identity-registry/internal/audit"
	auditdomain "identity-registry/internal/audit/domain"
	"identity-registry/internal/telemetry"
	"identity-registry/internal/user/domain"
)

const outcomePartial = "partial"

// SkippedLine is one import line that did not produce a user.
type SkippedLine struct {
	// Number is the 1-based position of the line in the batch.
	Number int
	Line   string
	Fields []string
	Err    error
}

// String renders the skip as "<reason> from [field, field, ...]".
func (l SkippedLine) String() string {
	return fmt.Sprintf("%v from [%s]", l.Err, strings.Join(l.Fields, ", "))
}

// ImportReport is the outcome of one import batch.
type ImportReport struct {
	// Users are the imported users in input order.
	Users   []*domain.User
	Skipped []SkippedLine
}

// ImportBatch builds and stores a user per line. Each failing line is recorded in the report
// and logged; it never aborts the rest of the batch. Whitespace-only lines are ignored.
func (s *RegistryService) ImportBatch(ctx context.Context, lines []string) *ImportReport {
	report := &ImportReport{}
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec := domain.ParseCSVRecordWith(line, s.delimiter)
		u, err := domain.Build(rec)
		if err == nil {
			err = s.insert(ctx, u)
		}
		if err != nil {
			skipped := SkippedLine{Number: i + 1, Line: line, Fields: rec.Fields, Err: err}
			report.Skipped = append(report.Skipped, skipped)
			s.log.Warn().Int("line", skipped.Number).Strs("fields", redactFields(rec.Fields)).Err(err).Msg("import line skipped")
			s.metrics.RecordRegistration(ctx, string(domain.SourceCSV), auditdomain.OutcomeFailure)
			continue
		}
		report.Users = append(report.Users, u)
		s.metrics.RecordRegistration(ctx, string(domain.SourceCSV), auditdomain.OutcomeSuccess)
		s.logAudit(ctx, u.Login(), audit.ActionImport, auditdomain.OutcomeSuccess, "line="+strconv.Itoa(i+1))
	}

	imported, skipped := len(report.Users), len(report.Skipped)
	s.metrics.RecordImport(ctx, imported, skipped)
	s.log.Info().Int("imported", imported).Int("skipped", skipped).Msg("import batch done")
	outcome := auditdomain.OutcomeSuccess
	if skipped > 0 {
		outcome = outcomePartial
	}
	s.emit(ctx, telemetry.EventUsersImported, "", outcome, map[string]string{
		"imported": strconv.Itoa(imported),
		"skipped":  strconv.Itoa(skipped),
	})
	return report
}

// ImportUsers imports lines and returns only the users that were created.
func (s *RegistryService) ImportUsers(ctx context.Context, lines []string) []*domain.User {
	return s.ImportBatch(ctx, lines).Users
}

// redactFields masks the hash half of the salt:hash field for logging.
func redactFields(fields []string) []string {
	out := make([]string, len(fields))
	copy(out, fields)
	if len(out) > 2 {
		if salt, _, ok := strings.Cut(out[2], ":"); ok {
			out[2] = salt + ":***"
		}
	}
	return out
}
