package domain

import "time"

// Outcome values for AuditLog.Outcome.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuditLog represents one registry audit event.
type AuditLog struct {
	ID        string
	Login     string
	Action    string
	Resource  string
	Outcome   string
	Metadata  string
	CreatedAt time.Time
}
