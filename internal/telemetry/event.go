package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the registry.
const (
	EventUserRegistered      = "user_registered"
	EventLoginSucceeded      = "login_succeeded"
	EventLoginFailed         = "login_failed"
	EventAccessCodeRequested = "access_code_requested"
	EventUsersImported       = "users_imported"
	EventRegistryCleared     = "registry_cleared"
)

// Source is the service name stamped on events.
const Source = "identity-registry"

// Event is one registry telemetry event. It is serialized as JSON onto Kafka and as an
// OTel log record. Metadata must never carry passwords, hashes or access codes.
type Event struct {
	ID        string            `json:"id"`
	EventType string            `json:"eventType"`
	Login     string            `json:"login,omitempty"`
	Source    string            `json:"source"`
	Outcome   string            `json:"outcome,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// NewEvent returns an event of eventType stamped with Source and the current UTC time.
func NewEvent(eventType, login, outcome string, metadata map[string]string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		EventType: eventType,
		Login:     login,
		Source:    Source,
		Outcome:   outcome,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}
