package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/marketplace-auth/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSignedUp        EventType = "signed_up"
	EventSignedIn        EventType = "signed_in"
	EventSignInFailed    EventType = "sign_in_failed"
	EventTokenRefreshed  EventType = "token_refreshed"
	EventRefreshRejected EventType = "refresh_rejected"
	EventSignedOut       EventType = "signed_out"
)

// Event represents an auth lifecycle event emitted by the session service.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Email     string      `json:"email"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(t EventType, email string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Email:     email,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// SessionPayload accompanies signed_in, token_refreshed and signed_out.
type SessionPayload struct {
	Role             domain.Role `json:"role,omitempty"`
	RefreshExpiresAt time.Time   `json:"refresh_expires_at,omitempty"`
}

// RefreshRejectedPayload records why a refresh was refused.
type RefreshRejectedPayload struct {
	Reason string `json:"reason"`
}
