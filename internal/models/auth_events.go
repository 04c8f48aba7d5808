package models

import "time"

// Auth event types emitted to the audit stream.
const (
	EventCodeRequested = "code_requested"
	EventSignedIn      = "signed_in"
	EventSignInFailed  = "sign_in_failed"
	EventSignedOut     = "signed_out"
	EventRevokedSeen   = "revoked_account"
	EventHandoff       = "handoff"
)

// AuthEvent is a best-effort audit record of a bootstrap auth transition.
type AuthEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	EventTime  time.Time `json:"event_time"`
	UserID     string    `json:"user_id,omitempty"`
	Identifier string    `json:"identifier,omitempty"`
	Details    string    `json:"details,omitempty"`
}
