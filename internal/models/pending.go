package models

import "time"

// Identifier kinds accepted by the credential flow.
const (
	KindEmail = "email"
	KindPhone = "phone"
)

// PendingCredentialRequest tracks an outstanding one-time-code challenge.
// A fresh request for the same identifier replaces the record; verification
// consumes it.
type PendingCredentialRequest struct {
	Identifier  string    `json:"identifier"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name"`
	Awaiting    bool      `json:"awaiting"`
	RequestedAt time.Time `json:"requested_at"`
}
