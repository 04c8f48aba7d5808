package models

import "time"

// Account status values carried on a profile. Status is set to active when the
// record is created and is otherwise only mutated by an administrative actor.
const (
	StatusActive  = "active"
	StatusPending = "pending"
	StatusRevoked = "revoked"
)

// Profile is the durable per-user record in the remote document store,
// keyed by the identity provider's stable user id.
type Profile struct {
	UserID       string     `db:"user_id"`
	Name         string     `db:"name"`
	Email        *string    `db:"email"`
	Phone        *string    `db:"phone"`
	Status       string     `db:"status"`
	RegisteredAt time.Time  `db:"registered_at"`
	LastLogin    *time.Time `db:"last_login"`
}

// ProfileData carries the caller-supplied fields of an upsert. Nil pointers
// are left untouched in the stored record (merge semantics).
type ProfileData struct {
	Name  string
	Email *string
	Phone *string
}
