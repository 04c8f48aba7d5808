package identity

import "context"

// Session is the provider-issued proof of identity for the current run.
// At most one session is live at a time; the broker holds a read-only view.
type Session struct {
	UID   string
	Email string
	Phone string
}

// Listener receives session transitions. A nil session means signed out.
// Delivery is asynchronous and may fire zero or more times after start.
type Listener func(session *Session)

// Confirmation is an in-flight phone challenge awaiting its SMS code.
type Confirmation interface {
	Confirm(ctx context.Context, code string) (*Session, error)
}

// Provider is the identity provider capability. It is opaque to this layer:
// only the call contract below matters.
type Provider interface {
	// SignInWithCustomToken exchanges a signed custom token for a session.
	SignInWithCustomToken(ctx context.Context, token string) (*Session, error)
	// SignInWithPhoneNumber starts a phone challenge. botToken must come from
	// a completed bot-check challenge.
	SignInWithPhoneNumber(ctx context.Context, phone, botToken string) (Confirmation, error)
	// SignOut destroys the live session and notifies listeners.
	SignOut(ctx context.Context) error
	// CurrentSession returns the live session, or nil.
	CurrentSession() *Session
	// OnSessionChange registers a listener for session transitions.
	OnSessionChange(listener Listener)
}

// BotCheck is the opaque verifier capability required before a phone code
// can be dispatched.
type BotCheck interface {
	Challenge(ctx context.Context) (token string, err error)
}
