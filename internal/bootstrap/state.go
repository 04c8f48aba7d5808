package bootstrap

// State is the bootstrap machine's position in the login flow.
type State int

const (
	StateInit State = iota
	StateOfflineShortcut
	StateAwaitingCredentials
	StateChecking
	StateActive
	StatePending
	StateRevoked
	StateUnknown
	StateHandedOff
	StateSignedOut
	StateOutage
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateOfflineShortcut:
		return "offline_shortcut"
	case StateAwaitingCredentials:
		return "awaiting_credentials"
	case StateChecking:
		return "checking"
	case StateActive:
		return "active"
	case StatePending:
		return "pending"
	case StateRevoked:
		return "revoked"
	case StateUnknown:
		return "unknown"
	case StateHandedOff:
		return "handed_off"
	case StateSignedOut:
		return "signed_out"
	case StateOutage:
		return "outage"
	default:
		return "invalid"
	}
}

// View is what the machine asks the login surface to show. The machine only
// emits these; it never touches presentation.
type View struct {
	State State
	// Name is the display name involved in the transition, when known.
	Name string
	// Message is an inline notice (outage detail, revocation wording).
	Message string
}
