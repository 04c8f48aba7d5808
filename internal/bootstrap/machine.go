package bootstrap

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"auth-bootstrap/internal/audit"
	"auth-bootstrap/internal/credstore"
	"auth-bootstrap/internal/handoff"
	"auth-bootstrap/internal/identity"
	"auth-bootstrap/internal/models"
	"auth-bootstrap/internal/readiness"
	"auth-bootstrap/internal/repository/scylla"
	"auth-bootstrap/internal/util"
)

// CredentialBroker is the slice of the identity broker the machine needs.
// Requesting and verifying codes is the surface's business, not the
// machine's.
type CredentialBroker interface {
	IsAuthenticated() bool
	CurrentSession() *identity.Session
	OnSessionChange(identity.Listener)
	SignOut(ctx context.Context) error
}

// Surface renders the machine's view states. Implementations own all
// presentation; the machine only emits transitions.
type Surface interface {
	Render(view View)
}

// Machine is the bootstrap state machine: readiness, offline shortcut,
// session checks and handoff routing.
type Machine struct {
	gate     *readiness.Gate
	probes   []readiness.Probe
	creds    *credstore.Store
	broker   CredentialBroker
	profiles scylla.ProfileRepository
	surface  Surface
	handoff  *handoff.Handoff
	retry    RetryPolicy
	audit    *audit.Emitter

	mu    sync.Mutex
	state State
}

func NewMachine(
	gate *readiness.Gate,
	probes []readiness.Probe,
	creds *credstore.Store,
	broker CredentialBroker,
	profiles scylla.ProfileRepository,
	surf Surface,
	h *handoff.Handoff,
	retry RetryPolicy,
	emitter *audit.Emitter,
) *Machine {
	return &Machine{
		gate:     gate,
		probes:   probes,
		creds:    creds,
		broker:   broker,
		profiles: profiles,
		surface:  surf,
		handoff:  h,
		retry:    retry,
		audit:    emitter,
		state:    StateInit,
	}
}

// State returns the machine's current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	util.Debug("Bootstrap state changed", zap.String("state", s.String()))
}

// Run performs the load-time routing: wait for capabilities, take the
// offline shortcut if recorded, otherwise route on the provider's session
// state and keep listening for session transitions.
func (m *Machine) Run(ctx context.Context) error {
	m.setState(StateInit)

	if err := m.gate.Await(ctx, m.probes...); err != nil {
		// Offline availability is the point of the local flag: a device
		// with the shortcut recorded still hands off with everything down.
		if present, name := m.creds.ReadOfflineAuth(); present {
			m.offlineShortcut(name)
			return nil
		}
		var unavailable *readiness.CapabilityUnavailableError
		if errors.As(err, &unavailable) {
			m.setState(StateOutage)
			m.surface.Render(View{State: StateOutage, Message: unavailable.Error()})
		}
		return err
	}

	if present, name := m.creds.ReadOfflineAuth(); present {
		m.offlineShortcut(name)
		return nil
	}

	m.broker.OnSessionChange(func(session *identity.Session) {
		if session == nil {
			if m.State() == StateHandedOff {
				return
			}
			m.awaitCredentials("")
			return
		}
		// May interleave with an in-flight check; Handoff.Start is the
		// idempotency point.
		go m.check(ctx, session)
	})

	if m.broker.IsAuthenticated() {
		m.check(ctx, m.broker.CurrentSession())
		return nil
	}

	m.awaitCredentials("")
	return nil
}

// Reload re-runs the load-time routing, the manual-retry affordance of the
// outage notice.
func (m *Machine) Reload(ctx context.Context) error {
	return m.Run(ctx)
}

func (m *Machine) offlineShortcut(name string) {
	util.Info("Offline shortcut present, bypassing authentication",
		zap.String("name", name))
	m.setState(StateOfflineShortcut)
	m.start(View{State: StateHandedOff, Name: name})
}

func (m *Machine) awaitCredentials(message string) {
	m.setState(StateAwaitingCredentials)
	m.surface.Render(View{State: StateAwaitingCredentials, Message: message})
}

// check resolves the account status for a live session and routes the
// outcome. Absent lookups are retried per the policy; revoked accounts
// short-circuit immediately.
func (m *Machine) check(ctx context.Context, session *identity.Session) {
	m.setState(StateChecking)
	m.surface.Render(View{State: StateChecking})

	for attempt := 1; attempt <= m.retry.attempts(); attempt++ {
		profile := m.fetchStatusSoft(ctx, session.UID)
		if profile != nil {
			if profile.Status == models.StatusRevoked {
				m.revoked(ctx, session, profile)
				return
			}
			m.activate(ctx, session, profile)
			return
		}

		if attempt < m.retry.attempts() {
			util.Info("Profile absent, retrying status check",
				zap.String("user_id", session.UID),
				zap.Int("attempt", attempt))
			if err := m.retry.sleep(ctx); err != nil {
				break
			}
		}
	}

	// Absent after retries, or the backend never answered: the two are not
	// distinguishable here on purpose, matching the legacy behaviour.
	util.Warn("Account status unknown after retries",
		zap.String("user_id", session.UID),
		zap.Int("attempts", m.retry.attempts()))
	m.setState(StateUnknown)
	m.awaitCredentials("We could not confirm your account. Please sign in again.")
}

// fetchStatusSoft collapses read errors into "absent" for the caller while
// keeping the distinction visible in the logs.
func (m *Machine) fetchStatusSoft(ctx context.Context, userID string) *models.Profile {
	profile, err := m.profiles.FetchStatus(ctx, userID)
	if err != nil {
		if !errors.Is(err, scylla.ErrProfileNotFound) {
			util.Error("Profile status read failed, treating as absent",
				zap.String("user_id", userID),
				zap.Error(err))
		}
		return nil
	}
	return profile
}

func (m *Machine) activate(ctx context.Context, session *identity.Session, profile *models.Profile) {
	if profile.Status == models.StatusPending {
		m.setState(StatePending)
	} else {
		m.setState(StateActive)
	}

	email := session.Email
	if profile.Email != nil {
		email = *profile.Email
	}
	if err := m.creds.MarkAuthenticated(profile.Name, email); err != nil {
		util.Warn("Failed to persist offline shortcut", zap.Error(err))
	}

	m.audit.Emit(ctx, models.EventHandoff, session.UID, email, profile.Status)
	m.start(View{State: StateHandedOff, Name: profile.Name})
}

func (m *Machine) revoked(ctx context.Context, session *identity.Session, profile *models.Profile) {
	util.Warn("Account revoked", zap.String("user_id", session.UID))
	m.audit.Emit(ctx, models.EventRevokedSeen, session.UID, "", "")
	m.setState(StateRevoked)
	m.surface.Render(View{
		State:   StateRevoked,
		Name:    profile.Name,
		Message: "Your account has been suspended. Contact your administrator.",
	})
}

func (m *Machine) start(view View) {
	m.surface.Render(view)
	m.handoff.Start()
	m.setState(StateHandedOff)
}

// SignOut is the only transition out of the revoked view: it clears the
// provider session and the device credential record, then returns to the
// login surface.
func (m *Machine) SignOut(ctx context.Context) error {
	if err := m.broker.SignOut(ctx); err != nil {
		util.Error("Provider sign-out failed", zap.Error(err))
		return err
	}
	if err := m.creds.Clear(); err != nil {
		util.Warn("Failed to clear credential store", zap.Error(err))
	}
	m.setState(StateSignedOut)
	m.awaitCredentials("")
	return nil
}
