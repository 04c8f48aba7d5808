package bootstrap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"auth-bootstrap/internal/audit"
	"auth-bootstrap/internal/credstore"
	"auth-bootstrap/internal/handoff"
	"auth-bootstrap/internal/identity"
	"auth-bootstrap/internal/models"
	"auth-bootstrap/internal/readiness"
	"auth-bootstrap/internal/repository/scylla"
)

type fakeBroker struct {
	mu        sync.Mutex
	session   *identity.Session
	listeners []identity.Listener
	signedOut bool
}

func (b *fakeBroker) IsAuthenticated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session != nil
}

func (b *fakeBroker) CurrentSession() *identity.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

func (b *fakeBroker) OnSessionChange(l identity.Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *fakeBroker) SignOut(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = nil
	b.signedOut = true
	return nil
}

func (b *fakeBroker) fire(s *identity.Session) {
	b.mu.Lock()
	b.session = s
	listeners := append([]identity.Listener(nil), b.listeners...)
	b.mu.Unlock()
	for _, l := range listeners {
		l(s)
	}
}

// statusRepo returns one queued FetchStatus result per call, repeating the
// last entry once the queue is drained.
type statusRepo struct {
	mu       sync.Mutex
	profiles []*models.Profile
	errs     []error
	calls    int
}

func (r *statusRepo) FetchStatus(ctx context.Context, userID string) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls
	if i >= len(r.profiles) {
		i = len(r.profiles) - 1
	}
	r.calls++
	return r.profiles[i], r.errs[i]
}

func (r *statusRepo) Upsert(ctx context.Context, userID string, data models.ProfileData) error {
	return nil
}
func (r *statusRepo) TouchLastLogin(ctx context.Context, userID string) error { return nil }

func (r *statusRepo) HealthCheck(ctx context.Context) error { return nil }

func (r *statusRepo) fetchCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func activeProfile(uid string) *models.Profile {
	return &models.Profile{UserID: uid, Name: "Asha", Status: models.StatusActive}
}

type recordingSurface struct {
	mu    sync.Mutex
	views []View
}

func (s *recordingSurface) Render(view View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = append(s.views, view)
}

func (s *recordingSurface) last() (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.views) == 0 {
		return View{}, false
	}
	return s.views[len(s.views)-1], true
}

func (s *recordingSurface) saw(state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.views {
		if v.State == state {
			return true
		}
	}
	return false
}

type countLauncher struct {
	launches atomic.Int32
}

func (l *countLauncher) Launch() error {
	l.launches.Add(1)
	return nil
}

type fixture struct {
	machine  *Machine
	creds    *credstore.Store
	broker   *fakeBroker
	repo     *statusRepo
	surface  *recordingSurface
	launcher *countLauncher
	sleeps   *atomic.Int32
}

func newFixture(t *testing.T, repo *statusRepo, ready bool) *fixture {
	t.Helper()

	creds, err := credstore.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("credstore.NewStore() error = %v", err)
	}

	probe := readiness.Probe{Name: "backend", Check: func(ctx context.Context) bool { return ready }}
	gate := readiness.NewGate(time.Millisecond, 10*time.Millisecond, zap.NewNop())

	broker := &fakeBroker{}
	surface := &recordingSurface{}
	launcher := &countLauncher{}

	var sleeps atomic.Int32
	retry := RetryPolicy{
		MaxAttempts: 3,
		Interval:    time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			sleeps.Add(1)
			return nil
		},
	}

	machine := NewMachine(
		gate,
		[]readiness.Probe{probe},
		creds,
		broker,
		repo,
		surface,
		handoff.New(launcher),
		retry,
		audit.NewEmitter(nil, zap.NewNop()),
	)

	return &fixture{
		machine:  machine,
		creds:    creds,
		broker:   broker,
		repo:     repo,
		surface:  surface,
		launcher: launcher,
		sleeps:   &sleeps,
	}
}

func repoWith(results ...interface{}) *statusRepo {
	r := &statusRepo{}
	for _, res := range results {
		switch v := res.(type) {
		case *models.Profile:
			r.profiles = append(r.profiles, v)
			r.errs = append(r.errs, nil)
		case error:
			r.profiles = append(r.profiles, nil)
			r.errs = append(r.errs, v)
		}
	}
	return r
}

func TestOfflineShortcutBypassesBackend(t *testing.T) {
	repo := repoWith(activeProfile("user-1"))
	fx := newFixture(t, repo, true)

	if err := fx.creds.MarkAuthenticated("Asha", ""); err != nil {
		t.Fatalf("MarkAuthenticated() error = %v", err)
	}

	if err := fx.machine.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := fx.launcher.launches.Load(); got != 1 {
		t.Errorf("launches = %d, want 1", got)
	}
	if got := fx.repo.fetchCalls(); got != 0 {
		t.Errorf("FetchStatus called %d times on shortcut path, want 0", got)
	}
	last, _ := fx.surface.last()
	if last.State != StateHandedOff || last.Name != "Asha" {
		t.Errorf("last view = %+v, want HandedOff with name", last)
	}
}

func TestOfflineShortcutSurvivesOutage(t *testing.T) {
	fx := newFixture(t, repoWith(activeProfile("user-1")), false)

	if err := fx.creds.MarkAuthenticated("Asha", ""); err != nil {
		t.Fatalf("MarkAuthenticated() error = %v", err)
	}

	if err := fx.machine.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, want nil despite capabilities missing", err)
	}
	if got := fx.launcher.launches.Load(); got != 1 {
		t.Errorf("launches = %d, want 1 with backend down", got)
	}
}

func TestOutageWithoutShortcut(t *testing.T) {
	fx := newFixture(t, repoWith(activeProfile("user-1")), false)

	err := fx.machine.Run(context.Background())
	var unavailable *readiness.CapabilityUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Run() = %v, want CapabilityUnavailableError", err)
	}

	last, ok := fx.surface.last()
	if !ok || last.State != StateOutage {
		t.Errorf("last view = %+v, want Outage", last)
	}
	if fx.launcher.launches.Load() != 0 {
		t.Error("handoff happened during outage")
	}
}

func TestActiveProfileHandsOff(t *testing.T) {
	fx := newFixture(t, repoWith(activeProfile("user-1")), true)
	fx.broker.session = &identity.Session{UID: "user-1", Email: "asha@example.com"}

	if err := fx.machine.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := fx.launcher.launches.Load(); got != 1 {
		t.Errorf("launches = %d, want 1", got)
	}
	if !fx.surface.saw(StateChecking) {
		t.Error("checking view never rendered")
	}
	present, name := fx.creds.ReadOfflineAuth()
	if !present || name != "Asha" {
		t.Errorf("offline shortcut after activation = (%v, %q), want (true, Asha)", present, name)
	}
}

func TestPendingTreatedAsActive(t *testing.T) {
	pending := &models.Profile{UserID: "user-1", Name: "Asha", Status: models.StatusPending}
	fx := newFixture(t, repoWith(pending), true)
	fx.broker.session = &identity.Session{UID: "user-1"}

	if err := fx.machine.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := fx.launcher.launches.Load(); got != 1 {
		t.Errorf("launches = %d for pending account, want 1", got)
	}
}

func TestRevokedShortCircuits(t *testing.T) {
	revoked := &models.Profile{UserID: "user-1", Name: "Asha", Status: models.StatusRevoked}
	fx := newFixture(t, repoWith(revoked), true)
	fx.broker.session = &identity.Session{UID: "user-1"}

	if err := fx.machine.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if fx.launcher.launches.Load() != 0 {
		t.Error("handoff happened for a revoked account")
	}
	if got := fx.sleeps.Load(); got != 0 {
		t.Errorf("retry slept %d times on revoked, want 0", got)
	}
	if got := fx.repo.fetchCalls(); got != 1 {
		t.Errorf("FetchStatus called %d times on revoked, want 1", got)
	}
	last, _ := fx.surface.last()
	if last.State != StateRevoked || last.Message == "" {
		t.Errorf("last view = %+v, want Revoked with message", last)
	}
}

func TestAbsentRetriesThenGivesUp(t *testing.T) {
	fx := newFixture(t, repoWith(scylla.ErrProfileNotFound), true)
	fx.broker.session = &identity.Session{UID: "user-1"}

	if err := fx.machine.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := fx.repo.fetchCalls(); got != 3 {
		t.Errorf("FetchStatus called %d times, want 3", got)
	}
	if got := fx.sleeps.Load(); got != 2 {
		t.Errorf("slept %d times, want 2 (between attempts only)", got)
	}
	if fx.launcher.launches.Load() != 0 {
		t.Error("handoff happened with unknown account status")
	}
	last, _ := fx.surface.last()
	if last.State != StateAwaitingCredentials || last.Message == "" {
		t.Errorf("last view = %+v, want AwaitingCredentials with message", last)
	}
}

func TestAbsentThenFound(t *testing.T) {
	fx := newFixture(t, repoWith(scylla.ErrProfileNotFound, activeProfile("user-1")), true)
	fx.broker.session = &identity.Session{UID: "user-1"}

	if err := fx.machine.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := fx.sleeps.Load(); got != 1 {
		t.Errorf("slept %d times, want 1", got)
	}
	if got := fx.launcher.launches.Load(); got != 1 {
		t.Errorf("launches = %d, want 1", got)
	}
}

func TestReadErrorsCollapseToAbsent(t *testing.T) {
	fx := newFixture(t, repoWith(errors.New("cluster timeout")), true)
	fx.broker.session = &identity.Session{UID: "user-1"}

	if err := fx.machine.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := fx.repo.fetchCalls(); got != 3 {
		t.Errorf("FetchStatus called %d times, want 3", got)
	}
	if fx.launcher.launches.Load() != 0 {
		t.Error("handoff happened despite read failures")
	}
	last, _ := fx.surface.last()
	if last.State != StateAwaitingCredentials {
		t.Errorf("last view = %+v, want AwaitingCredentials", last)
	}
}

func TestNoSessionAwaitsCredentials(t *testing.T) {
	fx := newFixture(t, repoWith(activeProfile("user-1")), true)

	if err := fx.machine.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	last, _ := fx.surface.last()
	if last.State != StateAwaitingCredentials {
		t.Errorf("last view = %+v, want AwaitingCredentials", last)
	}
	if fx.launcher.launches.Load() != 0 {
		t.Error("handoff happened without a session")
	}
}

func TestSessionLossReturnsToLogin(t *testing.T) {
	fx := newFixture(t, repoWith(activeProfile("user-1")), true)

	if err := fx.machine.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	fx.broker.fire(nil)

	last, _ := fx.surface.last()
	if last.State != StateAwaitingCredentials {
		t.Errorf("last view = %+v, want AwaitingCredentials after session loss", last)
	}
}

func TestSignOutClearsDeviceRecord(t *testing.T) {
	fx := newFixture(t, repoWith(activeProfile("user-1")), true)
	fx.broker.session = &identity.Session{UID: "user-1"}

	if err := fx.machine.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if present, _ := fx.creds.ReadOfflineAuth(); !present {
		t.Fatal("precondition: offline shortcut should be recorded after activation")
	}

	if err := fx.machine.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}

	if !fx.broker.signedOut {
		t.Error("provider sign-out never happened")
	}
	if present, _ := fx.creds.ReadOfflineAuth(); present {
		t.Error("offline shortcut survived sign-out")
	}
	last, _ := fx.surface.last()
	if last.State != StateAwaitingCredentials {
		t.Errorf("last view = %+v, want AwaitingCredentials after sign-out", last)
	}
}
