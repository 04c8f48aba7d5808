package surface

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"auth-bootstrap/internal/bootstrap"
	"auth-bootstrap/internal/identity"
	"auth-bootstrap/internal/util"
)

// Login flow steps within the awaiting-credentials view.
const (
	stepMethodSelect = "method-select"
	stepEmailForm    = "email-form"
	stepEmailCode    = "email-code"
	stepPhoneForm    = "phone-form"
	stepPhoneCode    = "phone-code"
)

// CodeBroker is the slice of the identity broker the surface drives.
type CodeBroker interface {
	RequestCode(ctx context.Context, kind, identifier, name string) error
	VerifyCode(ctx context.Context, identifier, code string) (*identity.Session, error)
}

// Controller is the slice of the bootstrap machine the surface can trigger.
type Controller interface {
	SignOut(ctx context.Context) error
	Reload(ctx context.Context) error
}

// HTTPSurface renders the login step sequence over a local HTTP listener
// and forwards form input to the broker. It owns no business logic: the
// machine tells it what to show via Render.
type HTTPSurface struct {
	broker     CodeBroker
	controller Controller
	logger     *zap.Logger

	ready atomic.Bool

	mu      sync.Mutex
	view    bootstrap.View
	step    string
	name    string
	email   string
	phone   string
	message string
	msgKind string // "error" or "success"
}

func NewHTTPSurface(broker CodeBroker, logger *zap.Logger) *HTTPSurface {
	return &HTTPSurface{
		broker: broker,
		logger: logger,
		view:   bootstrap.View{State: bootstrap.StateInit},
		step:   stepMethodSelect,
	}
}

// SetController wires the machine in after construction; the machine and
// surface reference each other, so one side has to be late-bound.
func (s *HTTPSurface) SetController(c Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller = c
}

// MarkReady tells the readiness gate the surface is usable.
func (s *HTTPSurface) MarkReady() {
	s.ready.Store(true)
}

// Ready reports whether the surface is serving.
func (s *HTTPSurface) Ready() bool {
	return s.ready.Load()
}

// Render accepts a view transition from the machine. Moving back to the
// login surface resets the step sequence.
func (s *HTTPSurface) Render(view bootstrap.View) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.view.State
	s.view = view
	if view.State == bootstrap.StateAwaitingCredentials && previous != bootstrap.StateAwaitingCredentials {
		s.step = stepMethodSelect
		s.message = view.Message
		s.msgKind = "error"
		if view.Message == "" {
			s.msgKind = ""
		}
	}

	util.Debug("Surface view updated",
		zap.String("state", view.State.String()),
		zap.String("previous", previous.String()))
}

func (s *HTTPSurface) setMessage(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgKind = kind
	s.message = message
}

func (s *HTTPSurface) setStep(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = step
	s.message = ""
	s.msgKind = ""
}
