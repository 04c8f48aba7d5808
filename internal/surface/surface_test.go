package surface

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"auth-bootstrap/internal/bootstrap"
	"auth-bootstrap/internal/identity"
	"auth-bootstrap/internal/models"
)

type scriptedBroker struct {
	mu          sync.Mutex
	requests    []string // "kind:identifier"
	goodCode    string
	requestErr  error
	session     *identity.Session
	verifyCalls int
}

func (b *scriptedBroker) RequestCode(ctx context.Context, kind, identifier, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.requestErr != nil {
		return b.requestErr
	}
	b.requests = append(b.requests, kind+":"+identifier)
	return nil
}

func (b *scriptedBroker) VerifyCode(ctx context.Context, identifier, code string) (*identity.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.verifyCalls++
	if code != b.goodCode {
		return nil, &identity.InvalidCodeError{Identifier: identifier}
	}
	return b.session, nil
}

type scriptedController struct {
	signOuts int
	reloads  int
}

func (c *scriptedController) SignOut(ctx context.Context) error {
	c.signOuts++
	return nil
}

func (c *scriptedController) Reload(ctx context.Context) error {
	c.reloads++
	return nil
}

func newTestSurface(broker *scriptedBroker) *HTTPSurface {
	s := NewHTTPSurface(broker, zap.NewNop())
	s.Render(bootstrap.View{State: bootstrap.StateAwaitingCredentials})
	return s
}

func postForm(t *testing.T, router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIndexRendersMethodSelect(t *testing.T) {
	s := newTestSurface(&scriptedBroker{})
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Email") || !strings.Contains(body, "Phone") {
		t.Error("method selection is missing from the login page")
	}
}

func TestEmailSubmitRequestsCode(t *testing.T) {
	broker := &scriptedBroker{goodCode: "123456"}
	s := newTestSurface(broker)
	router := s.Router()

	rec := postForm(t, router, "/email", url.Values{
		"name":  {"Asha"},
		"email": {"asha@example.com"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("POST /email = %d, want redirect", rec.Code)
	}

	broker.mu.Lock()
	requests := append([]string(nil), broker.requests...)
	broker.mu.Unlock()
	if len(requests) != 1 || requests[0] != models.KindEmail+":asha@example.com" {
		t.Errorf("requests = %v, want one email request", requests)
	}

	s.mu.Lock()
	step := s.step
	s.mu.Unlock()
	if step != stepEmailCode {
		t.Errorf("step = %q after email submit, want %q", step, stepEmailCode)
	}
}

func TestEmailSubmitRejectsBadAddress(t *testing.T) {
	broker := &scriptedBroker{}
	s := newTestSurface(broker)
	router := s.Router()

	postForm(t, router, "/email", url.Values{
		"name":  {"Asha"},
		"email": {"not-an-email"},
	})

	broker.mu.Lock()
	count := len(broker.requests)
	broker.mu.Unlock()
	if count != 0 {
		t.Error("code requested for an invalid email")
	}

	s.mu.Lock()
	kind := s.msgKind
	s.mu.Unlock()
	if kind != "error" {
		t.Errorf("msgKind = %q, want error", kind)
	}
}

func TestEmailVerifyWrongCodeStaysOnForm(t *testing.T) {
	broker := &scriptedBroker{goodCode: "123456"}
	s := newTestSurface(broker)
	router := s.Router()

	postForm(t, router, "/email", url.Values{"name": {"Asha"}, "email": {"asha@example.com"}})
	postForm(t, router, "/email/verify", url.Values{"pin": {"999999"}})

	s.mu.Lock()
	step, kind := s.step, s.msgKind
	s.mu.Unlock()
	if step != stepEmailCode {
		t.Errorf("step = %q after wrong code, want %q", step, stepEmailCode)
	}
	if kind != "error" {
		t.Errorf("msgKind = %q after wrong code, want error", kind)
	}
}

func TestEmailVerifyRejectsMalformedPIN(t *testing.T) {
	broker := &scriptedBroker{goodCode: "123456"}
	s := newTestSurface(broker)
	router := s.Router()

	postForm(t, router, "/email", url.Values{"name": {"Asha"}, "email": {"asha@example.com"}})
	postForm(t, router, "/email/verify", url.Values{"pin": {"12ab"}})

	broker.mu.Lock()
	calls := broker.verifyCalls
	broker.mu.Unlock()
	if calls != 0 {
		t.Error("malformed PIN reached the broker")
	}
}

func TestResendRepeatsLastRequest(t *testing.T) {
	broker := &scriptedBroker{goodCode: "123456"}
	s := newTestSurface(broker)
	router := s.Router()

	postForm(t, router, "/email", url.Values{"name": {"Asha"}, "email": {"asha@example.com"}})
	postForm(t, router, "/resend", url.Values{})

	broker.mu.Lock()
	count := len(broker.requests)
	broker.mu.Unlock()
	if count != 2 {
		t.Errorf("requests = %d after resend, want 2", count)
	}
}

func TestSignOutReachesController(t *testing.T) {
	s := newTestSurface(&scriptedBroker{})
	controller := &scriptedController{}
	s.SetController(controller)
	router := s.Router()

	postForm(t, router, "/signout", url.Values{})
	if controller.signOuts != 1 {
		t.Errorf("signOuts = %d, want 1", controller.signOuts)
	}
}

func TestRenderResetsStepSequence(t *testing.T) {
	s := newTestSurface(&scriptedBroker{})
	s.setStep(stepEmailCode)

	// Leaving and re-entering awaiting-credentials resets the flow.
	s.Render(bootstrap.View{State: bootstrap.StateChecking})
	s.Render(bootstrap.View{State: bootstrap.StateAwaitingCredentials, Message: "please sign in again"})

	s.mu.Lock()
	step, message := s.step, s.message
	s.mu.Unlock()
	if step != stepMethodSelect {
		t.Errorf("step = %q after re-entry, want %q", step, stepMethodSelect)
	}
	if message != "please sign in again" {
		t.Errorf("message = %q, want the machine's notice", message)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestSurface(&scriptedBroker{})
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rec.Code)
	}
}
