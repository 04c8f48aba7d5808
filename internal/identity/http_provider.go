package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"auth-bootstrap/internal/util"
)

const defaultProviderTimeout = 15 * time.Second

// HTTPProvider speaks JSON to the identity provider's token service and
// keeps the resulting session in memory for the life of the process.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	mu        sync.RWMutex
	session   *Session
	listeners []Listener
}

// NewHTTPProvider returns a provider client for the given endpoint.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &HTTPProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sessionResponse struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type phoneStartResponse struct {
	ChallengeID string `json:"challenge_id"`
}

type providerError struct {
	Message string `json:"message"`
}

// SignInWithCustomToken exchanges a signed custom token for a session and
// notifies listeners of the transition.
func (p *HTTPProvider) SignInWithCustomToken(ctx context.Context, token string) (*Session, error) {
	var resp sessionResponse
	if err := p.post(ctx, "/v1/sessions/exchange", map[string]string{"custom_token": token}, &resp); err != nil {
		return nil, err
	}

	session := &Session{UID: resp.UID, Email: resp.Email, Phone: resp.Phone}
	p.setSession(session)
	return session, nil
}

// SignInWithPhoneNumber starts a phone challenge and returns the
// confirmation handle awaiting the SMS code.
func (p *HTTPProvider) SignInWithPhoneNumber(ctx context.Context, phone, botToken string) (Confirmation, error) {
	var resp phoneStartResponse
	body := map[string]string{"phone": phone, "bot_token": botToken}
	if err := p.post(ctx, "/v1/phone/start", body, &resp); err != nil {
		return nil, err
	}
	return &phoneConfirmation{provider: p, challengeID: resp.ChallengeID, phone: phone}, nil
}

// SignOut destroys the live session. Provider-side revocation is best
// effort; the local session is always cleared.
func (p *HTTPProvider) SignOut(ctx context.Context) error {
	if err := p.post(ctx, "/v1/sessions/revoke", map[string]string{}, nil); err != nil {
		util.Warn("Provider sign-out call failed, clearing local session anyway", zap.Error(err))
	}
	p.setSession(nil)
	return nil
}

// CurrentSession returns the live session, or nil.
func (p *HTTPProvider) CurrentSession() *Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

// OnSessionChange registers a listener for session transitions.
func (p *HTTPProvider) OnSessionChange(listener Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, listener)
}

func (p *HTTPProvider) setSession(session *Session) {
	p.mu.Lock()
	p.session = session
	listeners := make([]Listener, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, l := range listeners {
		go l(session)
	}
}

func (p *HTTPProvider) post(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return &DeliveryError{Op: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return &DeliveryError{Op: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &DeliveryError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		var perr providerError
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &perr) != nil || perr.Message == "" {
			perr.Message = string(data)
		}
		return &DeliveryError{Op: path, Err: fmt.Errorf("status %d: %s", resp.StatusCode, perr.Message)}
	}
	if resp.StatusCode != http.StatusOK {
		return &DeliveryError{Op: path, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DeliveryError{Op: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// phoneConfirmation completes a provider phone challenge.
type phoneConfirmation struct {
	provider    *HTTPProvider
	challengeID string
	phone       string
}

func (c *phoneConfirmation) Confirm(ctx context.Context, code string) (*Session, error) {
	body := map[string]string{"challenge_id": c.challengeID, "code": code}

	raw, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.baseURL+"/v1/phone/confirm", bytes.NewReader(raw))
	if err != nil {
		return nil, &DeliveryError{Op: "phone/confirm", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.provider.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.provider.apiKey)
	}

	resp, err := c.provider.httpClient.Do(req)
	if err != nil {
		return nil, &DeliveryError{Op: "phone/confirm", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var sr sessionResponse
		if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
			return nil, &DeliveryError{Op: "phone/confirm", Err: fmt.Errorf("decode response: %w", err)}
		}
		session := &Session{UID: sr.UID, Email: sr.Email, Phone: sr.Phone}
		c.provider.setSession(session)
		return session, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var perr providerError
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &perr) != nil || perr.Message == "" {
			perr.Message = "wrong or expired code"
		}
		return nil, &InvalidCodeError{Identifier: c.phone, Message: perr.Message}
	default:
		return nil, &DeliveryError{Op: "phone/confirm", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}
