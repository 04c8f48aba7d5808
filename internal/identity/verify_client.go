package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"auth-bootstrap/internal/models"
)

const defaultVerifyTimeout = 15 * time.Second

// VerifyClient talks to the remote one-time-code verification endpoint.
type VerifyClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewVerifyClient returns a client for the given verification endpoint.
func NewVerifyClient(baseURL string, timeout time.Duration) *VerifyClient {
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	return &VerifyClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type requestPinPayload struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name"`
}

type verifyPinPayload struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	PIN   string `json:"pin"`
}

type verifyPinResponse struct {
	CustomToken string `json:"customToken"`
	Name        string `json:"name"`
}

type endpointError struct {
	Message string `json:"message"`
}

// RequestPIN dispatches a one-time code to the identifier. Non-2xx responses
// and network failures surface as DeliveryError; local state is untouched.
func (c *VerifyClient) RequestPIN(ctx context.Context, kind, identifier, name string) error {
	payload := requestPinPayload{Name: name}
	if kind == models.KindPhone {
		payload.Phone = identifier
	} else {
		payload.Email = identifier
	}

	resp, err := c.post(ctx, "/api/auth/request-pin", payload)
	if err != nil {
		return &DeliveryError{Op: "request-pin", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &DeliveryError{Op: "request-pin", Err: fmt.Errorf("status %d: %s", resp.StatusCode, readMessage(resp.Body))}
	}
	return nil
}

// VerifyPIN exchanges a one-time code for a signed custom token. A 4xx
// answer means the code was wrong or expired; anything else unreachable is
// a delivery failure.
func (c *VerifyClient) VerifyPIN(ctx context.Context, kind, identifier, pin string) (customToken, name string, err error) {
	payload := verifyPinPayload{PIN: pin}
	if kind == models.KindPhone {
		payload.Phone = identifier
	} else {
		payload.Email = identifier
	}

	resp, err := c.post(ctx, "/api/auth/verify-pin", payload)
	if err != nil {
		return "", "", &DeliveryError{Op: "verify-pin", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var vr verifyPinResponse
		if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
			return "", "", &DeliveryError{Op: "verify-pin", Err: fmt.Errorf("decode response: %w", err)}
		}
		return vr.CustomToken, vr.Name, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", "", &InvalidCodeError{Identifier: identifier, Message: readMessage(resp.Body)}
	default:
		return "", "", &DeliveryError{Op: "verify-pin", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
}

func (c *VerifyClient) post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func readMessage(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var ee endpointError
	if json.Unmarshal(data, &ee) == nil && ee.Message != "" {
		return ee.Message
	}
	if len(data) > 0 {
		return string(data)
	}
	return "request rejected"
}
