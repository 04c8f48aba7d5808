package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"auth-bootstrap/internal/util"
)

// Bot-check modes. An invisible challenge completes without user
// interaction; a visible one requires the user to solve it out of band.
const (
	BotCheckInvisible = "invisible"
	BotCheckVisible   = "visible"
)

// HTTPBotCheck requests a bot-check token from the identity provider.
type HTTPBotCheck struct {
	baseURL    string
	mode       string
	httpClient *http.Client
}

func NewHTTPBotCheck(baseURL, mode string, timeout time.Duration) *HTTPBotCheck {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &HTTPBotCheck{
		baseURL:    baseURL,
		mode:       mode,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type botCheckResponse struct {
	Token string `json:"token"`
}

func (b *HTTPBotCheck) Challenge(ctx context.Context) (string, error) {
	raw, _ := json.Marshal(map[string]string{"mode": b.mode})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/botcheck", bytes.NewReader(raw))
	if err != nil {
		return "", &DeliveryError{Op: "botcheck", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", &DeliveryError{Op: "botcheck", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &DeliveryError{Op: "botcheck", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var br botCheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return "", &DeliveryError{Op: "botcheck", Err: fmt.Errorf("decode response: %w", err)}
	}
	return br.Token, nil
}

// FallbackBotCheck tries an invisible challenge first and falls back to a
// visible one when it fails.
type FallbackBotCheck struct {
	Primary  BotCheck
	Fallback BotCheck
}

func (f *FallbackBotCheck) Challenge(ctx context.Context) (string, error) {
	token, err := f.Primary.Challenge(ctx)
	if err == nil {
		return token, nil
	}
	if f.Fallback == nil {
		return "", err
	}
	util.Warn("Invisible bot check failed, falling back to visible challenge", zap.Error(err))
	return f.Fallback.Challenge(ctx)
}
