package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auth-bootstrap/internal/models"
)

func TestRequestPINSuccess(t *testing.T) {
	var gotPath string
	var gotBody requestPinPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewVerifyClient(srv.URL, time.Second)
	if err := c.RequestPIN(context.Background(), models.KindEmail, "asha@example.com", "Asha"); err != nil {
		t.Fatalf("RequestPIN() error = %v", err)
	}
	if gotPath != "/api/auth/request-pin" {
		t.Errorf("path = %q, want /api/auth/request-pin", gotPath)
	}
	if gotBody.Email != "asha@example.com" || gotBody.Name != "Asha" {
		t.Errorf("payload = %+v, want email and name set", gotBody)
	}
}

func TestRequestPINServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewVerifyClient(srv.URL, time.Second)
	err := c.RequestPIN(context.Background(), models.KindEmail, "asha@example.com", "")
	if !IsDeliveryError(err) {
		t.Fatalf("RequestPIN() error = %v, want DeliveryError", err)
	}
}

func TestRequestPINUnreachable(t *testing.T) {
	c := NewVerifyClient("http://127.0.0.1:1", 200*time.Millisecond)
	err := c.RequestPIN(context.Background(), models.KindPhone, "+15550001111", "")
	if !IsDeliveryError(err) {
		t.Fatalf("RequestPIN() error = %v, want DeliveryError", err)
	}
}

func TestVerifyPINSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload verifyPinPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload.PIN != "123456" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(verifyPinResponse{CustomToken: "tok-1", Name: "Asha"})
	}))
	defer srv.Close()

	c := NewVerifyClient(srv.URL, time.Second)
	token, name, err := c.VerifyPIN(context.Background(), models.KindEmail, "asha@example.com", "123456")
	if err != nil {
		t.Fatalf("VerifyPIN() error = %v", err)
	}
	if token != "tok-1" || name != "Asha" {
		t.Errorf("VerifyPIN() = (%q, %q), want (tok-1, Asha)", token, name)
	}
}

func TestVerifyPINWrongCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(endpointError{Message: "wrong or expired PIN"})
	}))
	defer srv.Close()

	c := NewVerifyClient(srv.URL, time.Second)
	_, _, err := c.VerifyPIN(context.Background(), models.KindEmail, "asha@example.com", "000000")
	if !IsInvalidCode(err) {
		t.Fatalf("VerifyPIN() error = %v, want InvalidCodeError", err)
	}
}

func TestVerifyPINBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewVerifyClient(srv.URL, time.Second)
	_, _, err := c.VerifyPIN(context.Background(), models.KindEmail, "asha@example.com", "123456")
	if !IsDeliveryError(err) {
		t.Fatalf("VerifyPIN() error = %v, want DeliveryError", err)
	}
}
