package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"auth-bootstrap/internal/audit"
	"auth-bootstrap/internal/credstore"
	"auth-bootstrap/internal/models"
	"auth-bootstrap/internal/repository/scylla"
	"auth-bootstrap/internal/util"
)

const pendingTTL = 10 * time.Minute

// Broker requests one-time codes for an identifier and exchanges verified
// codes for provider sessions. It owns the pending-challenge bookkeeping;
// it never decides what the UI shows.
type Broker struct {
	provider Provider
	verify   *VerifyClient
	pending  PendingStore
	profiles scylla.ProfileRepository
	creds    *credstore.Store
	botCheck BotCheck
	audit    *audit.Emitter
	logger   *zap.Logger

	mu            sync.Mutex
	confirmations map[string]Confirmation
}

func NewBroker(
	provider Provider,
	verify *VerifyClient,
	pending PendingStore,
	profiles scylla.ProfileRepository,
	creds *credstore.Store,
	botCheck BotCheck,
	emitter *audit.Emitter,
	logger *zap.Logger,
) *Broker {
	b := &Broker{
		provider:      provider,
		verify:        verify,
		pending:       pending,
		profiles:      profiles,
		creds:         creds,
		botCheck:      botCheck,
		audit:         emitter,
		logger:        logger,
		confirmations: make(map[string]Confirmation),
	}

	// Every provider sign-in notification best-effort stamps last_login,
	// mirroring what the web revisions did from the auth-state listener.
	provider.OnSessionChange(func(session *Session) {
		if session == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.profiles.TouchLastLogin(ctx, session.UID); err != nil {
			util.Warn("Failed to touch last login",
				zap.String("user_id", session.UID),
				zap.Error(err))
		}
	})

	return b
}

// RequestCode dispatches a one-time code to the identifier and records the
// pending challenge, replacing any prior challenge for the same identifier.
// Session state is never mutated here.
func (b *Broker) RequestCode(ctx context.Context, kind, identifier, name string) error {
	identifier = strings.TrimSpace(identifier)
	name = util.SanitizeInput(name)

	switch kind {
	case models.KindEmail:
		if err := b.verify.RequestPIN(ctx, kind, identifier, name); err != nil {
			util.Error("PIN request failed",
				zap.String("email", identifier),
				zap.Error(err))
			return err
		}
		if err := b.creds.SetTransient(credstore.KeyEmailForSignIn, identifier); err != nil {
			util.Warn("Failed to persist in-flight email", zap.Error(err))
		}

	case models.KindPhone:
		identifier = util.NormalizePhone(identifier)
		token, err := b.botCheck.Challenge(ctx)
		if err != nil {
			util.Error("Bot check failed", zap.String("phone", identifier), zap.Error(err))
			return err
		}
		confirmation, err := b.provider.SignInWithPhoneNumber(ctx, identifier, token)
		if err != nil {
			util.Error("Phone challenge failed", zap.String("phone", identifier), zap.Error(err))
			return err
		}
		b.mu.Lock()
		b.confirmations[identifier] = confirmation
		b.mu.Unlock()

		if raw, err := json.Marshal(map[string]string{"name": name, "phone": identifier}); err == nil {
			if err := b.creds.SetTransient(credstore.KeyPendingPhoneUser, string(raw)); err != nil {
				util.Warn("Failed to persist in-flight phone user", zap.Error(err))
			}
		}

	default:
		return fmt.Errorf("unsupported identifier kind: %s", kind)
	}

	req := &models.PendingCredentialRequest{
		Identifier:  identifier,
		Kind:        kind,
		Name:        name,
		Awaiting:    true,
		RequestedAt: time.Now().UTC(),
	}
	if err := b.pending.Put(ctx, req, pendingTTL); err != nil {
		util.Warn("Failed to record pending challenge", zap.Error(err))
	}

	b.audit.Emit(ctx, models.EventCodeRequested, "", identifier, kind)
	util.Info("One-time code requested",
		zap.String("kind", kind),
		zap.String("identifier", identifier))
	return nil
}

// VerifyCode exchanges a one-time code for a session. On success the profile
// is upserted (best effort) and the pending challenge is consumed before the
// session is returned.
func (b *Broker) VerifyCode(ctx context.Context, identifier, code string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)

	pendingReq, found, err := b.pending.Get(ctx, identifier)
	if err != nil {
		util.Warn("Pending challenge lookup failed", zap.Error(err))
	}

	kind := models.KindEmail
	name := ""
	if found {
		kind = pendingReq.Kind
		name = pendingReq.Name
	} else if !strings.Contains(identifier, "@") {
		kind = models.KindPhone
	}

	var session *Session
	switch kind {
	case models.KindPhone:
		session, err = b.confirmPhone(ctx, util.NormalizePhone(identifier), code)
	default:
		session, err = b.exchangeEmailPIN(ctx, identifier, code, &name)
	}
	if err != nil {
		b.audit.Emit(ctx, models.EventSignInFailed, "", identifier, err.Error())
		return nil, err
	}

	// Profile write failure must not block the broader flow.
	data := models.ProfileData{Name: name}
	if kind == models.KindEmail {
		email := identifier
		data.Email = &email
	} else {
		phone := session.Phone
		if phone == "" {
			phone = util.NormalizePhone(identifier)
		}
		data.Phone = &phone
	}
	if err := b.profiles.Upsert(ctx, session.UID, data); err != nil {
		util.Error("Profile upsert failed after sign-in",
			zap.String("user_id", session.UID),
			zap.Error(err))
	}

	b.consumePending(ctx, identifier, kind)
	b.audit.Emit(ctx, models.EventSignedIn, session.UID, identifier, kind)

	util.Info("Code verified, session established",
		zap.String("user_id", session.UID),
		zap.String("kind", kind))
	return session, nil
}

func (b *Broker) exchangeEmailPIN(ctx context.Context, email, pin string, name *string) (*Session, error) {
	token, serverName, err := b.verify.VerifyPIN(ctx, models.KindEmail, email, pin)
	if err != nil {
		return nil, err
	}
	if serverName != "" {
		*name = serverName
	}
	session, err := b.provider.SignInWithCustomToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (b *Broker) confirmPhone(ctx context.Context, phone, code string) (*Session, error) {
	b.mu.Lock()
	confirmation, ok := b.confirmations[phone]
	b.mu.Unlock()
	if !ok {
		return nil, &InvalidCodeError{Identifier: phone, Message: "no code request found, request a new code"}
	}

	session, err := confirmation.Confirm(ctx, code)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	delete(b.confirmations, phone)
	b.mu.Unlock()
	return session, nil
}

func (b *Broker) consumePending(ctx context.Context, identifier, kind string) {
	if err := b.pending.Delete(ctx, identifier); err != nil {
		util.Warn("Failed to consume pending challenge", zap.Error(err))
	}
	if kind == models.KindEmail {
		_ = b.creds.DeleteTransient(credstore.KeyEmailForSignIn)
	} else {
		_ = b.creds.DeleteTransient(credstore.KeyPendingPhoneUser)
	}
}

// CurrentSession returns the provider's live session, or nil.
func (b *Broker) CurrentSession() *Session {
	return b.provider.CurrentSession()
}

// IsAuthenticated reports whether a session is live.
func (b *Broker) IsAuthenticated() bool {
	return b.provider.CurrentSession() != nil
}

// OnSessionChange registers a listener for provider session transitions.
func (b *Broker) OnSessionChange(listener Listener) {
	b.provider.OnSessionChange(listener)
}

// SignOut clears the provider session. Callers are responsible for clearing
// the device credential store as well.
func (b *Broker) SignOut(ctx context.Context) error {
	session := b.provider.CurrentSession()
	if err := b.provider.SignOut(ctx); err != nil {
		return err
	}
	uid := ""
	if session != nil {
		uid = session.UID
	}
	b.audit.Emit(ctx, models.EventSignedOut, uid, "", "")
	return nil
}
