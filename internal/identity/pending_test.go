package identity

import (
	"context"
	"testing"
	"time"

	"auth-bootstrap/internal/models"
)

func TestMemoryPendingStorePutGet(t *testing.T) {
	store := NewMemoryPendingStore()
	ctx := context.Background()

	req := &models.PendingCredentialRequest{
		Identifier: "asha@example.com",
		Kind:       models.KindEmail,
		Name:       "Asha",
		Awaiting:   true,
	}
	if err := store.Put(ctx, req, time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, found, err := store.Get(ctx, "asha@example.com")
	if err != nil || !found {
		t.Fatalf("Get() = (found=%v, err=%v), want found", found, err)
	}
	if got.Kind != models.KindEmail || got.Name != "Asha" {
		t.Errorf("Get() = %+v, want kind/name preserved", got)
	}
}

func TestMemoryPendingStoreReplaces(t *testing.T) {
	store := NewMemoryPendingStore()
	ctx := context.Background()

	first := &models.PendingCredentialRequest{Identifier: "asha@example.com", Kind: models.KindEmail, Name: "Asha"}
	second := &models.PendingCredentialRequest{Identifier: "asha@example.com", Kind: models.KindEmail, Name: "Asha K"}
	if err := store.Put(ctx, first, time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, second, time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, found, _ := store.Get(ctx, "asha@example.com")
	if !found || got.Name != "Asha K" {
		t.Errorf("Get() after replace = %+v, want the later record", got)
	}
}

func TestMemoryPendingStoreExpiry(t *testing.T) {
	store := NewMemoryPendingStore()
	now := time.Now().UTC()
	store.nowF = func() time.Time { return now }
	ctx := context.Background()

	req := &models.PendingCredentialRequest{Identifier: "+15550001111", Kind: models.KindPhone}
	if err := store.Put(ctx, req, 10*time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	now = now.Add(11 * time.Minute)
	if _, found, _ := store.Get(ctx, "+15550001111"); found {
		t.Error("Get() found an expired record")
	}
}

func TestMemoryPendingStoreDelete(t *testing.T) {
	store := NewMemoryPendingStore()
	ctx := context.Background()

	req := &models.PendingCredentialRequest{Identifier: "asha@example.com", Kind: models.KindEmail}
	if err := store.Put(ctx, req, time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Delete(ctx, "asha@example.com"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, _ := store.Get(ctx, "asha@example.com"); found {
		t.Error("Get() found a deleted record")
	}
}
