package scylla

import (
	"context"

	"auth-bootstrap/internal/models"
)

// ProfileRepository is the contract the bootstrap layer programs against.
// The concrete implementation talks to the remote document store; tests use
// in-memory fakes.
type ProfileRepository interface {
	// Upsert merges the supplied fields into the profile keyed by userID.
	// Unspecified (nil) fields are left untouched. Status defaults to active
	// and the registration timestamp is stamped only when the record is
	// created.
	Upsert(ctx context.Context, userID string, data models.ProfileData) error

	// FetchStatus reads the profile. It returns ErrProfileNotFound when the
	// record does not exist, and a wrapped read error otherwise. Callers
	// that need the conflated soft-fail behaviour collapse the two.
	FetchStatus(ctx context.Context, userID string) (*models.Profile, error)

	// TouchLastLogin stamps last_login with a server-assigned timestamp.
	// Best effort: failures are logged by callers, never fatal.
	TouchLastLogin(ctx context.Context, userID string) error

	HealthCheck(ctx context.Context) error
}

// UnavailableProfileStore stands in when the cluster could not be reached at
// startup. Reads report an error so the bootstrap layer applies its usual
// soft-fail handling; writes are dropped.
type UnavailableProfileStore struct{}

func (UnavailableProfileStore) Upsert(ctx context.Context, userID string, data models.ProfileData) error {
	return ErrStoreUnavailable
}

func (UnavailableProfileStore) FetchStatus(ctx context.Context, userID string) (*models.Profile, error) {
	return nil, ErrStoreUnavailable
}

func (UnavailableProfileStore) TouchLastLogin(ctx context.Context, userID string) error {
	return ErrStoreUnavailable
}

func (UnavailableProfileStore) HealthCheck(ctx context.Context) error {
	return ErrStoreUnavailable
}
