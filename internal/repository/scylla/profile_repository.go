package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"auth-bootstrap/internal/models"
	"auth-bootstrap/internal/util"
)

// ErrProfileNotFound marks a read that found no record, as distinct from a
// read that failed outright.
var ErrProfileNotFound = errors.New("profile not found")

// ErrStoreUnavailable is returned by UnavailableProfileStore when the agent
// boots without a reachable cluster.
var ErrStoreUnavailable = errors.New("profile store unavailable")

type ProfileStore struct {
	client *ScyllaClient
}

func NewProfileStore(client *ScyllaClient) *ProfileStore {
	return &ProfileStore{client: client}
}

// Upsert merges caller-supplied fields into the profile. The create is a
// lightweight transaction so status/registered_at are only stamped once;
// field updates only touch the columns the caller actually supplied.
func (r *ProfileStore) Upsert(ctx context.Context, userID string, data models.ProfileData) error {
	applied, err := r.createIfAbsent(ctx, userID)
	if err != nil {
		return err
	}

	batch := r.client.Session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	if data.Name != "" {
		batch.Query(r.client.Prepared.UpdateName.Statement(), data.Name, userID)
	}
	if data.Email != nil {
		batch.Query(r.client.Prepared.UpdateEmail.Statement(), *data.Email, userID)
	}
	if data.Phone != nil {
		batch.Query(r.client.Prepared.UpdatePhone.Statement(), *data.Phone, userID)
	}
	batch.Query(r.client.Prepared.TouchLastLogin.Statement(), userID)

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		util.Error("Failed to upsert profile",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	util.Info("Profile upserted",
		zap.String("user_id", userID),
		zap.Bool("created", applied))
	return nil
}

func (r *ProfileStore) createIfAbsent(ctx context.Context, userID string) (bool, error) {
	query := r.client.Prepared.CreateProfile.Bind(userID, models.StatusActive).WithContext(ctx)

	applied, err := query.MapScanCAS(make(map[string]interface{}))
	if err != nil {
		util.Error("Failed to create profile record",
			zap.String("user_id", userID),
			zap.Error(err))
		return false, fmt.Errorf("failed to create profile record: %w", err)
	}
	return applied, nil
}

// FetchStatus reads the profile keyed by userID.
func (r *ProfileStore) FetchStatus(ctx context.Context, userID string) (*models.Profile, error) {
	profile := &models.Profile{}
	var email, phone string
	var lastLogin time.Time

	query := r.client.Prepared.GetProfile.Bind(userID).WithContext(ctx)

	err := query.Scan(
		&profile.UserID, &profile.Name, &email, &phone,
		&profile.Status, &profile.RegisteredAt, &lastLogin)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrProfileNotFound
		}
		util.Error("Failed to fetch profile status",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	if email != "" {
		profile.Email = &email
	}
	if phone != "" {
		profile.Phone = &phone
	}
	if !lastLogin.IsZero() {
		profile.LastLogin = &lastLogin
	}
	return profile, nil
}

// TouchLastLogin stamps last_login with the coordinator clock.
func (r *ProfileStore) TouchLastLogin(ctx context.Context, userID string) error {
	query := r.client.Prepared.TouchLastLogin.Bind(userID).WithContext(ctx)
	if err := query.Exec(); err != nil {
		return fmt.Errorf("failed to touch last login: %w", err)
	}
	return nil
}

func (r *ProfileStore) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}
