package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"auth-bootstrap/internal/client"
	"auth-bootstrap/internal/models"
	"auth-bootstrap/internal/util"
)

const pendingPrefix = "pending_credential:"

// PendingCache stores outstanding one-time-code challenges in Redis with a
// TTL, so an agent restart during a challenge does not strand the user.
// It satisfies identity.PendingStore.
type PendingCache struct {
	client *client.RedisClient
}

func NewPendingCache(client *client.RedisClient) *PendingCache {
	return &PendingCache{client: client}
}

// Put records a challenge, replacing any prior one for the identifier.
func (c *PendingCache) Put(ctx context.Context, req *models.PendingCredentialRequest, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal pending request: %w", err)
	}

	key := pendingPrefix + req.Identifier
	if err := c.client.Set(ctx, key, payload, ttl); err != nil {
		util.Error("Failed to cache pending credential request",
			zap.String("identifier", req.Identifier),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return fmt.Errorf("failed to cache pending request: %w", err)
	}

	util.Debug("Pending credential request cached",
		zap.String("identifier", req.Identifier),
		zap.String("kind", req.Kind),
		zap.Duration("ttl", ttl))
	return nil
}

// Get returns the outstanding challenge for an identifier, if any.
func (c *PendingCache) Get(ctx context.Context, identifier string) (*models.PendingCredentialRequest, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := pendingPrefix + identifier
	raw, err := c.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, false, nil
		}
		util.Error("Failed to read pending credential request",
			zap.String("identifier", identifier),
			zap.Error(err))
		return nil, false, fmt.Errorf("failed to read pending request: %w", err)
	}

	var req models.PendingCredentialRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal pending request: %w", err)
	}
	return &req, true, nil
}

// Delete consumes the challenge once it has been verified or superseded.
func (c *PendingCache) Delete(ctx context.Context, identifier string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := pendingPrefix + identifier
	if err := c.client.Del(ctx, key); err != nil {
		util.Error("Failed to delete pending credential request",
			zap.String("identifier", identifier),
			zap.Error(err))
		return fmt.Errorf("failed to delete pending request: %w", err)
	}
	return nil
}
