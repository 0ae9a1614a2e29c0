package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coursehub/coursehub-backend/pkg/config"
	redisclient "github.com/coursehub/coursehub-backend/pkg/redis"
)

type revocationStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

type revocationKeyer interface {
	RevokedTokenKey(tokenID string) string
}

// Manager keeps a deny list of signed-out access tokens. Tokens are issued by
// the auth platform, so sign-out can only be enforced locally until expiry.
type Manager struct {
	store  revocationStore
	keyer  revocationKeyer
	maxTTL time.Duration
	now    func() time.Time
}

// RevocationChecker exposes the read-only surface needed by middleware.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NewManager constructs a revocation manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.AuthConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.RevocationTTL <= 0 {
		return nil, fmt.Errorf("revocation ttl must be positive")
	}
	return &Manager{
		store:  client,
		keyer:  client,
		maxTTL: cfg.RevocationTTL,
		now:    time.Now,
	}, nil
}

// Revoke denies tokenID until the token would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if strings.TrimSpace(tokenID) == "" {
		return fmt.Errorf("token id is required")
	}
	ttl := m.maxTTL
	if !expiresAt.IsZero() {
		remaining := expiresAt.Sub(m.now())
		if remaining <= 0 {
			return nil
		}
		if remaining < ttl {
			ttl = remaining
		}
	}
	return m.store.Set(ctx, m.keyer.RevokedTokenKey(tokenID), "1", ttl)
}

// IsRevoked reports whether tokenID was signed out.
func (m *Manager) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if strings.TrimSpace(tokenID) == "" {
		return false, nil
	}
	return m.store.Exists(ctx, m.keyer.RevokedTokenKey(tokenID))
}
