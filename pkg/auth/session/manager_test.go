package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *mockStore) RevokedTokenKey(tokenID string) string {
	return fmt.Sprintf("revoked:%s", tokenID)
}

func newTestManager(store *mockStore, now time.Time) *Manager {
	return &Manager{
		store:  store,
		keyer:  store,
		maxTTL: 24 * time.Hour,
		now:    func() time.Time { return now },
	}
}

func TestRevokeMarksToken(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	manager := newTestManager(store, now)
	ctx := context.Background()

	revoked, err := manager.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("expected token not revoked, got %v err=%v", revoked, err)
	}

	if err := manager.Revoke(ctx, "jti-1", now.Add(30*time.Minute)); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	revoked, err = manager.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected token revoked, got %v err=%v", revoked, err)
	}
	if ttl := store.ttls["revoked:jti-1"]; ttl != 30*time.Minute {
		t.Fatalf("expected ttl bounded by token expiry, got %v", ttl)
	}
}

func TestRevokeCapsTTL(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	manager := newTestManager(store, now)

	if err := manager.Revoke(context.Background(), "jti-2", now.Add(72*time.Hour)); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if ttl := store.ttls["revoked:jti-2"]; ttl != 24*time.Hour {
		t.Fatalf("expected ttl capped at 24h, got %v", ttl)
	}
}

func TestRevokeSkipsExpiredTokens(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	manager := newTestManager(store, now)

	if err := manager.Revoke(context.Background(), "jti-3", now.Add(-time.Minute)); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, ok := store.data["revoked:jti-3"]; ok {
		t.Fatal("expired token should not be stored")
	}
}

func TestRevokeRequiresID(t *testing.T) {
	manager := newTestManager(newMockStore(), time.Now())
	if err := manager.Revoke(context.Background(), " ", time.Time{}); err == nil {
		t.Fatal("expected error for blank token id")
	}
}
