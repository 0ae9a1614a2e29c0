package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "ch:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		f.lastDeleted = keys[0]
	}
	return nil
}

func TestCheckAndMarkProcessed_FirstTime(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	already, err := manager.CheckAndMarkProcessed(context.Background(), "stripe-webhook", "evt_123")
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if already {
		t.Fatalf("expected first call to return false, got true")
	}
	if store.lastKey != "ch:idempotency:evt:processed:stripe-webhook:evt_123" {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
}

func TestCheckAndMarkProcessed_AlreadyProcessed(t *testing.T) {
	store := &fakeStore{setNXResult: false}
	manager, _ := NewManager(store, time.Hour)

	already, err := manager.CheckAndMarkProcessed(context.Background(), "stripe-webhook", "evt_123")
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if !already {
		t.Fatalf("expected already processed, got false")
	}
}

func TestCheckAndMarkProcessed_StoreError(t *testing.T) {
	store := &fakeStore{setNXError: errors.New("redis down")}
	manager, _ := NewManager(store, time.Hour)

	if _, err := manager.CheckAndMarkProcessed(context.Background(), "stripe-webhook", "evt_1"); err == nil {
		t.Fatalf("expected store error to propagate")
	}
}

func TestCheckAndMarkProcessed_Validation(t *testing.T) {
	manager, _ := NewManager(&fakeStore{}, time.Hour)
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "", "evt_1"); err == nil {
		t.Fatalf("expected missing consumer error")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "stripe-webhook", " "); err == nil {
		t.Fatalf("expected missing event id error")
	}
}

func TestDeleteRemovesMarker(t *testing.T) {
	store := &fakeStore{}
	manager, _ := NewManager(store, time.Hour)
	if err := manager.Delete(context.Background(), "stripe-webhook", "evt_9"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.lastDeleted != "ch:idempotency:evt:processed:stripe-webhook:evt_9" {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}
}

func TestNewManagerRejectsNegativeTTL(t *testing.T) {
	if _, err := NewManager(&fakeStore{}, -time.Second); err == nil {
		t.Fatalf("expected negative ttl to be rejected")
	}
	if _, err := NewManager(nil, time.Second); err == nil {
		t.Fatalf("expected nil store to be rejected")
	}
}
