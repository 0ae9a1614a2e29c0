package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/coursehub/coursehub-backend/pkg/config"
	"github.com/google/uuid"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret: "secret",
		Issuer:    "https://auth.example.com/auth/v1",
		Audience:  "authenticated",
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testAuthConfig()
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, time.Hour, AccessTokenPayload{
		UserID:   userID,
		Email:    "learner@example.com",
		FullName: "Ada Learner",
		JTI:      "jti-1",
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	got, err := claims.UserID()
	if err != nil || got != userID {
		t.Fatalf("expected user id %s, got %s (err=%v)", userID, got, err)
	}
	if claims.Email != "learner@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.UserMetadata.FullName != "Ada Learner" {
		t.Fatalf("unexpected full name %q", claims.UserMetadata.FullName)
	}
	if claims.TokenID() != "jti-1" {
		t.Fatalf("unexpected token id %q", claims.TokenID())
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testAuthConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), time.Hour, AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestParseAccessTokenRejectsWrongAudience(t *testing.T) {
	cfg := testAuthConfig()
	token, err := MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	other := cfg
	other.Audience = "service_role"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected audience mismatch to fail")
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	cfg := testAuthConfig()
	token, err := MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	other := cfg
	other.JWTSecret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	cfg := testAuthConfig()
	if _, err := MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenPayload{}); err == nil {
		t.Fatal("expected missing user id to fail")
	}
	cfg.JWTSecret = ""
	if _, err := MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New()}); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}

func TestParseAccessTokenLeewayCoversClockSkew(t *testing.T) {
	cfg := testAuthConfig()
	// Issued by a platform clock running ten seconds ahead of ours.
	token, err := MintAccessToken(cfg, time.Now().Add(10*time.Second), time.Hour, AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected future iat to be rejected without leeway")
	}

	cfg.Leeway = 30 * time.Second
	if _, err := ParseAccessToken(cfg, token); err != nil {
		t.Fatalf("expected leeway to accept skewed token, got %v", err)
	}
}
