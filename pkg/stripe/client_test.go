package stripe

import (
	"context"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/coursehub/coursehub-backend/pkg/config"
	"github.com/coursehub/coursehub-backend/pkg/logger"
)

func TestNewClientValidatesKeys(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{APIKey: "sk_live_abc", WebhookSecret: "whsec", Env: "test"}, nil)
	if err == nil {
		t.Fatal("expected live key to be rejected in test env")
	}

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_abc", Env: "test"}, nil)
	if err == nil {
		t.Fatal("expected missing webhook secret to fail")
	}

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_abc", WebhookSecret: "whsec", Env: "staging"}, nil)
	if err == nil {
		t.Fatal("expected unknown env to fail")
	}
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{
		APIKey:        "sk_test_abc",
		WebhookSecret: "whsec_123",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !client.IsTestMode() {
		t.Fatal("expected test mode by default")
	}
	if client.Currency() != "usd" {
		t.Fatalf("expected usd default currency, got %q", client.Currency())
	}
	if client.SigningSecret() != "whsec_123" {
		t.Fatalf("unexpected signing secret %q", client.SigningSecret())
	}
}

func TestChargeID(t *testing.T) {
	if got := ChargeID(nil); got != "" {
		t.Fatalf("expected empty charge id, got %q", got)
	}
	intent := &stripe.PaymentIntent{LatestCharge: &stripe.Charge{ID: "ch_123"}}
	if got := ChargeID(intent); got != "ch_123" {
		t.Fatalf("expected ch_123, got %q", got)
	}
}

func TestNewClientAcceptsRestrictedKeysAndCustomCurrency(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{
		APIKey:            "rk_live_abc",
		WebhookSecret:     "whsec_1",
		Env:               " LIVE ",
		Currency:          "EUR",
		MaxNetworkRetries: -3,
	}, logger.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.IsTestMode() || client.Environment() != "live" {
		t.Fatalf("expected live mode, got %q", client.Environment())
	}
	if client.Currency() != "eur" {
		t.Fatalf("expected lowercased currency, got %q", client.Currency())
	}
	if client.API() == nil {
		t.Fatal("expected api client")
	}
}

func TestLeveledLoggerToleratesMissingLogger(t *testing.T) {
	l := leveledLogger{}
	l.Debugf("request %s", "x")
	l.Infof("request %s", "x")
	l.Warnf("retrying %d", 1)
	l.Errorf("failed %d", 2)
}

func TestNilClientAccessors(t *testing.T) {
	var c *Client
	if c.API() != nil || c.Environment() != "" || c.Currency() != "" || c.SigningSecret() != "" || c.IsTestMode() {
		t.Fatal("nil client should report zero values")
	}
}
