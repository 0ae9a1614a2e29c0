package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/coursehub/coursehub-backend/pkg/config"
	"github.com/coursehub/coursehub-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultTimeout = 30 * time.Second
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// keyPrefixes lists the secret and restricted key prefixes accepted per environment.
var keyPrefixes = map[string][]string{
	testEnv: {"sk_test_", "rk_test_"},
	liveEnv: {"sk_live_", "rk_live_"},
}

// Client holds the Stripe API client and the account settings checkout depends on.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
	currency      string
}

// NewClient validates cfg and builds an API client whose retries and
// request logging are routed through logg.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := strings.TrimSpace(strings.ToLower(cfg.Environment()))
	if _, ok := keyPrefixes[env]; !ok {
		return nil, errInvalidStripeEnv
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if !hasAnyPrefix(apiKey, keyPrefixes[env]) {
		return nil, fmt.Errorf("stripe environment %q requires a %s key (%s)", env, env, strings.Join(keyPrefixes[env], ", "))
	}

	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	client := &Client{
		api:           stripe.NewClient(apiKey, stripe.WithBackends(newBackends(cfg, logg))),
		environment:   env,
		signingSecret: signingSecret,
		currency:      currency,
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env":      env,
			"stripe_currency": currency,
		}), "stripe client initialized")
	}
	return client, nil
}

func newBackends(cfg config.StripeConfig, logg *logger.Logger) *stripe.Backends {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxNetworkRetries
	if retries < 0 {
		retries = 0
	}
	backend := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(retries),
		LeveledLogger:     leveledLogger{logg: logg},
	}
	if url := strings.TrimSpace(cfg.APIURL); url != "" {
		backend.URL = stripe.String(strings.TrimSuffix(url, "/"))
	}
	return stripe.NewBackendsWithConfig(backend)
}

func hasAnyPrefix(value string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// IsTestMode reports whether the account runs against test keys.
func (c *Client) IsTestMode() bool {
	return c != nil && c.environment == testEnv
}

// Currency returns the lowercase ISO currency charged for orders.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// leveledLogger adapts the service logger to stripe's LeveledLoggerInterface.
// Stripe's info-level chatter is demoted to debug.
type leveledLogger struct {
	logg *logger.Logger
}

func (l leveledLogger) Debugf(format string, v ...any) {
	if l.logg != nil {
		l.logg.Debug(l.ctx(), fmt.Sprintf(format, v...))
	}
}

func (l leveledLogger) Infof(format string, v ...any) {
	l.Debugf(format, v...)
}

func (l leveledLogger) Warnf(format string, v ...any) {
	if l.logg != nil {
		l.logg.Warn(l.ctx(), fmt.Sprintf(format, v...))
	}
}

func (l leveledLogger) Errorf(format string, v ...any) {
	if l.logg != nil {
		l.logg.Error(l.ctx(), "stripe client error", fmt.Errorf(format, v...))
	}
}

func (l leveledLogger) ctx() context.Context {
	return l.logg.WithField(context.Background(), "component", "stripe")
}
