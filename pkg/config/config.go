package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Auth         AuthConfig
	Stripe       StripeConfig
	Storage      StorageConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
	ProfileCache ProfileCacheConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.App.validateBaseURL(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"COURSEHUB_APP_ENV" required:"true"`
	Port         string   `envconfig:"COURSEHUB_APP_PORT" required:"true"`
	BaseURL      string   `envconfig:"COURSEHUB_APP_BASE_URL" required:"true"`
	LogLevel     string   `envconfig:"COURSEHUB_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"COURSEHUB_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"COURSEHUB_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"COURSEHUB_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// URL joins the configured base URL with the provided path.
func (a AppConfig) URL(path string) string {
	base := strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	if path == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

func (a AppConfig) validateBaseURL() error {
	parsed, err := url.Parse(strings.TrimSpace(a.BaseURL))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", EnvBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvBaseURL)
	}
	return nil
}

type ServiceConfig struct {
	Kind string `envconfig:"COURSEHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COURSEHUB_DB_DSN"`
	Driver string `envconfig:"COURSEHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COURSEHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"COURSEHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COURSEHUB_DB_USER"`
	LegacyPassword string `envconfig:"COURSEHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"COURSEHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"COURSEHUB_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"COURSEHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COURSEHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COURSEHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COURSEHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"COURSEHUB_DB_SLOW_QUERY" default:"300ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COURSEHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"COURSEHUB_REDIS_ADDR"`
	Password     string        `envconfig:"COURSEHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"COURSEHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COURSEHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COURSEHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COURSEHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COURSEHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COURSEHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// AuthConfig describes the access tokens minted by the hosted auth platform.
type AuthConfig struct {
	JWTSecret string `envconfig:"COURSEHUB_AUTH_JWT_SECRET" required:"true"`
	Issuer    string `envconfig:"COURSEHUB_AUTH_JWT_ISSUER" required:"true"`
	Audience  string `envconfig:"COURSEHUB_AUTH_JWT_AUDIENCE" default:"authenticated"`
	// Leeway absorbs clock skew between this API and the auth platform.
	Leeway time.Duration `envconfig:"COURSEHUB_AUTH_JWT_LEEWAY" default:"30s"`

	// RevocationTTL bounds how long a signed-out token id stays on the deny list.
	RevocationTTL time.Duration `envconfig:"COURSEHUB_AUTH_REVOCATION_TTL" default:"24h"`
}

type StripeConfig struct {
	APIKey         string `envconfig:"COURSEHUB_STRIPE_API_KEY" required:"true"`
	PublishableKey string `envconfig:"COURSEHUB_STRIPE_PUBLISHABLE_KEY"`
	WebhookSecret  string `envconfig:"COURSEHUB_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env            string `envconfig:"COURSEHUB_STRIPE_ENV" default:"test"`
	Currency       string `envconfig:"COURSEHUB_STRIPE_CURRENCY" default:"usd"`

	// ConfirmPaymentMethod is used when the client does not supply one. Test mode only.
	ConfirmPaymentMethod  string        `envconfig:"COURSEHUB_STRIPE_CONFIRM_PAYMENT_METHOD" default:"pm_card_visa"`
	ReturnPath            string        `envconfig:"COURSEHUB_STRIPE_RETURN_PATH" default:"/checkout/success"`
	WebhookIdempotencyTTL time.Duration `envconfig:"COURSEHUB_STRIPE_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
	MaxNetworkRetries     int64         `envconfig:"COURSEHUB_STRIPE_MAX_RETRIES" default:"2"`
	Timeout               time.Duration `envconfig:"COURSEHUB_STRIPE_TIMEOUT" default:"30s"`
	// APIURL overrides the API base URL, e.g. for stripe-mock.
	APIURL string `envconfig:"COURSEHUB_STRIPE_API_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type StorageConfig struct {
	Bucket            string        `envconfig:"COURSEHUB_STORAGE_BUCKET" required:"true"`
	Region            string        `envconfig:"COURSEHUB_STORAGE_REGION" required:"true"`
	Endpoint          string        `envconfig:"COURSEHUB_STORAGE_ENDPOINT"`
	AccessKeyID       string        `envconfig:"COURSEHUB_STORAGE_ACCESS_KEY_ID"`
	SecretAccessKey   string        `envconfig:"COURSEHUB_STORAGE_SECRET_ACCESS_KEY"`
	UploadURLExpiry   time.Duration `envconfig:"COURSEHUB_STORAGE_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"COURSEHUB_STORAGE_DOWNLOAD_URL_EXPIRY" default:"2h"`
	ImageDir          string        `envconfig:"COURSEHUB_STORAGE_IMAGE_DIR" default:"public/uploads"`
	ImagePublicPath   string        `envconfig:"COURSEHUB_STORAGE_IMAGE_PUBLIC_PATH" default:"/uploads"`
	MaxImageMB        int           `envconfig:"COURSEHUB_STORAGE_MAX_IMAGE_MB" default:"5"`
	MaxVideoMB        int           `envconfig:"COURSEHUB_STORAGE_MAX_VIDEO_MB" default:"2048"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"COURSEHUB_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"COURSEHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"COURSEHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PaymentsTopic string `envconfig:"COURSEHUB_PUBSUB_PAYMENTS_TOPIC" default:"coursehub-payment-events"`
	// CreateTopic provisions a missing topic at startup; meant for the emulator.
	CreateTopic    bool          `envconfig:"COURSEHUB_PUBSUB_CREATE_TOPIC" default:"false"`
	DelayThreshold time.Duration `envconfig:"COURSEHUB_PUBSUB_DELAY_THRESHOLD" default:"10ms"`
	CountThreshold int           `envconfig:"COURSEHUB_PUBSUB_COUNT_THRESHOLD" default:"100"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"COURSEHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"COURSEHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"COURSEHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Tick                time.Duration `envconfig:"COURSEHUB_CRON_TICK" default:"5m"`
	ExpiryEvery         time.Duration `envconfig:"COURSEHUB_CRON_EXPIRY_EVERY" default:"1h"`
	RetentionEvery      time.Duration `envconfig:"COURSEHUB_CRON_RETENTION_EVERY" default:"24h"`
	PendingOrderTTL     time.Duration `envconfig:"COURSEHUB_CRON_PENDING_ORDER_TTL" default:"72h"`
	WebhookLogRetention time.Duration `envconfig:"COURSEHUB_CRON_WEBHOOK_LOG_RETENTION" default:"2160h"`
	OutboxRetention     time.Duration `envconfig:"COURSEHUB_CRON_OUTBOX_RETENTION" default:"720h"`
	LockTTL             time.Duration `envconfig:"COURSEHUB_CRON_LOCK_TTL" default:"10m"`
}

// RateLimitConfig bounds card attempts on checkout and pay.
type RateLimitConfig struct {
	PaymentWindow    time.Duration `envconfig:"COURSEHUB_RATE_LIMIT_PAYMENT_WINDOW" default:"10m"`
	PaymentIPLimit   int           `envconfig:"COURSEHUB_RATE_LIMIT_PAYMENT_IP" default:"30"`
	PaymentUserLimit int           `envconfig:"COURSEHUB_RATE_LIMIT_PAYMENT_USER" default:"10"`
}

type ProfileCacheConfig struct {
	TTL time.Duration `envconfig:"COURSEHUB_PROFILE_CACHE_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"COURSEHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"COURSEHUB_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
