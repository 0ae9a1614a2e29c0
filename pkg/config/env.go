package config

const (
	EnvPrefix = "COURSEHUB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv  = "COURSEHUB_APP_ENV"
	EnvPort    = "COURSEHUB_APP_PORT"
	EnvBaseURL = "COURSEHUB_APP_BASE_URL"

	EnvDBDSN  = "COURSEHUB_DB_DSN"
	EnvDBHost = "COURSEHUB_DB_HOST"
	EnvDBUser = "COURSEHUB_DB_USER"
	EnvDBName = "COURSEHUB_DB_NAME"

	EnvRedisURL = "COURSEHUB_REDIS_URL"

	EnvAuthJWTSecret = "COURSEHUB_AUTH_JWT_SECRET"
	EnvAuthJWTIssuer = "COURSEHUB_AUTH_JWT_ISSUER"

	EnvStripeAPIKey        = "COURSEHUB_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "COURSEHUB_STRIPE_WEBHOOK_SECRET"
	EnvStripeEnv           = "COURSEHUB_STRIPE_ENV"

	EnvStorageBucket = "COURSEHUB_STORAGE_BUCKET"
	EnvStorageRegion = "COURSEHUB_STORAGE_REGION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
