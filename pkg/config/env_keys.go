package config

// EnvPrefix is passed to envconfig; individual fields carry explicit
// STOREFRONT_* tags so the prefix only matters for untagged additions.
const EnvPrefix = "storefront"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names shared by Load, tests, and tooling.
const (
	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN    = "STOREFRONT_DB_DSN"
	EnvDBDriver = "STOREFRONT_DB_DRIVER"
	EnvDBHost   = "STOREFRONT_DB_HOST"
	EnvDBPort   = "STOREFRONT_DB_PORT"
	EnvDBUser   = "STOREFRONT_DB_USER"
	EnvDBName   = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvCartTTL        = "STOREFRONT_CART_TTL"
	EnvReservationTTL = "STOREFRONT_RESERVATION_TTL"
	EnvSweepInterval  = "STOREFRONT_SWEEP_INTERVAL"

	EnvPayPalClientID = "STOREFRONT_PAYPAL_CLIENT_ID"
	EnvPayPalSecret   = "STOREFRONT_PAYPAL_SECRET"
	EnvPayPalEnv      = "STOREFRONT_PAYPAL_ENV"

	EnvGCPProjectID     = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubDomainTopic = "STOREFRONT_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub   = "STOREFRONT_PUBSUB_DOMAIN_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
