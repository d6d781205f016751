package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Cart         CartConfig
	Inventory    InventoryConfig
	Sweeper      SweeperConfig
	Idempotency  IdempotencyConfig
	PayPal       PayPalConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig covers token verification only. Tokens are issued by the
// identity service; this backend just validates signature and issuer.
type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
}

type CartConfig struct {
	// TTL is how long a cart stays valid after its last write.
	TTL             time.Duration   `envconfig:"STOREFRONT_CART_TTL" default:"168h"`
	MaxItemQuantity int             `envconfig:"STOREFRONT_CART_MAX_ITEM_QUANTITY" default:"100"`
	ShippingFlat    decimal.Decimal `envconfig:"STOREFRONT_CART_SHIPPING_FLAT" default:"5.00"`
}

type InventoryConfig struct {
	// ReservationTTL is the hold window between order creation and
	// payment confirmation.
	ReservationTTL time.Duration `envconfig:"STOREFRONT_RESERVATION_TTL" default:"30m"`
}

type SweeperConfig struct {
	// Interval bounds how stale expired holds and carts can get; the
	// worst case equals one full interval.
	Interval          time.Duration `envconfig:"STOREFRONT_SWEEP_INTERVAL" default:"5m"`
	LockTTL           time.Duration `envconfig:"STOREFRONT_SWEEP_LOCK_TTL" default:"4m"`
	BatchSize         int           `envconfig:"STOREFRONT_SWEEP_BATCH_SIZE" default:"100"`
	CheckoutStuckTTL  time.Duration `envconfig:"STOREFRONT_SWEEP_CHECKOUT_STUCK_TTL" default:"1h"`
	MetricsListenAddr string        `envconfig:"STOREFRONT_SWEEP_METRICS_ADDR" default:":9102"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"STOREFRONT_IDEMPOTENCY_TTL" default:"24h"`
}

type PayPalConfig struct {
	ClientID  string `envconfig:"STOREFRONT_PAYPAL_CLIENT_ID"`
	Secret    string `envconfig:"STOREFRONT_PAYPAL_SECRET"`
	Env       string `envconfig:"STOREFRONT_PAYPAL_ENV" default:"sandbox"`
	BrandName string `envconfig:"STOREFRONT_PAYPAL_BRAND_NAME" default:"Mercura"`
	ReturnURL string `envconfig:"STOREFRONT_PAYPAL_RETURN_URL"`
	CancelURL string `envconfig:"STOREFRONT_PAYPAL_CANCEL_URL"`
	WebhookID string `envconfig:"STOREFRONT_PAYPAL_WEBHOOK_ID"`
}

// Live reports whether the live PayPal endpoint should be used.
func (p PayPalConfig) Live() bool {
	return strings.EqualFold(strings.TrimSpace(p.Env), "live")
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic         string `envconfig:"STOREFRONT_PUBSUB_DOMAIN_TOPIC" default:"storefront-domain-events"`
	DomainSubscription  string `envconfig:"STOREFRONT_PUBSUB_DOMAIN_SUBSCRIPTION"`
	MediaSubscription   string `envconfig:"STOREFRONT_PUBSUB_MEDIA_SUBSCRIPTION"`
	OrdersSubscription  string `envconfig:"STOREFRONT_PUBSUB_ORDERS_SUBSCRIPTION"`
	BillingSubscription string `envconfig:"STOREFRONT_PUBSUB_BILLING_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
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
