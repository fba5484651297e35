package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"

	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Cart          CartConfig
	Idempotency   IdempotencyConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Seed          SeedConfig
}

// Load reads MICROCOMMERCE_* variables and then checks the settings that depend on each other.
// Every problem found is reported, not just the first.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finalize() error {
	if c.FeatureFlags.UseSQLite {
		c.DB.Driver = "sqlite"
	}
	return multierr.Combine(
		c.DB.resolveDSN(c.FeatureFlags.UseSQLite),
		c.Cart.validate(),
		c.JWT.validate(),
		c.Outbox.validate(),
	)
}

type AppConfig struct {
	Env          string   `envconfig:"MICROCOMMERCE_APP_ENV" required:"true"`
	Port         string   `envconfig:"MICROCOMMERCE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"MICROCOMMERCE_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"MICROCOMMERCE_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"MICROCOMMERCE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"MICROCOMMERCE_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MICROCOMMERCE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MICROCOMMERCE_DB_DSN"`
	Driver string `envconfig:"MICROCOMMERCE_DB_DRIVER" default:"postgres"`

	// Discrete parts, used only when DSN is empty.
	Host     string `envconfig:"MICROCOMMERCE_DB_HOST"`
	Port     int    `envconfig:"MICROCOMMERCE_DB_PORT" default:"5432"`
	User     string `envconfig:"MICROCOMMERCE_DB_USER"`
	Password string `envconfig:"MICROCOMMERCE_DB_PASSWORD"`
	Name     string `envconfig:"MICROCOMMERCE_DB_NAME"`
	SSLMode  string `envconfig:"MICROCOMMERCE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MICROCOMMERCE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MICROCOMMERCE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MICROCOMMERCE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MICROCOMMERCE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"MICROCOMMERCE_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MICROCOMMERCE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MICROCOMMERCE_REDIS_ADDR"`
	Password     string        `envconfig:"MICROCOMMERCE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MICROCOMMERCE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MICROCOMMERCE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MICROCOMMERCE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MICROCOMMERCE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MICROCOMMERCE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MICROCOMMERCE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MICROCOMMERCE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MICROCOMMERCE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"MICROCOMMERCE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"MICROCOMMERCE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

func (j JWTConfig) AccessTokenTTL() time.Duration {
	return minutes(j.ExpirationMinutes)
}

func (j JWTConfig) RefreshTokenTTL() time.Duration {
	return minutes(j.RefreshTokenTTLMinutes)
}

func (j JWTConfig) validate() error {
	if j.AccessTokenTTL() <= 0 {
		return fmt.Errorf("%s must be positive", EnvJWTExpMins)
	}
	if j.RefreshTokenTTL() <= j.AccessTokenTTL() {
		return fmt.Errorf("%s must exceed %s", EnvRefreshTokenTTLMinutes, EnvJWTExpMins)
	}
	return nil
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MICROCOMMERCE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MICROCOMMERCE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MICROCOMMERCE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MICROCOMMERCE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MICROCOMMERCE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MICROCOMMERCE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MICROCOMMERCE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MICROCOMMERCE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"MICROCOMMERCE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MICROCOMMERCE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MICROCOMMERCE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MICROCOMMERCE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MICROCOMMERCE_AUTO_MIGRATE" default:"false"`
}

// CartConfig controls guest identity transport and checkout pricing.
type CartConfig struct {
	SessionHeader     string `envconfig:"MICROCOMMERCE_CART_SESSION_HEADER" default:"X-Session-Key"`
	SessionCookie     string `envconfig:"MICROCOMMERCE_CART_SESSION_COOKIE" default:"session_key"`
	PriceLock         string `envconfig:"MICROCOMMERCE_CART_PRICE_LOCK" default:"cart"`
	GuestCartTTLHours int    `envconfig:"MICROCOMMERCE_GUEST_CART_TTL_HOURS" default:"720"`
}

// GuestCartTTL is how long an untouched guest cart is kept; zero disables the sweep.
func (c CartConfig) GuestCartTTL() time.Duration {
	return max(time.Duration(c.GuestCartTTLHours), 0) * time.Hour
}

// PriceLockPolicy falls back to the cart-time price for unparsable values.
func (c CartConfig) PriceLockPolicy() enums.PriceLock {
	policy, err := enums.ParsePriceLock(c.PriceLock)
	if err != nil {
		return enums.PriceLockCart
	}
	return policy
}

func (c CartConfig) validate() error {
	if _, err := enums.ParsePriceLock(c.PriceLock); err != nil {
		return fmt.Errorf("%s must be %q or %q", EnvCartPriceLock, enums.PriceLockCart, enums.PriceLockCheckout)
	}
	return nil
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"MICROCOMMERCE_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MICROCOMMERCE_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"MICROCOMMERCE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"MICROCOMMERCE_PUBSUB_ORDERS_TOPIC" default:"microcommerce-orders"`
	OrdersSubscription string `envconfig:"MICROCOMMERCE_PUBSUB_ORDERS_SUBSCRIPTION"`
	InventoryTopic     string `envconfig:"MICROCOMMERCE_PUBSUB_INVENTORY_TOPIC"`
}

type OutboxConfig struct {
	BatchSize        int `envconfig:"MICROCOMMERCE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS   int `envconfig:"MICROCOMMERCE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts      int `envconfig:"MICROCOMMERCE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays    int `envconfig:"MICROCOMMERCE_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays int `envconfig:"MICROCOMMERCE_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
}

func (o OutboxConfig) validate() error {
	var err error
	if o.BatchSize <= 0 {
		err = multierr.Append(err, errors.New("MICROCOMMERCE_OUTBOX_PUBLISH_BATCH_SIZE must be positive"))
	}
	if o.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("MICROCOMMERCE_OUTBOX_MAX_ATTEMPTS must be positive"))
	}
	return err
}

type CronConfig struct {
	Interval time.Duration `envconfig:"MICROCOMMERCE_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"MICROCOMMERCE_CRON_LOCK_TTL" default:"10m"`
}

// SeedConfig optionally provisions an admin account alongside the demo catalog.
type SeedConfig struct {
	AdminEmail    string `envconfig:"MICROCOMMERCE_SEED_ADMIN_EMAIL"`
	AdminPassword string `envconfig:"MICROCOMMERCE_SEED_ADMIN_PASSWORD"`
}

func minutes(n int) time.Duration {
	return max(time.Duration(n), 0) * time.Minute
}
