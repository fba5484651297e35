package config

const EnvPrefix = "MICROCOMMERCE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const DefaultSQLiteDSN = "file:microcommerce.db?cache=shared&_foreign_keys=on"

const (
	EnvAppEnv                 = "MICROCOMMERCE_APP_ENV"
	EnvPort                   = "MICROCOMMERCE_APP_PORT"
	EnvDBDSN                  = "MICROCOMMERCE_DB_DSN"
	EnvDBHost                 = "MICROCOMMERCE_DB_HOST"
	EnvDBUser                 = "MICROCOMMERCE_DB_USER"
	EnvDBName                 = "MICROCOMMERCE_DB_NAME"
	EnvRedisURL               = "MICROCOMMERCE_REDIS_URL"
	EnvJWTSecret              = "MICROCOMMERCE_JWT_SECRET"
	EnvJWTIssuer              = "MICROCOMMERCE_JWT_ISSUER"
	EnvJWTExpMins             = "MICROCOMMERCE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "MICROCOMMERCE_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite              = "MICROCOMMERCE_USE_SQLITE"
	EnvCartPriceLock          = "MICROCOMMERCE_CART_PRICE_LOCK"
	EnvGuestCartTTLHours      = "MICROCOMMERCE_GUEST_CART_TTL_HOURS"
	EnvGCPProjectID           = "MICROCOMMERCE_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic      = "MICROCOMMERCE_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub        = "MICROCOMMERCE_PUBSUB_ORDERS_SUBSCRIPTION"
)
