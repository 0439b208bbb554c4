package config

// EnvPrefix is handed to envconfig; every field carries an explicit name so the
// prefix only matters for unnamed fields.
const EnvPrefix = "SHOPFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "SHOPFRONT_APP_ENV"
	EnvPort                   = "SHOPFRONT_APP_PORT"
	EnvDBDSN                  = "SHOPFRONT_DB_DSN"
	EnvDBHost                 = "SHOPFRONT_DB_HOST"
	EnvDBPort                 = "SHOPFRONT_DB_PORT"
	EnvDBUser                 = "SHOPFRONT_DB_USER"
	EnvDBPassword             = "SHOPFRONT_DB_PASSWORD"
	EnvDBName                 = "SHOPFRONT_DB_NAME"
	EnvRedisURL               = "SHOPFRONT_REDIS_URL"
	EnvJWTSecret              = "SHOPFRONT_JWT_SECRET"
	EnvJWTIssuer              = "SHOPFRONT_JWT_ISSUER"
	EnvJWTExpMins             = "SHOPFRONT_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "SHOPFRONT_REFRESH_TOKEN_TTL_MINUTES"
	EnvCartCookieName         = "SHOPFRONT_CART_COOKIE_NAME"
	EnvCartCookieTTL          = "SHOPFRONT_CART_COOKIE_TTL"
	EnvCartSweepEnabled       = "SHOPFRONT_CART_SWEEP_ENABLED"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
