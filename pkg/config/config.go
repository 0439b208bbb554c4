package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
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
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Cart.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPFRONT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SHOPFRONT_LOG_FORMAT" default:"json"`

	// CORSOrigins is a comma-separated list of storefront origins.
	CORSOrigins []string `envconfig:"SHOPFRONT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPFRONT_DB_DSN"`
	Driver string `envconfig:"SHOPFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPFRONT_DB_USER"`
	LegacyPassword string `envconfig:"SHOPFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SHOPFRONT_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHOPFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"SHOPFRONT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"SHOPFRONT_JWT_ISSUER" required:"true"`
	Audience               string `envconfig:"SHOPFRONT_JWT_AUDIENCE" default:"storefront"`
	ExpirationMinutes      int    `envconfig:"SHOPFRONT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"SHOPFRONT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SHOPFRONT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SHOPFRONT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SHOPFRONT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SHOPFRONT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SHOPFRONT_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SHOPFRONT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"SHOPFRONT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"SHOPFRONT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"SHOPFRONT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"SHOPFRONT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"SHOPFRONT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHOPFRONT_AUTO_MIGRATE" default:"false"`
}

// CartConfig controls the guest cookie and the cart count cache.
type CartConfig struct {
	CookieName     string        `envconfig:"SHOPFRONT_CART_COOKIE_NAME" default:"cart_id"`
	CookiePath     string        `envconfig:"SHOPFRONT_CART_COOKIE_PATH" default:"/"`
	CookieTTL      time.Duration `envconfig:"SHOPFRONT_CART_COOKIE_TTL" default:"720h"`
	CookieSecure   bool          `envconfig:"SHOPFRONT_CART_COOKIE_SECURE" default:"true"`
	CountCacheTTL  time.Duration `envconfig:"SHOPFRONT_CART_COUNT_CACHE_TTL" default:"10m"`
	GuestRetention time.Duration `envconfig:"SHOPFRONT_CART_GUEST_RETENTION" default:"720h"`
	SweepEnabled   bool          `envconfig:"SHOPFRONT_CART_SWEEP_ENABLED" default:"false"`
}

func (c CartConfig) validate() error {
	if strings.TrimSpace(c.CookieName) == "" {
		return fmt.Errorf("%s must not be empty", EnvCartCookieName)
	}
	if c.CookieTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvCartCookieTTL)
	}
	return nil
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"SHOPFRONT_CRON_INTERVAL" default:"24h"`
	JobTimeout time.Duration `envconfig:"SHOPFRONT_CRON_JOB_TIMEOUT" default:"1h"`
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
