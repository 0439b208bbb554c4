package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	connectTimeout = 5 * time.Second
)

// Client owns the process-wide GORM connection pool.
type Client struct {
	conn *gorm.DB
}

// Pinger is what the readiness check needs from the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens the pool, applies limits from cfg and pings once before
// returning. Statements slower than cfg.SlowQuery are logged at warn.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 queryLogger(ctx, logg, cfg.SlowQuery),
		SkipDefaultTransaction: true,
		NowFunc:                NowUTC,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	client := &Client{conn: conn}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"driver":     driverName(cfg),
			"max_open":   cfg.MaxOpenConns,
			"slow_query": cfg.SlowQuery.String(),
		}), "database connection established")
	}
	return client, nil
}

// NowUTC is the clock GORM uses for autoCreateTime/autoUpdateTime columns.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// NewFromGorm wraps an existing connection; used by tests and tooling.
func NewFromGorm(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	switch driverName(cfg) {
	case DriverPostgres:
		return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
	case DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func driverName(cfg config.DBConfig) string {
	if name := strings.ToLower(strings.TrimSpace(cfg.Driver)); name != "" {
		return name
	}
	return DriverPostgres
}

// queryLogger routes GORM's slow-query and error reports into the service
// logger. Without a logger or threshold GORM stays silent.
func queryLogger(ctx context.Context, logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil || slow <= 0 {
		return gormlogger.Discard
	}
	return gormlogger.New(gormWriter{ctx: logg.WithField(ctx, "component", "gorm"), logg: logg}, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
		Colorful:                  false,
	})
}

type gormWriter struct {
	ctx  context.Context
	logg *logger.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.logg.Warn(w.ctx, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Driver reports the dialect backing the connection.
func (c *Client) Driver() string {
	return c.conn.Dialector.Name()
}

// DB returns the underlying GORM connection.
func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction bound to ctx. An error from fn or a panic
// rolls back; the panic is re-raised.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
