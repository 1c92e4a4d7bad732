package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver           string
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// FromAppConfig maps the database section of the application configuration.
func FromAppConfig(c common.DatabaseConfig) Config {
	return Config{
		Driver:           c.Driver,
		DSN:              c.DSN,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
	}
}

// DB is the usage store handle. Pool is only set for postgres.
type DB struct {
	*sqlx.DB
	Pool *pgxpool.Pool
}

// Open connects to the configured driver.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	switch cfg.Driver {
	case DriverPostgres, "":
		return OpenPostgres(ctx, cfg, logger)
	case DriverSQLite:
		return OpenSQLite(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// OpenPostgres creates a pgx pool and wraps it as *sqlx.DB.
func OpenPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "driver", DriverPostgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "policy-extractor"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
	logger.Info("successfully connected to database")
	return &DB{DB: db, Pool: pool}, nil
}

// OpenSQLite opens a local database file; ":memory:" works for throwaway runs.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = ":memory:"
	}
	logger.Info("opening database", "driver", DriverSQLite, "path", path)
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; also keeps :memory: on a single connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	return &DB{DB: db}, nil
}

// Dialect reports which schema flavour the handle speaks.
func (d *DB) Dialect() string {
	if d.Pool != nil {
		return DriverPostgres
	}
	return DriverSQLite
}

// Close closes the database connections gracefully
func Close(db *DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if err := db.DB.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
	if db.Pool != nil {
		db.Pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings using database/sql to catch DSN issues early.
func HealthCheck(ctx context.Context, db *sqlx.DB, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}
