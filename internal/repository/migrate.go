package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// goose keeps its settings in package globals
var gooseMu sync.Mutex

// Migrate applies the embedded schema for driver ("postgres" or "sqlite").
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var dialect, dir string
	switch driver {
	case DriverPostgres:
		dialect, dir = "postgres", "migrations/postgres"
	case DriverSQLite:
		dialect, dir = "sqlite3", "migrations/sqlite"
	default:
		return fmt.Errorf("no migrations for driver %q", driver)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(migrations)
	goose.SetTableName("schema_migrations")
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, dir)
}
