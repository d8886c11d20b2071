package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "go-inbox"
}

// Open connects to the configured database and registers the embedded
// migrations for its dialect. Callers run client.Migrate when they own the
// schema.
func Open(ctx context.Context, cfg core.DatabaseConfig) (*persistence.Client, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, core.NewBadInputError("sqlstore: database dsn is required")
	}

	var dialect schema.Dialect
	switch driver {
	case core.DatabaseDriverPostgres:
		dialect = pgdialect.New()
	case core.DatabaseDriverSQLite:
		dialect = sqlitedialect.New()
	default:
		return nil, core.NewBadInputError(fmt.Sprintf("sqlstore: unsupported database driver %q", cfg.Driver))
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, core.WrapStorageError(err, "sqlstore: open database")
	}
	if driver == core.DatabaseDriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{driver: driver, server: dsn, debug: cfg.Debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, core.WrapStorageError(err, "sqlstore: new persistence client")
	}

	if _, err := migrations.Register(client, driver); err != nil {
		_ = client.Close()
		return nil, core.WrapStorageError(err, "sqlstore: register migrations")
	}
	return client, nil
}
