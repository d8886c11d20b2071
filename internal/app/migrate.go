package app

import (
	"context"

	"github.com/goliatone/go-inbox/core"
	sqlstore "github.com/goliatone/go-inbox/store/sql"
)

// Migrate applies the embedded schema for the configured database. The
// memory driver has no schema.
func Migrate(ctx context.Context, cfg core.Config) error {
	if cfg.Database.Driver == core.DatabaseDriverMemory {
		return nil
	}
	client, err := sqlstore.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Migrate(ctx); err != nil {
		return core.WrapStorageError(err, "app: migrate database")
	}
	return nil
}
