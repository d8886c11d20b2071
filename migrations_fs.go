package inbox

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the messages schema for postgres at the root and for
// sqlite under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the full embedded migration tree.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}
