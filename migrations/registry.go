// Package migrations resolves the embedded messages schema per dialect and
// hands it to a go-persistence-bun client.
package migrations

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	inbox "github.com/goliatone/go-inbox"
	persistence "github.com/goliatone/go-persistence-bun"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	rootPath = "data/sql/migrations"
)

// Schema is the migration set for one dialect.
type Schema struct {
	Dialect  string
	Path     string
	FS       fs.FS
	Versions []string
}

// Registrar is satisfied by persistence.Client.
type Registrar interface {
	RegisterSQLMigrations(migrations ...fs.FS) *persistence.Migrations
}

// NormalizeDialect maps database driver names onto a migration dialect.
func NormalizeDialect(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: unsupported dialect %q", name)
	}
}

// Schemas lists the postgres and sqlite migration sets under root, or the
// embedded tree when root is nil. Every up file must have a down file.
func Schemas(root fs.FS) ([]Schema, error) {
	if root == nil {
		root = inbox.GetMigrationsFS()
	}
	base, err := fs.Sub(root, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootPath, err)
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite tree: %w", err)
	}

	schemas := []Schema{
		{Dialect: DialectPostgres, Path: rootPath, FS: base},
		{Dialect: DialectSQLite, Path: rootPath + "/" + DialectSQLite, FS: sqliteFS},
	}
	for i := range schemas {
		versions, err := versionsOf(schemas[i])
		if err != nil {
			return nil, err
		}
		schemas[i].Versions = versions
	}
	return schemas, nil
}

// ForDialect returns the embedded schema for a dialect or driver name.
func ForDialect(name string) (Schema, error) {
	dialect, err := NormalizeDialect(name)
	if err != nil {
		return Schema{}, err
	}
	schemas, err := Schemas(nil)
	if err != nil {
		return Schema{}, err
	}
	for _, schema := range schemas {
		if schema.Dialect == dialect {
			return schema, nil
		}
	}
	return Schema{}, fmt.Errorf("migrations: no schema for %s", dialect)
}

// Register resolves the schema for name and registers it on registrar. The
// caller still runs Migrate.
func Register(registrar Registrar, name string) (Schema, error) {
	if registrar == nil {
		return Schema{}, fmt.Errorf("migrations: registrar is required")
	}
	schema, err := ForDialect(name)
	if err != nil {
		return Schema{}, err
	}
	registrar.RegisterSQLMigrations(schema.FS)
	return schema, nil
}

func versionsOf(schema Schema) ([]string, error) {
	ups, err := fs.Glob(schema.FS, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", schema.Path, err)
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("migrations: %s tree %q has no *.up.sql files", schema.Dialect, schema.Path)
	}
	versions := make([]string, 0, len(ups))
	for _, up := range ups {
		version := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(schema.FS, version+".down.sql"); err != nil {
			return nil, fmt.Errorf("migrations: %s %s has no down migration", schema.Dialect, version)
		}
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions, nil
}
