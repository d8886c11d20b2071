package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	inbox "github.com/goliatone/go-inbox"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
)

func TestSchemas_ReturnsPostgresAndSQLite(t *testing.T) {
	schemas, err := Schemas(nil)
	if err != nil {
		t.Fatalf("schemas: %v", err)
	}
	if len(schemas) != 2 {
		t.Fatalf("expected 2 schemas, got %d", len(schemas))
	}
	seen := map[string][]string{}
	for _, schema := range schemas {
		seen[schema.Dialect] = schema.Versions
	}
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		versions := seen[dialect]
		if len(versions) != 1 || versions[0] != "00001_inbox_messages" {
			t.Fatalf("expected %s messages version, got %#v", dialect, versions)
		}
	}
}

func TestSchemas_RejectsTreeWithoutSQL(t *testing.T) {
	empty := fstest.MapFS{"data/sql/migrations/sqlite/README.md": &fstest.MapFile{Data: []byte("nothing here")}}
	if _, err := Schemas(empty); err == nil {
		t.Fatalf("expected missing migrations to fail")
	}
}

func TestSchemas_RequiresDownMigration(t *testing.T) {
	tree := fstest.MapFS{
		"data/sql/migrations/00001_a.up.sql":          &fstest.MapFile{Data: []byte("SELECT 1;")},
		"data/sql/migrations/00001_a.down.sql":        &fstest.MapFile{Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_a.up.sql":   &fstest.MapFile{Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00002_b.up.sql":   &fstest.MapFile{Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_a.down.sql": &fstest.MapFile{Data: []byte("SELECT 1;")},
	}
	_, err := Schemas(tree)
	if err == nil || !strings.Contains(err.Error(), "00002_b") {
		t.Fatalf("expected missing down for 00002_b, got %v", err)
	}
}

func TestNormalizeDialect(t *testing.T) {
	cases := map[string]string{
		"postgres":   DialectPostgres,
		" PG ":       DialectPostgres,
		"postgresql": DialectPostgres,
		"sqlite3":    DialectSQLite,
		"SQLite":     DialectSQLite,
	}
	for input, want := range cases {
		got, err := NormalizeDialect(input)
		if err != nil || got != want {
			t.Fatalf("NormalizeDialect(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
	if _, err := NormalizeDialect("mysql"); err == nil {
		t.Fatalf("expected unsupported dialect to fail")
	}
}

func TestRegister_AddsDialectSchema(t *testing.T) {
	registrar := &recordingRegistrar{}
	schema, err := Register(registrar, "sqlite3")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if schema.Dialect != DialectSQLite || len(registrar.sources) != 1 {
		t.Fatalf("expected one sqlite registration, got %q %d", schema.Dialect, len(registrar.sources))
	}
	if _, err := fs.Stat(registrar.sources[0], "00001_inbox_messages.up.sql"); err != nil {
		t.Fatalf("expected registered tree to hold sqlite migrations: %v", err)
	}
}

func TestRegister_RequiresRegistrar(t *testing.T) {
	if _, err := Register(nil, DialectSQLite); err == nil {
		t.Fatalf("expected nil registrar to fail")
	}
	if _, err := Register(&recordingRegistrar{}, "oracle"); err == nil {
		t.Fatalf("expected unsupported dialect to fail")
	}
}

type recordingRegistrar struct {
	sources []fs.FS
}

func (r *recordingRegistrar) RegisterSQLMigrations(migrations ...fs.FS) *persistence.Migrations {
	r.sources = append(r.sources, migrations...)
	return nil
}

func TestMessagesMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := inbox.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_inbox_messages.up.sql",
		"data/sql/migrations/00001_inbox_messages.down.sql",
		"data/sql/migrations/sqlite/00001_inbox_messages.up.sql",
		"data/sql/migrations/sqlite/00001_inbox_messages.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteMessagesMigration_EnforcesOneLiveRecordPerProviderID(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", "file:migrations-messages?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(inbox.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_inbox_messages.up.sql"); err != nil {
		t.Fatalf("apply up migration: %v", err)
	}

	insert := func(id string, deletedAt any) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO messages (id, provider_id, direction, deleted_at) VALUES (?, ?, ?, ?)`,
			id, "GS-1", "outbound", deletedAt,
		)
		return err
	}
	if err := insert("m1", nil); err != nil {
		t.Fatalf("insert first live row: %v", err)
	}
	if err := insert("m2", nil); err == nil {
		t.Fatalf("expected unique violation for a second live row")
	}
	if _, err := db.ExecContext(ctx, `UPDATE messages SET deleted_at = CURRENT_TIMESTAMP WHERE id = ?`, "m1"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := insert("m3", nil); err != nil {
		t.Fatalf("expected provider id to be reusable after soft delete: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO messages (id, provider_id, direction) VALUES (?, ?, ?)`,
		"m4", "GS-2", "sideways",
	); err == nil {
		t.Fatalf("expected direction check violation")
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_inbox_messages.down.sql"); err != nil {
		t.Fatalf("apply down migration: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'messages'`,
	).Scan(&count); err != nil {
		t.Fatalf("inspect sqlite master: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected messages table dropped, got %d", count)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return fmt.Errorf("read %s: %w", filename, err)
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
