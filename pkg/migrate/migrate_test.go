package migrate

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	versions, err := ValidateDir("migrations")
	if err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
	if len(versions) < 7 {
		t.Fatalf("expected at least 7 migrations, got %d", len(versions))
	}
}

func TestEntitlementMigrationCarriesUniqueKeys(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_entitlements.sql"))
	if err != nil || len(matches) == 0 {
		t.Fatalf("entitlement migration not found: %v", err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"CONSTRAINT course_access_user_course_key UNIQUE (user_id, course_id)",
		"CONSTRAINT purchases_user_course_key UNIQUE (user_id, course_id)",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Course Tags!", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20260203040506_add_course_tags.sql" {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	if _, err := CreateSQLMigration(dir, "add course tags", now); err == nil {
		t.Fatal("expected duplicate migration to fail")
	}
	if _, err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename to be rejected")
	}
}

func TestDialect(t *testing.T) {
	if Dialect("sqlite") != goose.DialectSQLite3 || Dialect("postgres") != goose.DialectPostgres {
		t.Fatal("unexpected dialect mapping")
	}
}

func TestApplyRunsMigrationsFromFS(t *testing.T) {
	sqlDB, err := sql.Open("sqlite3", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	fsys := fstest.MapFS{
		"20260101000000_create_widgets.sql": {Data: []byte(`-- +goose Up
CREATE TABLE widgets (id TEXT PRIMARY KEY);
-- +goose Down
DROP TABLE widgets;
`)},
		"20260101000100_add_name.sql": {Data: []byte(`-- +goose Up
ALTER TABLE widgets ADD COLUMN name TEXT;
-- +goose Down
SELECT 1;
`)},
	}
	provider, err := NewProvider(sqlDB, "sqlite", fsys)
	require.NoError(t, err)

	ctx := context.Background()
	applied, err := Apply(ctx, provider, "up")
	require.NoError(t, err)
	require.Len(t, applied, 2)

	version, err := provider.GetDBVersion(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 20260101000100, version)

	require.NoError(t, MigrateToVersion(ctx, provider, "20260101000000"))
	version, err = provider.GetDBVersion(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 20260101000000, version)

	status, err := Apply(ctx, provider, "status")
	require.NoError(t, err)
	require.Len(t, status, 2)
	require.True(t, strings.HasPrefix(status[1], "pending"))

	_, err = Apply(ctx, provider, "sideways")
	require.Error(t, err)
}

func TestSourceUsesEmbeddedMigrationsByDefault(t *testing.T) {
	entries, err := fs.Glob(Source(DefaultDir), "*.sql")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(entries), 7)

	_, err = NewProvider(nil, "postgres", nil)
	require.Error(t, err)
}
