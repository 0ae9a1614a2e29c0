package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/coursehub/coursehub-backend/pkg/migrate/migrations"
)

// DefaultDir is where create and validate write and read migration files.
const DefaultDir = "pkg/migrate/migrations"

var errNoDB = errors.New("db is required")

// Dialect maps the configured database driver onto a goose dialect.
func Dialect(driver string) goose.Dialect {
	if driver == "sqlite" {
		return goose.DialectSQLite3
	}
	return goose.DialectPostgres
}

// Source resolves the migration filesystem. The embedded set is used unless
// dir points somewhere other than DefaultDir.
func Source(dir string) fs.FS {
	if dir == "" || filepath.Clean(dir) == DefaultDir {
		return migrations.FS
	}
	return os.DirFS(dir)
}

// NewProvider binds a goose provider to db for the given driver.
func NewProvider(db *sql.DB, driver string, fsys fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, errNoDB
	}
	if fsys == nil {
		fsys = migrations.FS
	}
	provider, err := goose.NewProvider(Dialect(driver), db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

// Apply runs up, down or status and returns one human-readable line per
// migration touched or listed.
func Apply(ctx context.Context, p *goose.Provider, command string) ([]string, error) {
	switch command {
	case "up":
		results, err := p.Up(ctx)
		if err != nil {
			return describeResults(results), fmt.Errorf("goose up: %w", err)
		}
		return describeResults(results), nil
	case "down":
		result, err := p.Down(ctx)
		if err != nil {
			if errors.Is(err, goose.ErrNoNextVersion) {
				return nil, nil
			}
			return nil, fmt.Errorf("goose down: %w", err)
		}
		return describeResults([]*goose.MigrationResult{result}), nil
	case "status":
		statuses, err := p.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose status: %w", err)
		}
		lines := make([]string, 0, len(statuses))
		for _, st := range statuses {
			line := fmt.Sprintf("%-8s %s", st.State, filepath.Base(st.Source.Path))
			if !st.AppliedAt.IsZero() {
				line += " (" + st.AppliedAt.UTC().Format("2006-01-02 15:04:05") + ")"
			}
			lines = append(lines, line)
		}
		return lines, nil
	default:
		return nil, fmt.Errorf("unknown migrate command %q", command)
	}
}

func describeResults(results []*goose.MigrationResult) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s (%s)", r.Direction, filepath.Base(r.Source.Path), r.Duration.Round(time.Millisecond)))
	}
	return lines
}

// MigrateToVersion moves the schema up or down until it sits at targetVersion.
func MigrateToVersion(ctx context.Context, p *goose.Provider, targetVersion string) error {
	if targetVersion == "" {
		return errors.New("targetVersion is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if _, err := p.UpTo(ctx, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		if _, err := p.DownTo(ctx, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}
