package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/andresuchdata/restockplan/pkg/logger"
)

// Migrate applies every .sql file in dir in name order. The scripts are
// idempotent, so re-running is safe.
func Migrate(ctx context.Context, db *DB, dir string) error {
	files, err := MigrationFiles(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		body, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", f, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", filepath.Base(f), err)
		}
		logger.Log.Info().Str("file", filepath.Base(f)).Msg("migration applied")
	}
	return nil
}

// MigrationFiles lists the .sql scripts of dir, sorted.
func MigrationFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations in %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migrations found in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}
