package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

type migrationFile struct {
	name string
	data []byte
}

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
)`

// RunMigrations applies each migration once, in file name order, from
// migrationsDir or the embedded set when the directory does not exist.
func RunMigrations(ctx context.Context, db *sql.DB, migrationsDir string) error {
	files, err := loadMigrations(migrationsDir)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, migrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	for _, mf := range files {
		if len(mf.data) == 0 {
			continue
		}
		if err := applyMigration(ctx, db, mf); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, mf migrationFile) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", mf.name, err)
	}
	defer func() { _ = tx.Rollback() }()
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, mf.name).Scan(&n); err != nil {
		return fmt.Errorf("check migration %s: %w", mf.name, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, string(mf.data)); err != nil {
		return fmt.Errorf("exec migration %s: %w", mf.name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES (?)`, mf.name); err != nil {
		return fmt.Errorf("record migration %s: %w", mf.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", mf.name, err)
	}
	log.Printf("sqlite store: applied migration %s", mf.name)
	return nil
}

// migrationSource picks dir when it exists, otherwise the embedded set.
func migrationSource(dir string) (fs.FS, error) {
	if dir != "" {
		_, err := os.Stat(dir)
		if err == nil {
			return os.DirFS(dir), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read migrations: %w", err)
		}
	}
	return fs.Sub(embeddedMigrations, "migrations")
}

func loadMigrations(dir string) ([]migrationFile, error) {
	src, err := migrationSource(dir)
	if err != nil {
		return nil, err
	}
	names, err := fs.Glob(src, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)
	files := make([]migrationFile, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(src, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		files = append(files, migrationFile{name: name, data: content})
	}
	return files, nil
}
