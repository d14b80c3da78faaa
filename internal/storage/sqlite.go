package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := CheckLocalFilesystem(path); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// CLI, HTTP and tool server processes share the file; keep one writer per process.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables and indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transcriptions (
  id            TEXT PRIMARY KEY,
  text          TEXT NOT NULL,
  audio_file    TEXT,
  model         TEXT NOT NULL,
  language      TEXT NOT NULL,
  duration_ms   INTEGER,
  processing_ms INTEGER NOT NULL,
  segments      JSON NOT NULL DEFAULT '[]',
  injected      INTEGER NOT NULL DEFAULT 0,
  created_at    TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS transcriptions_created_at_idx ON transcriptions(created_at);`,
		`CREATE TABLE IF NOT EXISTS preferences (
  profile           TEXT PRIMARY KEY,
  model             TEXT,
  language          TEXT,
  injector          TEXT,
  auto_inject       INTEGER,
  auto_delete_audio INTEGER,
  updated_at        TEXT NOT NULL
);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
