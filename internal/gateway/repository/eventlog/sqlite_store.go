package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name:       "sqlite",
	positional: true,
	schema: `
CREATE TABLE IF NOT EXISTS sketchevents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sketchid TEXT NOT NULL,
	seq INTEGER,
	userid TEXT NOT NULL DEFAULT '',
	eventtype TEXT NOT NULL,
	eventdata TEXT NOT NULL,
	created_at INTEGER NOT NULL DEFAULT (CAST((julianday('now') - 2440587.5) * 86400000 AS INTEGER)),
	UNIQUE (sketchid, seq)
);
CREATE INDEX IF NOT EXISTS idx_sketchevents_sketch_id ON sketchevents (sketchid, id);`,
}

// SQLiteStore persists sketch events in a local SQLite file.
type SQLiteStore struct {
	*sqlStore
}

func NewSQLiteStore(ctx context.Context, path string, cacheSize int) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("SQLITE_PATH is required for the sqlite event log")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps seq assignment serial within the file.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	base, err := newSQLStore(db, sqliteDialect, cacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{sqlStore: base}, nil
}
