package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: `
CREATE TABLE IF NOT EXISTS sketchevents (
	id BIGSERIAL PRIMARY KEY,
	sketchid TEXT NOT NULL,
	seq BIGINT,
	userid TEXT NOT NULL DEFAULT '',
	eventtype TEXT NOT NULL,
	eventdata JSONB NOT NULL,
	created_at BIGINT NOT NULL DEFAULT (EXTRACT(EPOCH FROM now()) * 1000)::BIGINT,
	UNIQUE (sketchid, seq)
);
ALTER TABLE sketchevents ALTER COLUMN seq DROP NOT NULL;
ALTER TABLE sketchevents ALTER COLUMN created_at SET DEFAULT (EXTRACT(EPOCH FROM now()) * 1000)::BIGINT;
CREATE INDEX IF NOT EXISTS idx_sketchevents_sketch_id ON sketchevents (sketchid, id);`,
}

// PostgresStore persists sketch events in the sketchevents table.
type PostgresStore struct {
	*sqlStore
}

func NewPostgresStore(ctx context.Context, dsn string, cacheSize int) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres event log")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStoreFromDB(db, cacheSize)
}

func NewPostgresStoreFromDB(db *sql.DB, cacheSize int) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	base, err := newSQLStore(db, postgresDialect, cacheSize)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{sqlStore: base}, nil
}
