package eventlog

import (
	"context"
	"fmt"
	"log"
	"strings"

	"apisketch/internal/sketch/event"
)

// Log is the append/read contract over a durable, per-sketch ordered log.
type Log interface {
	// Append stores evt and returns its sequence position within the sketch.
	Append(ctx context.Context, evt event.Event) (int64, error)
	// ReadAll returns every event of the sketch in append order.
	ReadAll(ctx context.Context, sketchID string) ([]event.Event, error)
	// Clear drops a sketch's events. Tests and resets only.
	Clear(ctx context.Context, sketchID string) error
}

// Store is a Log that owns a connection.
type Store interface {
	Log
	Close() error
}

// Invalidator is implemented by stores that keep a read cache which must be
// dropped after out-of-band writes.
type Invalidator interface {
	Invalidate(sketchID string)
	InvalidateAll()
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	Backend       string
	DatabaseURL   string
	SQLitePath    string
	ReadCacheSize int
}

// Open returns the store selected by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", BackendMemory:
		log.Printf("event log: in-memory")
		return NewMemoryStore(), nil
	case BackendPostgres:
		s, err := NewPostgresStore(ctx, cfg.DatabaseURL, cfg.ReadCacheSize)
		if err != nil {
			return nil, err
		}
		log.Printf("event log: postgres")
		return s, nil
	case BackendSQLite:
		s, err := NewSQLiteStore(ctx, cfg.SQLitePath, cfg.ReadCacheSize)
		if err != nil {
			return nil, err
		}
		log.Printf("event log: sqlite path=%s", cfg.SQLitePath)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown event log backend %q", cfg.Backend)
	}
}
