package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"apisketch/internal/apperrors"
	"apisketch/internal/sketch/event"
)

const defaultReadCacheSize = 256

// dialect captures what differs between the SQL backends.
type dialect struct {
	name   string
	schema string
	// positional rewrites $N placeholders when the driver wants ?.
	positional bool
}

var placeholderRE = regexp.MustCompile(`\$\d+`)

func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}
	return placeholderRE.ReplaceAllString(query, "?")
}

// sqlStore implements Log over database/sql. ReadAll results are cached per
// sketch and dropped on every write to that sketch.
//
// Rows are ordered by id, and an event's seq is its position within the
// sketch. Rows inserted by hand with only sketchid, userid, eventtype and
// eventdata therefore replay in place once the sketch is invalidated.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time

	schemaMu    sync.Mutex
	schemaReady bool

	reads *lru.Cache[string, []event.Event]

	// A read may only fill the cache if no write or invalidation touched its
	// sketch while the query ran.
	genMu sync.Mutex
	gens  map[string]uint64
	epoch uint64
}

type readGeneration struct {
	gen   uint64
	epoch uint64
}

func newSQLStore(db *sql.DB, d dialect, cacheSize int) (*sqlStore, error) {
	if cacheSize <= 0 {
		cacheSize = defaultReadCacheSize
	}
	reads, err := lru.New[string, []event.Event](cacheSize)
	if err != nil {
		return nil, err
	}
	return &sqlStore{
		db:      db,
		dialect: d,
		now:     time.Now,
		reads:   reads,
		gens:    make(map[string]uint64),
	}, nil
}

func (s *sqlStore) generation(key string) readGeneration {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return readGeneration{gen: s.gens[key], epoch: s.epoch}
}

// forget drops the cached read for key and outdates reads still in flight.
func (s *sqlStore) forget(key string) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.gens[key]++
	s.reads.Remove(key)
}

// remember caches events for key unless key changed since g was taken.
func (s *sqlStore) remember(key string, g readGeneration, events []event.Event) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[key] != g.gen || s.epoch != g.epoch {
		return false
	}
	s.reads.Add(key, events)
	return true
}

func (s *sqlStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return err
	}
	s.schemaReady = true
	return nil
}

func (s *sqlStore) Append(ctx context.Context, evt event.Event) (int64, error) {
	if err := evt.Validate(); err != nil {
		return 0, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return 0, apperrors.StorageUnavailable(fmt.Errorf("%s: ensure schema: %w", s.dialect.name, err))
	}
	payload, err := event.EncodePayload(evt.Payload)
	if err != nil {
		return 0, err
	}
	sketchID := strings.TrimSpace(evt.SketchID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.unavailable("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	row := tx.QueryRowContext(ctx, s.dialect.rebind(`
SELECT COUNT(*) + 1 FROM sketchevents WHERE sketchid = $1`), sketchID)
	if err := row.Scan(&seq); err != nil {
		return 0, s.unavailable("next seq", err)
	}
	_, err = tx.ExecContext(ctx, s.dialect.rebind(`
INSERT INTO sketchevents (sketchid, seq, userid, eventtype, eventdata, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`),
		sketchID, seq, evt.UserID, string(evt.Type), string(payload), s.now().UTC().UnixMilli())
	if err != nil {
		return 0, s.unavailable("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, s.unavailable("commit", err)
	}
	s.forget(sketchID)
	return seq, nil
}

func (s *sqlStore) ReadAll(ctx context.Context, sketchID string) ([]event.Event, error) {
	key := strings.TrimSpace(sketchID)
	if cached, ok := s.reads.Get(key); ok {
		return append([]event.Event(nil), cached...), nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, apperrors.StorageUnavailable(fmt.Errorf("%s: ensure schema: %w", s.dialect.name, err))
	}
	g := s.generation(key)
	out, err := s.query(ctx, key)
	if err != nil {
		return nil, err
	}
	s.remember(key, g, out)
	return append([]event.Event(nil), out...), nil
}

func (s *sqlStore) query(ctx context.Context, key string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
SELECT sketchid, userid, eventtype, eventdata, created_at
FROM sketchevents
WHERE sketchid = $1
ORDER BY id ASC`), key)
	if err != nil {
		return nil, s.unavailable("read events", err)
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		seq := int64(len(out) + 1)
		var (
			sketch    string
			userID    string
			eventType string
			data      []byte
			createdAt int64
		)
		if err := rows.Scan(&sketch, &userID, &eventType, &data, &createdAt); err != nil {
			return nil, s.unavailable("scan event", err)
		}
		evt, err := event.Decode(seq, sketch, userID, eventType, data)
		if err != nil {
			return nil, fmt.Errorf("sketch %s seq %d: %w", key, seq, err)
		}
		evt.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, s.unavailable("read events", err)
	}
	return out, nil
}

func (s *sqlStore) Clear(ctx context.Context, sketchID string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return apperrors.StorageUnavailable(fmt.Errorf("%s: ensure schema: %w", s.dialect.name, err))
	}
	key := strings.TrimSpace(sketchID)
	defer s.forget(key)
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM sketchevents WHERE sketchid = $1`), key); err != nil {
		return s.unavailable("clear events", err)
	}
	return nil
}

// Invalidate drops the cached read for sketchID.
func (s *sqlStore) Invalidate(sketchID string) {
	s.forget(strings.TrimSpace(sketchID))
}

// InvalidateAll drops every cached read.
func (s *sqlStore) InvalidateAll() {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.epoch++
	s.reads.Purge()
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.reads.Purge()
	return s.db.Close()
}

func (s *sqlStore) unavailable(op string, err error) error {
	return apperrors.StorageUnavailable(fmt.Errorf("%s: %s: %w", s.dialect.name, op, err))
}
