package eventlog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"apisketch/internal/apperrors"
	"apisketch/internal/sketch/event"
)

// MemoryStore keeps every sketch's log in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]event.Event
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]event.Event),
		now:    time.Now,
	}
}

func (s *MemoryStore) Append(ctx context.Context, evt event.Event) (int64, error) {
	if s == nil {
		return 0, apperrors.StorageUnavailable(fmt.Errorf("store is nil"))
	}
	if err := ctx.Err(); err != nil {
		return 0, apperrors.StorageUnavailable(err)
	}
	if err := evt.Validate(); err != nil {
		return 0, err
	}
	key := strings.TrimSpace(evt.SketchID)

	s.mu.Lock()
	defer s.mu.Unlock()
	evt.SketchID = key
	evt.Seq = int64(len(s.events[key]) + 1)
	evt.CreatedAt = s.now().UTC()
	s.events[key] = append(s.events[key], evt)
	return evt.Seq, nil
}

func (s *MemoryStore) ReadAll(ctx context.Context, sketchID string) ([]event.Event, error) {
	if s == nil {
		return nil, apperrors.StorageUnavailable(fmt.Errorf("store is nil"))
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StorageUnavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.events[strings.TrimSpace(sketchID)]
	return append([]event.Event(nil), stored...), nil
}

func (s *MemoryStore) Clear(ctx context.Context, sketchID string) error {
	if s == nil {
		return apperrors.StorageUnavailable(fmt.Errorf("store is nil"))
	}
	if err := ctx.Err(); err != nil {
		return apperrors.StorageUnavailable(err)
	}
	s.mu.Lock()
	delete(s.events, strings.TrimSpace(sketchID))
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
