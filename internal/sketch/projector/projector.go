// Package projector materializes sketch trees from the event log, reusing the
// cached projection when one is present.
package projector

import (
	"context"
	"fmt"
	"log"

	"apisketch/internal/apperrors"
	"apisketch/internal/cache/projection"
	"apisketch/internal/gateway/repository/eventlog"
	"apisketch/internal/sketch/tree"
)

type Projector struct {
	Log   eventlog.Log
	Cache *projection.Cache
}

func New(l eventlog.Log, c *projection.Cache) *Projector {
	if c == nil {
		c = projection.New()
	}
	return &Projector{Log: l, Cache: c}
}

// Project returns a private copy of the sketch's current tree.
func (p *Projector) Project(ctx context.Context, sketchID string) (*tree.Tree, error) {
	if p == nil {
		return nil, apperrors.Generic("projector is nil", nil)
	}
	unlock := p.Cache.Lock(sketchID)
	defer unlock()
	t, err := p.ProjectLocked(ctx, sketchID)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// ProjectLocked returns the cached tree, replaying the log on a miss. The
// caller holds the sketch lock and must not mutate the result.
func (p *Projector) ProjectLocked(ctx context.Context, sketchID string) (*tree.Tree, error) {
	if t, ok := p.Cache.Get(sketchID); ok {
		return t, nil
	}
	t, err := p.Replay(ctx, sketchID)
	if err != nil {
		return nil, err
	}
	p.Cache.Put(sketchID, t)
	return t, nil
}

// Replay folds the full log without touching the cache.
func (p *Projector) Replay(ctx context.Context, sketchID string) (*tree.Tree, error) {
	if p == nil || p.Log == nil {
		return nil, apperrors.StorageUnavailable(fmt.Errorf("event log is not configured"))
	}
	events, err := p.Log.ReadAll(ctx, sketchID)
	if err != nil {
		return nil, err
	}
	t, err := tree.Replay(events)
	if err != nil {
		log.Printf("projector: replay sketch=%s failed: %v", sketchID, err)
		return nil, err
	}
	log.Printf("projector: replayed sketch=%s events=%d", sketchID, len(events))
	return t, nil
}

// Invalidate drops the cached tree and any read cache the log keeps.
func (p *Projector) Invalidate(sketchID string) {
	if p == nil {
		return
	}
	unlock := p.Cache.Lock(sketchID)
	defer unlock()
	p.Cache.Invalidate(sketchID)
	if inv, ok := p.Log.(eventlog.Invalidator); ok {
		inv.Invalidate(sketchID)
	}
	log.Printf("projector: invalidated sketch=%s", sketchID)
}

// ResetAll drops every cached tree.
func (p *Projector) ResetAll() {
	if p == nil {
		return
	}
	p.Cache.ResetAll()
	if inv, ok := p.Log.(eventlog.Invalidator); ok {
		inv.InvalidateAll()
	}
	log.Printf("projector: cache reset")
}
