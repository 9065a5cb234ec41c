// Package sketch validates tree commands against the current projection and
// records them as events.
package sketch

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"apisketch/internal/apperrors"
	"apisketch/internal/gateway/repository/eventlog"
	"apisketch/internal/gateway/service/treefeed"
	"apisketch/internal/sketch/event"
	"apisketch/internal/sketch/projector"
	"apisketch/internal/sketch/tree"
)

const (
	DefaultMaxDepth       = 64
	DefaultStorageTimeout = 5 * time.Second
)

// Field error descriptions returned to callers.
const (
	descNoSuchNode      = "There is no node with this ID in this sketch"
	descMaxDepth        = "Maximum tree depth exceeded"
	descCycle           = "Cannot move a node into its own subtree"
	descRootDelete      = "The root node cannot be deleted"
	descRootMove        = "The root node cannot be moved"
	descUnsupportedVerb = "Unsupported HTTP method"
	descTargetMissing   = `Missing required field "target"`
)

// Feed receives every committed change.
type Feed interface {
	Publish(treefeed.Update)
	Reset()
}

type Config struct {
	MaxDepth       int
	StorageTimeout time.Duration
}

type Service struct {
	log       eventlog.Log
	projector *projector.Projector
	feed      Feed
	cfg       Config
	newID     func() string
}

func New(l eventlog.Log, p *projector.Projector, feed Feed, cfg Config) *Service {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = DefaultStorageTimeout
	}
	if p == nil {
		p = projector.New(l, nil)
	}
	return &Service{
		log:       l,
		projector: p,
		feed:      feed,
		cfg:       cfg,
		newID:     uuid.NewString,
	}
}

// storageContext bounds log calls when the caller set no deadline.
func (s *Service) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.StorageTimeout)
}

// current returns the cached projection. Callers hold the sketch lock.
func (s *Service) current(ctx context.Context, sketchID string) (*tree.Tree, error) {
	storeCtx, cancel := s.storageContext(ctx)
	defer cancel()
	t, err := s.projector.ProjectLocked(storeCtx, sketchID)
	if err != nil {
		return nil, storageErr(err)
	}
	return t, nil
}

// commit applies evt to a copy of current, appends it, swaps the copy into
// the cache and publishes it. Nothing is appended when the reducer rejects
// evt, and the cache is untouched when the append fails. Callers hold the
// sketch lock, so the feed sees commits in log order.
func (s *Service) commit(ctx context.Context, current *tree.Tree, evt event.Event) (*tree.Tree, error) {
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	next := current.Clone()
	if err := next.Apply(evt); err != nil {
		return nil, err
	}
	storeCtx, cancel := s.storageContext(ctx)
	defer cancel()
	seq, err := s.log.Append(storeCtx, evt)
	if err != nil {
		return nil, storageErr(err)
	}
	next.Seq = seq
	s.projector.Cache.Put(evt.SketchID, next)
	s.publish(evt.SketchID, evt.Type, next)
	return next, nil
}

func (s *Service) publish(sketchID string, t event.Type, next *tree.Tree) {
	if s.feed == nil || next == nil {
		return
	}
	s.feed.Publish(treefeed.Update{
		SketchID:  sketchID,
		EventType: string(t),
		Seq:       next.Seq,
		RootNode:  next.Render(),
	})
}

// storageErr classifies errors that escaped the log without a code.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.StorageUnavailable(err)
}

// logFailure records faults that are not the caller's doing.
func logFailure(op, sketchID string, err error) {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeGeneric, apperrors.CodeStorageUnavailable:
		log.Printf("sketch: %s sketch=%s failed: %v", op, sketchID, err)
	}
}
