package sketch

import (
	"context"
	"log"

	"apisketch/internal/apperrors"
	"apisketch/internal/sketch/event"
	"apisketch/internal/sketch/node"
	"apisketch/internal/sketch/tree"
)

// GetTree renders the sketch's current tree.
func (s *Service) GetTree(ctx context.Context, sketchID string) (tree.RenderedNode, error) {
	unlock := s.projector.Cache.Lock(sketchID)
	defer unlock()
	cur, err := s.current(ctx, sketchID)
	if err != nil {
		logFailure("get tree", sketchID, err)
		return tree.RenderedNode{}, err
	}
	if !cur.HasRoot() {
		return tree.RenderedNode{}, apperrors.NotFound("Sketch not found")
	}
	return cur.Render(), nil
}

// Snapshot returns a private copy of the current projection.
func (s *Service) Snapshot(ctx context.Context, sketchID string) (*tree.Tree, error) {
	unlock := s.projector.Cache.Lock(sketchID)
	defer unlock()
	cur, err := s.current(ctx, sketchID)
	if err != nil {
		return nil, err
	}
	if !cur.HasRoot() {
		return nil, apperrors.NotFound("Sketch not found")
	}
	return cur.Clone(), nil
}

// CreateSketch defines the root of an empty sketch. It is a no-op for a sketch
// that already has one.
func (s *Service) CreateSketch(ctx context.Context, userID, sketchID string) (tree.RenderedNode, error) {
	unlock := s.projector.Cache.Lock(sketchID)
	defer unlock()
	cur, err := s.current(ctx, sketchID)
	if err != nil {
		logFailure("create sketch", sketchID, err)
		return tree.RenderedNode{}, err
	}
	if cur.HasRoot() {
		return cur.Render(), nil
	}
	next, err := s.commit(ctx, cur, event.New(sketchID, userID, event.DefineRoot{RootNode: node.NewRoot()}))
	if err != nil {
		logFailure("create sketch", sketchID, err)
		return tree.RenderedNode{}, err
	}
	return next.Render(), nil
}

// VerifyProjection replays the log and compares the result with the cached
// tree. Without a cached tree it compares two independent replays.
func (s *Service) VerifyProjection(ctx context.Context, sketchID string) (bool, error) {
	unlock := s.projector.Cache.Lock(sketchID)
	defer unlock()
	storeCtx, cancel := s.storageContext(ctx)
	defer cancel()

	fresh, err := s.projector.Replay(storeCtx, sketchID)
	if err != nil {
		return false, storageErr(err)
	}
	want, ok := s.projector.Cache.Get(sketchID)
	if !ok {
		if want, err = s.projector.Replay(storeCtx, sketchID); err != nil {
			return false, storageErr(err)
		}
	}
	if !fresh.Equal(want) {
		log.Printf("sketch: projection mismatch sketch=%s cachedSeq=%d replayedSeq=%d", sketchID, want.Seq, fresh.Seq)
		return false, nil
	}
	return true, nil
}

// Invalidate forces the next projection of sketchID to replay the log.
func (s *Service) Invalidate(sketchID string) {
	s.projector.Invalidate(sketchID)
}

// Reset drops every cached projection and closes every feed subscription.
func (s *Service) Reset() {
	s.projector.ResetAll()
	if s.feed != nil {
		s.feed.Reset()
	}
}
