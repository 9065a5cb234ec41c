package sketch

import (
	"context"
	"sort"

	"apisketch/internal/apperrors"
	"apisketch/internal/sketch/event"
	"apisketch/internal/sketch/node"
	"apisketch/internal/sketch/tree"
)

// NodeSpec describes a node to create. An empty Fullpath is derived from the
// parent's path and Name.
type NodeSpec struct {
	Name     string
	Fullpath string
}

// NodePatch carries only the fields the caller wants to change.
type NodePatch struct {
	Name     *string
	Fullpath *string
	Data     map[string]node.MethodPatch
}

type AddResult struct {
	NodeID string    `json:"nodeId"`
	Node   node.Node `json:"node"`
}

type UpdateResult struct {
	Node     node.Node         `json:"node"`
	RootNode tree.RenderedNode `json:"rootNode"`
}

type MoveResult struct {
	RootNode tree.RenderedNode `json:"rootNode"`
}

// AddNode appends a default node under parentID.
func (s *Service) AddNode(ctx context.Context, userID, sketchID, parentID string, spec NodeSpec) (AddResult, error) {
	unlock := s.projector.Cache.Lock(sketchID)
	defer unlock()
	res, err := s.addNodeLocked(ctx, userID, sketchID, parentID, spec)
	if err != nil {
		logFailure("add node", sketchID, err)
		return AddResult{}, err
	}
	return res, nil
}

func (s *Service) addNodeLocked(ctx context.Context, userID, sketchID, parentID string, spec NodeSpec) (AddResult, error) {
	cur, err := s.current(ctx, sketchID)
	if err != nil {
		return AddResult{}, err
	}
	parent, ok := cur.Node(parentID)
	if !ok {
		return AddResult{}, apperrors.FieldValidation("nodeId", apperrors.FieldInvalid, descNoSuchNode)
	}
	if cur.Depth(parentID)+1 > s.cfg.MaxDepth {
		return AddResult{}, apperrors.FieldValidation("nodeId", apperrors.FieldInvalid, descMaxDepth)
	}
	fullpath := spec.Fullpath
	if fullpath == "" {
		fullpath = node.JoinPath(parent.Fullpath, spec.Name)
	}
	id := s.newID()
	evt := event.New(sketchID, userID, event.Add{
		ParentID: parentID,
		ID:       id,
		Name:     spec.Name,
		Fullpath: fullpath,
	})
	next, err := s.commit(ctx, cur, evt)
	if err != nil {
		return AddResult{}, err
	}
	created, _ := next.Node(id)
	return AddResult{NodeID: id, Node: created}, nil
}

// UpdateNode sets name and fullpath when given and merges each mentioned verb
// into the node's method data.
func (s *Service) UpdateNode(ctx context.Context, userID, sketchID, nodeID string, patch NodePatch) (UpdateResult, error) {
	unlock := s.projector.Cache.Lock(sketchID)
	defer unlock()
	res, err := s.updateNodeLocked(ctx, userID, sketchID, nodeID, patch)
	if err != nil {
		logFailure("update node", sketchID, err)
		return UpdateResult{}, err
	}
	return res, nil
}

func (s *Service) updateNodeLocked(ctx context.Context, userID, sketchID, nodeID string, patch NodePatch) (UpdateResult, error) {
	cur, err := s.current(ctx, sketchID)
	if err != nil {
		return UpdateResult{}, err
	}
	if !cur.Has(nodeID) {
		return UpdateResult{}, apperrors.FieldValidation("nodeId", apperrors.FieldInvalid, descNoSuchNode)
	}
	verbs := make([]string, 0, len(patch.Data))
	for verb := range patch.Data {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)
	for _, verb := range verbs {
		if !node.IsVerb(verb) {
			return UpdateResult{}, apperrors.FieldValidation("data."+verb, apperrors.FieldInvalid, descUnsupportedVerb)
		}
	}
	evt := event.New(sketchID, userID, event.Update{
		NodeID:   nodeID,
		Name:     patch.Name,
		Fullpath: patch.Fullpath,
		Data:     patch.Data,
	})
	next, err := s.commit(ctx, cur, evt)
	if err != nil {
		return UpdateResult{}, err
	}
	updated, _ := next.Node(nodeID)
	return UpdateResult{Node: updated, RootNode: next.Render()}, nil
}

// DeleteNode removes nodeID and all of its descendants.
func (s *Service) DeleteNode(ctx context.Context, userID, sketchID, nodeID string) error {
	unlock := s.projector.Cache.Lock(sketchID)
	defer unlock()
	if _, err := s.deleteNodeLocked(ctx, userID, sketchID, nodeID); err != nil {
		logFailure("delete node", sketchID, err)
		return err
	}
	return nil
}

func (s *Service) deleteNodeLocked(ctx context.Context, userID, sketchID, nodeID string) (*tree.Tree, error) {
	cur, err := s.current(ctx, sketchID)
	if err != nil {
		return nil, err
	}
	if !cur.Has(nodeID) {
		return nil, apperrors.NotFound("Node not found")
	}
	if nodeID == node.RootID {
		return nil, apperrors.FieldValidation("nodeId", apperrors.FieldInvalid, descRootDelete)
	}
	return s.commit(ctx, cur, event.New(sketchID, userID, event.Delete{NodeID: nodeID}))
}

// MoveNode reparents nodeID under targetID, keeping its subtree.
func (s *Service) MoveNode(ctx context.Context, userID, sketchID, nodeID, targetID string) (MoveResult, error) {
	unlock := s.projector.Cache.Lock(sketchID)
	defer unlock()
	next, err := s.moveNodeLocked(ctx, userID, sketchID, nodeID, targetID)
	if err != nil {
		logFailure("move node", sketchID, err)
		return MoveResult{}, err
	}
	return MoveResult{RootNode: next.Render()}, nil
}

func (s *Service) moveNodeLocked(ctx context.Context, userID, sketchID, nodeID, targetID string) (*tree.Tree, error) {
	if targetID == "" {
		return nil, apperrors.FieldValidation("target", apperrors.FieldMissing, descTargetMissing)
	}
	cur, err := s.current(ctx, sketchID)
	if err != nil {
		return nil, err
	}
	if !cur.Has(nodeID) {
		return nil, apperrors.FieldValidation("sourceNodeId", apperrors.FieldInvalid, descNoSuchNode)
	}
	if nodeID == node.RootID {
		return nil, apperrors.FieldValidation("sourceNodeId", apperrors.FieldInvalid, descRootMove)
	}
	if !cur.Has(targetID) {
		return nil, apperrors.FieldValidation("targetNodeId", apperrors.FieldInvalid, descNoSuchNode)
	}
	if targetID == nodeID || cur.IsDescendant(nodeID, targetID) {
		return nil, apperrors.FieldValidation("target", apperrors.FieldInvalid, descCycle)
	}
	if cur.Depth(targetID)+1+cur.Height(nodeID) > s.cfg.MaxDepth {
		return nil, apperrors.FieldValidation("target", apperrors.FieldInvalid, descMaxDepth)
	}
	return s.commit(ctx, cur, event.New(sketchID, userID, event.Move{NodeID: nodeID, TargetID: targetID}))
}
