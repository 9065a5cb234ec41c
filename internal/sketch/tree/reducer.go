package tree

import (
	"apisketch/internal/apperrors"
	"apisketch/internal/sketch/event"
	"apisketch/internal/sketch/node"
)

// Replay folds events in order into a fresh tree.
func Replay(events []event.Event) (*Tree, error) {
	t := New()
	for _, evt := range events {
		if err := t.Apply(evt); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Apply advances the tree by one event. A failed apply may leave t partially
// mutated; callers apply to a clone when they need all-or-nothing.
func (t *Tree) Apply(evt event.Event) error {
	var err error
	switch p := evt.Payload.(type) {
	case event.DefineRoot:
		t.defineRoot()
	case event.Add:
		err = t.add(p)
	case event.Update:
		err = t.update(p)
	case event.Delete:
		err = t.remove(p)
	case event.Move:
		err = t.move(p)
	default:
		err = apperrors.Invariantf("seq %d: unsupported event type %q", evt.Seq, evt.Type)
	}
	if err != nil {
		return err
	}
	if evt.Seq > t.Seq {
		t.Seq = evt.Seq
	}
	return nil
}

func (t *Tree) defineRoot() {
	root := node.NewRoot()
	t.index = map[string]*node.Node{node.RootID: &root}
	t.parent = map[string]string{}
}

func (t *Tree) add(p event.Add) error {
	parent, ok := t.index[p.ParentID]
	if !ok {
		return apperrors.Invariantf("add: parent %q does not exist", p.ParentID)
	}
	if _, dup := t.index[p.ID]; dup {
		return apperrors.Invariantf("add: node %q already exists", p.ID)
	}
	n := node.NewDefault(p.ID, p.Name, p.Fullpath)
	t.index[p.ID] = &n
	t.parent[p.ID] = p.ParentID
	parent.Children = append(parent.Children, p.ID)
	return nil
}

func (t *Tree) update(p event.Update) error {
	n, ok := t.index[p.NodeID]
	if !ok {
		return apperrors.Invariantf("update: node %q does not exist", p.NodeID)
	}
	if p.Name != nil {
		n.Name = *p.Name
	}
	if p.Fullpath != nil {
		n.Fullpath = *p.Fullpath
	}
	if len(p.Data) > 0 && n.Data == nil {
		n.Data = map[string]node.MethodConfig{}
	}
	for verb, patch := range p.Data {
		n.Data[verb] = node.MergeMethodConfig(n.Data[verb], patch)
	}
	return nil
}

func (t *Tree) remove(p event.Delete) error {
	if p.NodeID == node.RootID {
		return apperrors.Invariantf("delete: the root node cannot be deleted")
	}
	if !t.Has(p.NodeID) {
		return apperrors.Invariantf("delete: node %q does not exist", p.NodeID)
	}
	if parentID, ok := t.parent[p.NodeID]; ok {
		if parent, ok := t.index[parentID]; ok {
			parent.RemoveChild(p.NodeID)
		}
	}
	for _, id := range t.Subtree(p.NodeID) {
		delete(t.index, id)
		delete(t.parent, id)
	}
	return nil
}

func (t *Tree) move(p event.Move) error {
	if p.NodeID == node.RootID {
		return apperrors.Invariantf("move: the root node cannot be moved")
	}
	moved, ok := t.index[p.NodeID]
	if !ok {
		return apperrors.Invariantf("move: node %q does not exist", p.NodeID)
	}
	target, ok := t.index[p.TargetID]
	if !ok {
		return apperrors.Invariantf("move: target %q does not exist", p.TargetID)
	}
	if p.TargetID == p.NodeID || t.IsDescendant(p.NodeID, p.TargetID) {
		return apperrors.Invariantf("move: %q into its own subtree", p.NodeID)
	}
	if oldParentID, ok := t.parent[p.NodeID]; ok {
		if oldParent, ok := t.index[oldParentID]; ok {
			oldParent.RemoveChild(p.NodeID)
		}
	}
	target.Children = append(target.Children, p.NodeID)
	t.parent[p.NodeID] = p.TargetID

	moved.Fullpath = node.JoinPath(target.Fullpath, moved.Name)
	t.recomputePaths(p.NodeID)
	return nil
}

// recomputePaths rewrites the fullpath of every descendant of id from its
// parent's (already updated) fullpath.
func (t *Tree) recomputePaths(id string) {
	for _, cur := range t.Subtree(id) {
		n := t.index[cur]
		for _, c := range n.Children {
			if child, ok := t.index[c]; ok {
				child.Fullpath = node.JoinPath(n.Fullpath, child.Name)
			}
		}
	}
}
