// Package tree is the in-memory projection of a sketch: a flat id index of
// nodes with children stored as id lists.
package tree

import (
	"encoding/json"
	"reflect"

	"apisketch/internal/sketch/node"
)

// Tree is the projection of one sketch's event log. The index owns every
// node; parent links are kept alongside so moves and deletes do not scan.
type Tree struct {
	index  map[string]*node.Node
	parent map[string]string
	// Seq is the sequence of the last event applied.
	Seq int64
}

// New returns an empty tree with no root defined.
func New() *Tree {
	return &Tree{
		index:  make(map[string]*node.Node),
		parent: make(map[string]string),
	}
}

// HasRoot reports whether a treenode_defineroot event has been applied.
func (t *Tree) HasRoot() bool {
	_, ok := t.index[node.RootID]
	return ok
}

// Has reports whether id is in the index.
func (t *Tree) Has(id string) bool {
	_, ok := t.index[id]
	return ok
}

// Len is the number of nodes including the root.
func (t *Tree) Len() int {
	return len(t.index)
}

// Node returns a copy of the node with the given id.
func (t *Tree) Node(id string) (node.Node, bool) {
	n, ok := t.index[id]
	if !ok {
		return node.Node{}, false
	}
	return n.Clone(), true
}

// Parent returns the parent id of id. The root has no parent.
func (t *Tree) Parent(id string) (string, bool) {
	p, ok := t.parent[id]
	return p, ok
}

// IsDescendant reports whether id sits strictly below ancestor.
func (t *Tree) IsDescendant(ancestor, id string) bool {
	cur := id
	for steps := 0; steps <= len(t.index); steps++ {
		p, ok := t.parent[cur]
		if !ok {
			return false
		}
		if p == ancestor {
			return true
		}
		cur = p
	}
	return false
}

// Depth is the number of edges between the root and id. It returns -1 for
// unknown ids.
func (t *Tree) Depth(id string) int {
	if !t.Has(id) {
		return -1
	}
	depth := 0
	cur := id
	for steps := 0; steps <= len(t.index); steps++ {
		p, ok := t.parent[cur]
		if !ok {
			return depth
		}
		depth++
		cur = p
	}
	return depth
}

// Height is the number of edges on the longest downward path from id.
func (t *Tree) Height(id string) int {
	type item struct {
		id    string
		level int
	}
	if !t.Has(id) {
		return -1
	}
	height := 0
	queue := []item{{id: id}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.level > height {
			height = cur.level
		}
		for _, c := range t.index[cur.id].Children {
			if _, ok := t.index[c]; ok {
				queue = append(queue, item{id: c, level: cur.level + 1})
			}
		}
	}
	return height
}

// Subtree returns id followed by every node reachable from it, breadth first.
func (t *Tree) Subtree(id string) []string {
	if !t.Has(id) {
		return nil
	}
	out := []string{id}
	for i := 0; i < len(out); i++ {
		for _, c := range t.index[out[i]].Children {
			if _, ok := t.index[c]; ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// Clone returns a deep copy that shares nothing with t.
func (t *Tree) Clone() *Tree {
	out := &Tree{
		index:  make(map[string]*node.Node, len(t.index)),
		parent: make(map[string]string, len(t.parent)),
		Seq:    t.Seq,
	}
	for id, n := range t.index {
		c := n.Clone()
		out.index[id] = &c
	}
	for id, p := range t.parent {
		out.parent[id] = p
	}
	return out
}

// Equal compares structure and content, ignoring Seq.
func (t *Tree) Equal(other *Tree) bool {
	if t == nil || other == nil {
		return t == other
	}
	return reflect.DeepEqual(t.index, other.index) && reflect.DeepEqual(t.parent, other.parent)
}

// RenderedNode is the nested view of a node handed to callers.
type RenderedNode struct {
	ID       string                       `json:"id"`
	Name     string                       `json:"name"`
	Fullpath string                       `json:"fullpath"`
	Data     map[string]node.MethodConfig `json:"data"`
	Children []RenderedNode               `json:"children"`
}

// Render returns the nested view rooted at the sketch root.
func (t *Tree) Render() RenderedNode {
	return t.RenderFrom(node.RootID)
}

// RenderFrom returns the nested view rooted at id.
func (t *Tree) RenderFrom(id string) RenderedNode {
	n, ok := t.index[id]
	if !ok {
		return RenderedNode{}
	}
	c := n.Clone()
	out := RenderedNode{
		ID:       c.ID,
		Name:     c.Name,
		Fullpath: c.Fullpath,
		Data:     c.Data,
		Children: make([]RenderedNode, 0, len(c.Children)),
	}
	for _, child := range c.Children {
		out.Children = append(out.Children, t.RenderFrom(child))
	}
	return out
}

// Canonical is the deterministic JSON encoding of the rendered tree.
func (t *Tree) Canonical() ([]byte, error) {
	return json.Marshal(t.Render())
}

// Find returns the rendered node with the given id, searching depth first.
func (r RenderedNode) Find(id string) (RenderedNode, bool) {
	if r.ID == id {
		return r, true
	}
	for _, c := range r.Children {
		if found, ok := c.Find(id); ok {
			return found, true
		}
	}
	return RenderedNode{}, false
}
