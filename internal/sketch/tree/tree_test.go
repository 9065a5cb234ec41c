package tree

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apisketch/internal/apperrors"
	"apisketch/internal/sketch/event"
	"apisketch/internal/sketch/node"
)

type logBuilder struct {
	events []event.Event
}

func newLog() *logBuilder {
	b := &logBuilder{}
	b.push(event.DefineRoot{RootNode: node.NewRoot()})
	return b
}

func (b *logBuilder) push(p event.Payload) *logBuilder {
	evt := event.New("sketch-1", "user-1", p)
	evt.Seq = int64(len(b.events) + 1)
	b.events = append(b.events, evt)
	return b
}

func (b *logBuilder) add(parent, id, name string) *logBuilder {
	return b.push(event.Add{ParentID: parent, ID: id, Name: name, Fullpath: "/" + name})
}

func replay(t *testing.T, b *logBuilder) *Tree {
	t.Helper()
	tr, err := Replay(b.events)
	require.NoError(t, err)
	return tr
}

// root -> A -> B -> D -> {E, F -> G}; root -> C
func deletionFixture() *logBuilder {
	return newLog().
		add(node.RootID, "A", "a").
		add(node.RootID, "C", "c").
		add("A", "B", "b").
		add("B", "D", "d").
		add("D", "E", "e").
		add("D", "F", "f").
		add("F", "G", "g")
}

func TestReplayAddBuildsChildrenInOrder(t *testing.T) {
	tr := replay(t, deletionFixture())

	root, ok := tr.Node(node.RootID)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "C"}, root.Children)
	d, _ := tr.Node("D")
	assert.Equal(t, []string{"E", "F"}, d.Children)
	assert.Equal(t, 8, tr.Len())
	assert.Equal(t, int64(8), tr.Seq)

	parent, ok := tr.Parent("G")
	assert.True(t, ok)
	assert.Equal(t, "F", parent)
	assert.Equal(t, 5, tr.Depth("G"))
	assert.Equal(t, 4, tr.Height("A"))
}

func TestDeleteCascades(t *testing.T) {
	b := deletionFixture().push(event.Delete{NodeID: "A"})
	tr := replay(t, b)

	for _, id := range []string{"A", "B", "D", "E", "F", "G"} {
		assert.False(t, tr.Has(id), id)
		_, found := tr.Render().Find(id)
		assert.False(t, found, id)
	}
	assert.True(t, tr.Has("C"))
	root, _ := tr.Node(node.RootID)
	assert.Equal(t, []string{"C"}, root.Children)
	assert.Equal(t, 2, tr.Len())
}

func TestMoveReparentsAndRecomputesPaths(t *testing.T) {
	// root -> A -> B -> C, root -> D
	b := newLog().
		add(node.RootID, "A", "a").
		add("A", "B", "b").
		add("B", "C", "c").
		add("C", "X", "x").
		add(node.RootID, "D", "d").
		push(event.Move{NodeID: "C", TargetID: "D"})
	tr := replay(t, b)

	d, _ := tr.Node("D")
	assert.Equal(t, []string{"C"}, d.Children)
	bNode, _ := tr.Node("B")
	assert.Empty(t, bNode.Children)
	a, _ := tr.Node("A")
	assert.Equal(t, []string{"B"}, a.Children)

	c, _ := tr.Node("C")
	assert.Equal(t, "/d/c", c.Fullpath)
	x, _ := tr.Node("X")
	assert.Equal(t, "/d/c/x", x.Fullpath)
	parent, _ := tr.Parent("C")
	assert.Equal(t, "D", parent)
}

func TestMoveIntoOwnSubtreeIsRejected(t *testing.T) {
	b := newLog().
		add(node.RootID, "A", "a").
		add("A", "B", "b").
		push(event.Move{NodeID: "A", TargetID: "B"})

	_, err := Replay(b.events)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvariant)
}

func TestReducerViolationsAbortReplay(t *testing.T) {
	cases := map[string]event.Payload{
		"add to missing parent": event.Add{ParentID: "nope", ID: "n", Name: "n"},
		"update missing node":   event.Update{NodeID: "nope", Name: node.String("x")},
		"delete missing node":   event.Delete{NodeID: "nope"},
		"delete root":           event.Delete{NodeID: node.RootID},
		"move missing node":     event.Move{NodeID: "nope", TargetID: node.RootID},
		"move root":             event.Move{NodeID: node.RootID, TargetID: "A"},
		"duplicate add":         event.Add{ParentID: node.RootID, ID: "A", Name: "a"},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			b := newLog().add(node.RootID, "A", "a").push(p)
			_, err := Replay(b.events)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeGeneric, apperrors.CodeOf(err))
		})
	}
}

func TestUpdateMergesOnlyMentionedVerbs(t *testing.T) {
	b := newLog().
		add(node.RootID, "A", "a").
		push(event.Update{NodeID: "A", Data: map[string]node.MethodPatch{
			node.VerbGet: {Response: &node.ResponsePatch{Body: node.String(`{"x":1}`)}},
		}}).
		push(event.Update{NodeID: "A", Name: node.String("users"), Data: map[string]node.MethodPatch{
			node.VerbGet: {Enabled: node.Bool(true)},
		}})
	tr := replay(t, b)

	a, _ := tr.Node("A")
	assert.Equal(t, "users", a.Name)
	assert.Equal(t, "/a", a.Fullpath)
	assert.True(t, a.Data[node.VerbGet].Enabled)
	assert.Equal(t, `{"x":1}`, a.Data[node.VerbGet].Response.Body)
	assert.Equal(t, node.DefaultData()[node.VerbPost], a.Data[node.VerbPost])
}

func TestDefineRootReplacesTree(t *testing.T) {
	b := newLog().add(node.RootID, "A", "a").push(event.DefineRoot{})
	tr := replay(t, b)

	assert.Equal(t, 1, tr.Len())
	assert.False(t, tr.Has("A"))
}

func TestReplayIsDeterministic(t *testing.T) {
	b := randomLog(rand.New(rand.NewSource(7)), 300)

	first := replay(t, b)
	second := replay(t, b)
	assert.True(t, first.Equal(second))

	c1, err := first.Canonical()
	require.NoError(t, err)
	c2, err := second.Canonical()
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestRandomMovesNeverCreateCycles(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		tr := replay(t, randomLog(rand.New(rand.NewSource(seed)), 200))
		assertWellFormed(t, tr)
	}
}

func TestIncrementalApplyOnCloneMatchesReplay(t *testing.T) {
	b := randomLog(rand.New(rand.NewSource(42)), 150)

	incremental := New()
	for _, evt := range b.events {
		next := incremental.Clone()
		require.NoError(t, next.Apply(evt))
		incremental = next
	}
	assert.True(t, incremental.Equal(replay(t, b)))
}

func TestCloneDoesNotAlias(t *testing.T) {
	tr := replay(t, deletionFixture())
	c := tr.Clone()
	require.NoError(t, c.Apply(event.New("sketch-1", "u", event.Delete{NodeID: "A"})))

	assert.True(t, tr.Has("A"))
	assert.False(t, c.Has("A"))
	assert.False(t, tr.Equal(c))
}

// randomLog builds a valid log of adds, moves, updates and deletes by
// consulting a shadow projection before each step.
func randomLog(r *rand.Rand, steps int) *logBuilder {
	b := newLog()
	shadow, _ := Replay(b.events)
	ids := []string{node.RootID}
	next := 0
	pick := func() string { return ids[r.Intn(len(ids))] }

	for i := 0; i < steps; i++ {
		var p event.Payload
		switch op := r.Intn(10); {
		case op < 5:
			next++
			id := fmt.Sprintf("n%d", next)
			parent, _ := shadow.Node(pick())
			p = event.Add{ParentID: parent.ID, ID: id, Name: id, Fullpath: node.JoinPath(parent.Fullpath, id)}
		case op < 7:
			src, dst := pick(), pick()
			if src == node.RootID || src == dst || shadow.IsDescendant(src, dst) {
				continue
			}
			p = event.Move{NodeID: src, TargetID: dst}
		case op < 9:
			p = event.Update{NodeID: pick(), Data: map[string]node.MethodPatch{
				node.Verbs[r.Intn(len(node.Verbs))]: {Enabled: node.Bool(r.Intn(2) == 0)},
			}}
		default:
			victim := pick()
			if victim == node.RootID {
				continue
			}
			p = event.Delete{NodeID: victim}
		}
		b.push(p)
		if err := shadow.Apply(b.events[len(b.events)-1]); err != nil {
			panic(err)
		}
		ids = shadow.Subtree(node.RootID)
	}
	return b
}

func assertWellFormed(t *testing.T, tr *Tree) {
	t.Helper()
	reachable := tr.Subtree(node.RootID)
	assert.Len(t, reachable, tr.Len(), "every indexed node is reachable")

	seen := map[string]int{}
	for _, id := range reachable {
		n, ok := tr.Node(id)
		require.True(t, ok)
		for _, c := range n.Children {
			seen[c]++
			require.True(t, tr.Has(c), "dangling child %s", c)
		}
		assert.False(t, tr.IsDescendant(id, id), "%s is its own ancestor", id)
		if id != node.RootID {
			p, _ := tr.Parent(id)
			parent, _ := tr.Node(p)
			assert.Equal(t, node.JoinPath(parent.Fullpath, n.Name), n.Fullpath)
		}
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "%s has more than one parent", id)
	}
}
