package sketch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apisketch/internal/gateway/repository/eventlog"
	"apisketch/internal/sketch/event"
	"apisketch/internal/sketch/node"
)

func TestLogOwnership(t *testing.T) {
	ctx := context.Background()
	l := eventlog.NewMemoryStore()
	o := NewLogOwnership(l, 16, time.Minute)

	ok, err := o.OwnsSketch(ctx, "alice", "s1")
	require.NoError(t, err)
	assert.True(t, ok, "empty sketch is open for creation")

	_, err = l.Append(ctx, event.New("s1", "alice", event.DefineRoot{RootNode: node.NewRoot()}))
	require.NoError(t, err)

	ok, err = o.OwnsSketch(ctx, "alice", "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = o.OwnsSketch(ctx, "bob", "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = o.OwnsSketch(ctx, "", "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogOwnershipCachesOwner(t *testing.T) {
	ctx := context.Background()
	l := eventlog.NewMemoryStore()
	o := NewLogOwnership(l, 16, time.Minute)
	_, err := l.Append(ctx, event.New("s1", "alice", event.DefineRoot{}))
	require.NoError(t, err)

	ok, err := o.OwnsSketch(ctx, "alice", "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Clear(ctx, "s1"))
	ok, err = o.OwnsSketch(ctx, "bob", "s1")
	require.NoError(t, err)
	assert.False(t, ok, "cached owner still applies")

	o.Forget()
	ok, err = o.OwnsSketch(ctx, "bob", "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllowAll(t *testing.T) {
	ok, err := AllowAll{}.OwnsSketch(context.Background(), "", "")
	require.NoError(t, err)
	assert.True(t, ok)
}
