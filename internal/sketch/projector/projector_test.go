package projector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apisketch/internal/apperrors"
	"apisketch/internal/cache/projection"
	"apisketch/internal/gateway/repository/eventlog"
	"apisketch/internal/sketch/event"
	"apisketch/internal/sketch/node"
)

type countingLog struct {
	eventlog.Log
	reads atomic.Int32
	err   error
}

func (c *countingLog) ReadAll(ctx context.Context, sketchID string) ([]event.Event, error) {
	c.reads.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.Log.ReadAll(ctx, sketchID)
}

func seed(t *testing.T, l eventlog.Log, sketchID string, payloads ...event.Payload) {
	t.Helper()
	for _, p := range payloads {
		_, err := l.Append(context.Background(), event.New(sketchID, "user-1", p))
		require.NoError(t, err)
	}
}

func TestProjectReplaysOnceThenServesCache(t *testing.T) {
	ctx := context.Background()
	l := &countingLog{Log: eventlog.NewMemoryStore()}
	seed(t, l, "s1",
		event.DefineRoot{RootNode: node.NewRoot()},
		event.Add{ParentID: node.RootID, ID: "A", Name: "users", Fullpath: "/users"},
	)
	p := New(l, projection.New())

	first, err := p.Project(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, first.Has("A"))
	assert.Equal(t, int64(2), first.Seq)

	_, err = p.Project(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), l.reads.Load())
}

func TestProjectReturnsPrivateCopy(t *testing.T) {
	ctx := context.Background()
	l := eventlog.NewMemoryStore()
	seed(t, l, "s1",
		event.DefineRoot{RootNode: node.NewRoot()},
		event.Add{ParentID: node.RootID, ID: "A", Name: "a", Fullpath: "/a"},
	)
	p := New(l, nil)

	got, err := p.Project(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, got.Apply(event.New("s1", "u", event.Delete{NodeID: "A"})))

	again, err := p.Project(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, again.Has("A"))
}

func TestInvalidatePicksUpOutOfBandWrites(t *testing.T) {
	ctx := context.Background()
	l := &countingLog{Log: eventlog.NewMemoryStore()}
	seed(t, l, "s1", event.DefineRoot{RootNode: node.NewRoot()})
	p := New(l, projection.New())

	_, err := p.Project(ctx, "s1")
	require.NoError(t, err)

	seed(t, l, "s1", event.Add{ParentID: node.RootID, ID: "B", Name: "b", Fullpath: "/b"})
	stale, err := p.Project(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, stale.Has("B"))

	p.Invalidate("s1")
	fresh, err := p.Project(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, fresh.Has("B"))

	p.ResetAll()
	_, err = p.Project(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), l.reads.Load())
}

func TestConcurrentColdLoadsReplayOnce(t *testing.T) {
	ctx := context.Background()
	l := &countingLog{Log: eventlog.NewMemoryStore()}
	seed(t, l, "s1", event.DefineRoot{RootNode: node.NewRoot()})
	p := New(l, projection.New())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Project(ctx, "s1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), l.reads.Load())
}

func TestProjectSurfacesStorageFailure(t *testing.T) {
	l := &countingLog{Log: eventlog.NewMemoryStore(), err: apperrors.StorageUnavailable(errors.New("down"))}
	p := New(l, projection.New())

	_, err := p.Project(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeStorageUnavailable))
	assert.Equal(t, 0, p.Cache.Len())
}

func TestProjectAbortsOnReducerViolation(t *testing.T) {
	l := eventlog.NewMemoryStore()
	seed(t, l, "s1",
		event.DefineRoot{RootNode: node.NewRoot()},
		event.Delete{NodeID: "missing"},
	)
	p := New(l, projection.New())

	_, err := p.Project(context.Background(), "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvariant)
	assert.Equal(t, 0, p.Cache.Len())
}

func TestEmptyLogProjectsEmptyTree(t *testing.T) {
	p := New(eventlog.NewMemoryStore(), projection.New())
	got, err := p.Project(context.Background(), "nothing")
	require.NoError(t, err)
	assert.False(t, got.HasRoot())
	assert.Equal(t, 0, got.Len())
}
