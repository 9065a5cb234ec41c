package projection

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apisketch/internal/sketch/tree"
)

func TestCacheGetPutInvalidate(t *testing.T) {
	c := New()
	_, ok := c.Get("s1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	tr := tree.New()
	c.Put("s1", tr)
	got, ok := c.Get("s1")
	require.True(t, ok)
	assert.Same(t, tr, got)
	assert.Equal(t, 1, c.Len())

	c.Invalidate("s1")
	_, ok = c.Get("s1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheResetAll(t *testing.T) {
	c := New()
	c.Put("s1", tree.New())
	c.Put("s2", tree.New())
	assert.Equal(t, 2, c.Len())

	c.ResetAll()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("s2")
	assert.False(t, ok)
}

func TestLockSerializesPerSketch(t *testing.T) {
	c := New()
	unlock := c.Lock("s1")

	acquired := make(chan struct{})
	go func() {
		u := c.Lock("s1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestLockDoesNotBlockOtherSketches(t *testing.T) {
	c := New()
	unlock := c.Lock("s1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		c.Lock("s2")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another sketch blocked")
	}
}

func TestConcurrentCounterUnderLock(t *testing.T) {
	c := New()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := c.Lock("s1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	c.Lock("s")()
	c.Put("s", tree.New())
	c.Invalidate("s")
	c.ResetAll()
	_, ok := c.Get("s")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestResetAllWaitsForInFlightWork(t *testing.T) {
	c := New()
	c.Put("s1", tree.New())

	unlock := c.Lock("s1")
	done := make(chan struct{})
	go func() {
		c.ResetAll()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("reset finished while s1 was locked")
	case <-time.After(20 * time.Millisecond):
	}
	c.Put("s1", tree.New())
	unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reset never finished")
	}
	_, ok := c.Get("s1")
	assert.False(t, ok)
}
