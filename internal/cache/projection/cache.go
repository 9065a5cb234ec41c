// Package projection caches one materialized tree per sketch and serializes
// work on each sketch.
package projection

import (
	"strings"
	"sync"
	"sync/atomic"

	"apisketch/internal/sketch/tree"
)

type entry struct {
	mu   sync.Mutex
	tree atomic.Pointer[tree.Tree]
}

// Cache maps sketch ids to their projected trees. Entries are created lazily
// and never evicted; Invalidate and ResetAll only drop the trees.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func New() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

func (c *Cache) entry(sketchID string) *entry {
	key := strings.TrimSpace(sketchID)
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.entries[key]; ok {
		return e
	}
	e = &entry{}
	c.entries[key] = e
	return e
}

// Lock blocks until the caller has exclusive use of sketchID and returns the
// matching unlock.
func (c *Cache) Lock(sketchID string) (unlock func()) {
	if c == nil {
		return func() {}
	}
	e := c.entry(sketchID)
	e.mu.Lock()
	return e.mu.Unlock
}

// Get returns the cached tree. The tree is shared; callers must hold the
// sketch lock to read it and must not mutate it.
func (c *Cache) Get(sketchID string) (*tree.Tree, bool) {
	if c == nil {
		return nil, false
	}
	t := c.entry(sketchID).tree.Load()
	return t, t != nil
}

// Put replaces the cached tree. Callers hold the sketch lock.
func (c *Cache) Put(sketchID string, t *tree.Tree) {
	if c == nil || t == nil {
		return
	}
	c.entry(sketchID).tree.Store(t)
}

// Invalidate drops the cached tree so the next projection replays the log.
func (c *Cache) Invalidate(sketchID string) {
	if c == nil {
		return
	}
	c.entry(sketchID).tree.Store(nil)
}

// ResetAll drops every cached tree. It waits for each sketch's lock, so a
// command already in flight cannot put a tree back after the reset.
func (c *Cache) ResetAll() {
	if c == nil {
		return
	}
	c.mu.RLock()
	entries := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.RUnlock()
	for _, e := range entries {
		e.mu.Lock()
		e.tree.Store(nil)
		e.mu.Unlock()
	}
}

// Len reports how many sketches currently have a cached tree.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.entries {
		if e.tree.Load() != nil {
			n++
		}
	}
	return n
}
