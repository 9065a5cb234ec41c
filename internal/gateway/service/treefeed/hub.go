// Package treefeed fans out tree changes to live subscribers of a sketch.
package treefeed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"apisketch/internal/sketch/tree"
)

const defaultBuffer = 8

// Update is one committed change and the tree it produced.
type Update struct {
	SketchID  string            `json:"sketchId"`
	EventType string            `json:"eventType"`
	Seq       int64             `json:"seq"`
	RootNode  tree.RenderedNode `json:"rootNode"`
}

type subscriber struct {
	out chan Update
}

// Hub delivers updates without blocking the publisher. A slow subscriber
// loses its oldest pending update, never the newest. Updates whose Seq does
// not advance past the last one published for the sketch are dropped.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	last   map[string]int64
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*subscriber]struct{}),
		last:   make(map[string]int64),
		buffer: buffer,
	}
}

// Subscribe streams updates for sketchID until ctx is canceled or Reset is
// called, after which the channel is closed.
func (h *Hub) Subscribe(ctx context.Context, sketchID string) (<-chan Update, error) {
	sketchID = strings.TrimSpace(sketchID)
	if sketchID == "" {
		return nil, fmt.Errorf("sketch id is required")
	}
	sub := &subscriber{out: make(chan Update, h.buffer)}

	h.mu.Lock()
	if h.subs[sketchID] == nil {
		h.subs[sketchID] = make(map[*subscriber]struct{})
	}
	h.subs[sketchID][sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(sketchID, sub)
	}()
	return sub.out, nil
}

func (h *Hub) remove(sketchID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sketchID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.out)
	if len(set) == 0 {
		delete(h.subs, sketchID)
	}
}

// Publish hands u to every subscriber of u.SketchID.
func (h *Hub) Publish(u Update) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if u.Seq <= h.last[u.SketchID] {
		return
	}
	h.last[u.SketchID] = u.Seq
	for sub := range h.subs[u.SketchID] {
		push(sub.out, u)
	}
}

// Reset closes every subscription and forgets the published sequence of
// every sketch.
func (h *Hub) Reset() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.last)
	for sketchID, set := range h.subs {
		for sub := range set {
			close(sub.out)
		}
		delete(h.subs, sketchID)
	}
}

// Subscribers reports the live subscription count for sketchID.
func (h *Hub) Subscribers(sketchID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sketchID])
}

func push(out chan Update, u Update) {
	select {
	case out <- u:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- u:
	default:
	}
}
