package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"apisketch/internal/apperrors"
	"apisketch/internal/gateway/service/treefeed"
	"apisketch/internal/sketch/tree"
)

const (
	treeWSWriteWait = 10 * time.Second
	treeWSPongWait  = 60 * time.Second
	treeWSPingEvery = (treeWSPongWait * 9) / 10
)

var treeWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Feed is the subscription side of the tree change feed.
type Feed interface {
	Subscribe(ctx context.Context, sketchID string) (<-chan treefeed.Update, error)
}

type treeWSOutbound struct {
	Type      string             `json:"type"`
	SketchID  string             `json:"sketchId,omitempty"`
	EventType string             `json:"eventType,omitempty"`
	Seq       int64              `json:"seq,omitempty"`
	RootNode  *tree.RenderedNode `json:"rootNode,omitempty"`
	Code      string             `json:"code,omitempty"`
	Message   string             `json:"message,omitempty"`
}

type TreeStreamHandler struct {
	sketches *SketchHandler
	feed     Feed
}

func NewTreeStreamHandler(sketches *SketchHandler, feed Feed) *TreeStreamHandler {
	return &TreeStreamHandler{sketches: sketches, feed: feed}
}

// HandleTreeWS sends the current tree, then every committed change, until the
// client leaves or the feed is reset.
func (h *TreeStreamHandler) HandleTreeWS(w http.ResponseWriter, r *http.Request) {
	_, sketchID, ok := h.sketches.authorize(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before reading the tree so no change falls in between.
	updates, err := h.feed.Subscribe(ctx, sketchID)
	if err != nil {
		writeError(w, apperrors.Generic("subscribe", err))
		return
	}
	snap, err := h.sketches.sketches.Snapshot(ctx, sketchID)
	if err != nil {
		writeError(w, err)
		return
	}
	root, sent := snap.Render(), snap.Seq

	conn, err := treeWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(treeWSPongWait)); err != nil {
		log.Printf("tree ws: set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(treeWSPongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		// Closing unblocks the read loop below once writing stops.
		defer conn.Close()
		defer cancel()
		ticker := time.NewTicker(treeWSPingEvery)
		defer ticker.Stop()

		write := func(out treeWSOutbound) bool {
			if err := conn.SetWriteDeadline(time.Now().Add(treeWSWriteWait)); err != nil {
				return false
			}
			return conn.WriteJSON(out) == nil
		}
		if !write(treeWSOutbound{Type: "tree", SketchID: sketchID, Seq: sent, RootNode: &root}) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed reset"),
						time.Now().Add(treeWSWriteWait))
					return
				}
				// Already contained in an earlier frame.
				if u.Seq <= sent {
					continue
				}
				sent = u.Seq
				if !write(treeWSOutbound{
					Type:      "update",
					SketchID:  u.SketchID,
					EventType: u.EventType,
					Seq:       u.Seq,
					RootNode:  &u.RootNode,
				}) {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(treeWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Inbound frames are ignored; reading keeps pong and close handling alive.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) && ctx.Err() == nil {
				log.Printf("tree ws: sketch=%s read failed: %v", sketchID, err)
			}
			cancel()
			<-writerDone
			return
		}
	}
}
