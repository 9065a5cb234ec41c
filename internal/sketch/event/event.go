// Package event defines the closed set of sketch tree events and their
// payload schemas.
package event

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"apisketch/internal/apperrors"
	"apisketch/internal/sketch/node"
)

// Type identifies the kind of tree mutation an event records.
type Type string

const (
	TypeDefineRoot Type = "treenode_defineroot"
	TypeAdd        Type = "treenode_add"
	TypeUpdate     Type = "treenode_update"
	TypeDelete     Type = "treenode_delete"
	TypeMove       Type = "treenode_move"
)

// ErrInvalidEvent is wrapped by every validation failure.
var ErrInvalidEvent = errors.New("invalid event")

// IsValid reports whether t is one of the known event types.
func (t Type) IsValid() bool {
	switch t {
	case TypeDefineRoot, TypeAdd, TypeUpdate, TypeDelete, TypeMove:
		return true
	}
	return false
}

// Payload is implemented only by the variant types in this package.
type Payload interface {
	Type() Type
	validate() error
}

// Event is one immutable record in a sketch's log.
type Event struct {
	// Seq is the append position within the sketch, assigned by the log.
	Seq       int64
	SketchID  string
	UserID    string
	Type      Type
	Payload   Payload
	CreatedAt time.Time
}

// New builds an unsequenced event for payload.
func New(sketchID, userID string, payload Payload) Event {
	evt := Event{SketchID: sketchID, UserID: userID, Payload: payload}
	if payload != nil {
		evt.Type = payload.Type()
	}
	return evt
}

// Validate checks the envelope and the payload schema for the event's type.
func (e Event) Validate() error {
	if strings.TrimSpace(e.SketchID) == "" {
		return invalid("sketch id is required")
	}
	if !e.Type.IsValid() {
		return invalid("unknown event type %q", e.Type)
	}
	if e.Payload == nil {
		return invalid("%s: payload is required", e.Type)
	}
	if e.Payload.Type() != e.Type {
		return invalid("payload %s does not match event type %s", e.Payload.Type(), e.Type)
	}
	if err := e.Payload.validate(); err != nil {
		return invalid("%s: %v", e.Type, err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return apperrors.Generic(fmt.Sprintf(format, args...), ErrInvalidEvent)
}

// DefineRoot creates (or replaces) the sketch root.
type DefineRoot struct {
	RootNode node.Node `json:"rootNode"`
}

func (DefineRoot) Type() Type { return TypeDefineRoot }

func (DefineRoot) validate() error { return nil }

// Add inserts a default node under ParentID.
type Add struct {
	ParentID string `json:"parentId"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Fullpath string `json:"fullpath"`
}

func (Add) Type() Type { return TypeAdd }

func (p Add) validate() error {
	if p.ParentID == "" {
		return errors.New("parentId is required")
	}
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.ID == node.RootID {
		return errors.New("id collides with the root id")
	}
	return nil
}

// Update sets name/fullpath and merges per-verb configuration.
type Update struct {
	NodeID   string                      `json:"nodeId"`
	Name     *string                     `json:"name,omitempty"`
	Fullpath *string                     `json:"fullpath,omitempty"`
	Data     map[string]node.MethodPatch `json:"data,omitempty"`
}

func (Update) Type() Type { return TypeUpdate }

func (p Update) validate() error {
	if p.NodeID == "" {
		return errors.New("nodeId is required")
	}
	for verb := range p.Data {
		if !node.IsVerb(verb) {
			return fmt.Errorf("unsupported verb %q", verb)
		}
	}
	return nil
}

// Delete removes a node and its whole subtree.
type Delete struct {
	NodeID string `json:"nodeId"`
}

func (Delete) Type() Type { return TypeDelete }

func (p Delete) validate() error {
	if p.NodeID == "" {
		return errors.New("nodeId is required")
	}
	return nil
}

// Move reparents NodeID under TargetID.
type Move struct {
	NodeID   string `json:"nodeId"`
	TargetID string `json:"targetId"`
}

func (Move) Type() Type { return TypeMove }

func (p Move) validate() error {
	if p.NodeID == "" {
		return errors.New("nodeId is required")
	}
	if p.TargetID == "" {
		return errors.New("targetId is required")
	}
	if p.NodeID == p.TargetID {
		return errors.New("node cannot be moved under itself")
	}
	return nil
}
