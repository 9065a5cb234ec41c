// Package node holds the value types for sketch tree nodes and their
// per-method mock configuration.
package node

import (
	"strings"
)

// RootID is the fixed id of every sketch's root node.
const RootID = "root-node"

// HTTP verbs tracked on every node, in display order.
const (
	VerbGet    = "get"
	VerbPut    = "put"
	VerbPost   = "post"
	VerbPatch  = "patch"
	VerbDelete = "delete"
)

var Verbs = []string{VerbGet, VerbPut, VerbPost, VerbPatch, VerbDelete}

const (
	defaultContentType = "application/json"
	emptyJSONBody      = "{\n}"
)

// IsVerb reports whether v is one of the tracked verbs.
func IsVerb(v string) bool {
	for _, verb := range Verbs {
		if verb == v {
			return true
		}
	}
	return false
}

type Request struct {
	ContentType string `json:"contentType"`
	QueryParams string `json:"queryParams"`
	Body        string `json:"body"`
}

type Response struct {
	Status      string `json:"status"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// MethodConfig is the mock configuration for one HTTP verb.
type MethodConfig struct {
	Enabled  bool     `json:"enabled"`
	Request  Request  `json:"request"`
	Response Response `json:"response"`
}

// Node is one path segment of a sketch. Children are ids; the owning tree
// index holds the node values.
type Node struct {
	ID       string                  `json:"id"`
	Name     string                  `json:"name"`
	Fullpath string                  `json:"fullpath"`
	Data     map[string]MethodConfig `json:"data"`
	Children []string                `json:"children"`
}

// NewDefault returns a node with the default five-verb configuration.
func NewDefault(id, name, fullpath string) Node {
	return Node{
		ID:       id,
		Name:     name,
		Fullpath: fullpath,
		Data:     DefaultData(),
		Children: []string{},
	}
}

// NewRoot returns the root node created by a treenode_defineroot event.
func NewRoot() Node {
	return Node{
		ID:       RootID,
		Name:     "/",
		Fullpath: "/",
		Data:     map[string]MethodConfig{},
		Children: []string{},
	}
}

// DefaultData returns a fresh copy of the per-verb defaults.
func DefaultData() map[string]MethodConfig {
	return map[string]MethodConfig{
		VerbGet:    defaultConfig("", "200", emptyJSONBody),
		VerbPut:    defaultConfig(emptyJSONBody, "200", emptyJSONBody),
		VerbPost:   defaultConfig(emptyJSONBody, "201", emptyJSONBody),
		VerbPatch:  defaultConfig(emptyJSONBody, "200", emptyJSONBody),
		VerbDelete: defaultConfig("", "204", ""),
	}
}

func defaultConfig(requestBody, status, responseBody string) MethodConfig {
	return MethodConfig{
		Enabled: false,
		Request: Request{
			ContentType: defaultContentType,
			QueryParams: "",
			Body:        requestBody,
		},
		Response: Response{
			Status:      status,
			ContentType: defaultContentType,
			Body:        responseBody,
		},
	}
}

// Clone returns a deep copy.
func (n Node) Clone() Node {
	out := n
	if n.Data != nil {
		out.Data = make(map[string]MethodConfig, len(n.Data))
		for k, v := range n.Data {
			out.Data[k] = v
		}
	}
	out.Children = append([]string{}, n.Children...)
	return out
}

// HasChild reports whether id is a direct child.
func (n Node) HasChild(id string) bool {
	for _, c := range n.Children {
		if c == id {
			return true
		}
	}
	return false
}

// RemoveChild drops id from the children list, keeping order.
func (n *Node) RemoveChild(id string) bool {
	for i, c := range n.Children {
		if c == id {
			n.Children = append(n.Children[:i:i], n.Children[i+1:]...)
			return true
		}
	}
	return false
}

// JoinPath joins a parent fullpath and a segment name with exactly one separator.
func JoinPath(parentPath, name string) string {
	base := strings.TrimRight(parentPath, "/")
	seg := strings.Trim(name, "/")
	if seg == "" {
		if base == "" {
			return "/"
		}
		return base
	}
	return base + "/" + seg
}
