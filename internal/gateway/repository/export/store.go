// Package export stores rendered sketch snapshots.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store persists snapshot documents grouped by sketch.
type Store interface {
	Put(ctx context.Context, sketchID, name string, content []byte) error
	Get(ctx context.Context, sketchID, name string) ([]byte, error)
	// GetURL returns a download link, or "" when the backend has none.
	GetURL(ctx context.Context, sketchID, name string) (string, error)
	List(ctx context.Context, sketchID string) ([]string, error)
}

var (
	ErrNotFound = errors.New("snapshot not found")
	// ErrInvalidKey is wrapped when a sketch id or snapshot name cannot form
	// an object key.
	ErrInvalidKey = errors.New("invalid snapshot key")
)

func normalizeSketch(sketchID string) (string, error) {
	sketchID = strings.TrimSpace(sketchID)
	if sketchID == "" {
		return "", fmt.Errorf("%w: sketch id is required", ErrInvalidKey)
	}
	if strings.Contains(sketchID, "/") {
		return "", fmt.Errorf("%w: sketch id %q must not contain '/'", ErrInvalidKey, sketchID)
	}
	return sketchID, nil
}

func normalize(sketchID, name string) (string, string, error) {
	sketchID, err := normalizeSketch(sketchID)
	if err != nil {
		return "", "", err
	}
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if name == "" {
		return "", "", fmt.Errorf("%w: snapshot name is required", ErrInvalidKey)
	}
	if strings.Contains(name, "/") || name == "." || name == ".." {
		return "", "", fmt.Errorf("%w: snapshot name %q", ErrInvalidKey, name)
	}
	return sketchID, name, nil
}

func objectKey(sketchID, name string) string {
	return sketchID + "/" + name
}
