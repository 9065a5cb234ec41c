// Package export writes point-in-time snapshots of a sketch tree to a
// snapshot store.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"apisketch/internal/apperrors"
	exportrepo "apisketch/internal/gateway/repository/export"
	"apisketch/internal/sketch/tree"
)

// Snapshotter returns a private copy of a sketch's current tree.
type Snapshotter interface {
	Snapshot(ctx context.Context, sketchID string) (*tree.Tree, error)
}

// Document is the stored snapshot body.
type Document struct {
	SketchID   string            `json:"sketchId"`
	Seq        int64             `json:"seq"`
	ExportedAt time.Time         `json:"exportedAt"`
	RootNode   tree.RenderedNode `json:"rootNode"`
}

type Result struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

type Service struct {
	trees Snapshotter
	store exportrepo.Store
	now   func() time.Time
}

func New(trees Snapshotter, store exportrepo.Store) *Service {
	return &Service{trees: trees, store: store, now: time.Now}
}

// Export stores the current tree under <sketchId>/<unix-nanos>.json.
func (s *Service) Export(ctx context.Context, sketchID string) (Result, error) {
	t, err := s.trees.Snapshot(ctx, sketchID)
	if err != nil {
		return Result{}, err
	}
	at := s.now().UTC()
	doc := Document{
		SketchID:   sketchID,
		Seq:        t.Seq,
		ExportedAt: at,
		RootNode:   t.Render(),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return Result{}, apperrors.Generic("encode snapshot", err)
	}
	name := fmt.Sprintf("%d.json", at.UnixNano())
	if err := s.store.Put(ctx, sketchID, name, raw); err != nil {
		log.Printf("export: put sketch=%s failed: %v", sketchID, err)
		return Result{}, apperrors.Generic("Could not store the export", err)
	}
	url, err := s.store.GetURL(ctx, sketchID, name)
	if err != nil {
		log.Printf("export: presign sketch=%s key=%s failed: %v", sketchID, name, err)
		url = ""
	}
	log.Printf("export: stored sketch=%s seq=%d key=%s/%s", sketchID, doc.Seq, sketchID, name)
	return Result{Key: sketchID + "/" + name, URL: url}, nil
}

// List returns the snapshot names stored for sketchID, oldest first.
func (s *Service) List(ctx context.Context, sketchID string) ([]string, error) {
	names, err := s.store.List(ctx, sketchID)
	if errors.Is(err, exportrepo.ErrInvalidKey) {
		return nil, apperrors.FieldValidation("sketchId", apperrors.FieldInvalid, "Invalid sketch ID")
	}
	if err != nil {
		return nil, apperrors.Generic("Could not list exports", err)
	}
	return names, nil
}

// Get decodes one stored snapshot.
func (s *Service) Get(ctx context.Context, sketchID, name string) (Document, error) {
	raw, err := s.store.Get(ctx, sketchID, name)
	if errors.Is(err, exportrepo.ErrNotFound) {
		return Document{}, apperrors.NotFound("Export not found")
	}
	if errors.Is(err, exportrepo.ErrInvalidKey) {
		return Document{}, apperrors.FieldValidation("name", apperrors.FieldInvalid, "Invalid export name")
	}
	if err != nil {
		return Document{}, apperrors.Generic("Could not read the export", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, apperrors.Generic("decode snapshot", err)
	}
	return doc, nil
}
