package handler

import (
	"context"
	"log"
	"net/http"
	"strings"

	"apisketch/internal/apperrors"
	"apisketch/internal/gateway/middleware"
	exportsvc "apisketch/internal/gateway/service/export"
	sketchsvc "apisketch/internal/gateway/service/sketch"
	"apisketch/internal/sketch/node"
	"apisketch/internal/sketch/tree"
)

// Sketches is the tree engine as seen by the HTTP adapter.
type Sketches interface {
	CreateSketch(ctx context.Context, userID, sketchID string) (tree.RenderedNode, error)
	GetTree(ctx context.Context, sketchID string) (tree.RenderedNode, error)
	Snapshot(ctx context.Context, sketchID string) (*tree.Tree, error)
	AddNode(ctx context.Context, userID, sketchID, parentID string, spec sketchsvc.NodeSpec) (sketchsvc.AddResult, error)
	UpdateNode(ctx context.Context, userID, sketchID, nodeID string, patch sketchsvc.NodePatch) (sketchsvc.UpdateResult, error)
	DeleteNode(ctx context.Context, userID, sketchID, nodeID string) error
	MoveNode(ctx context.Context, userID, sketchID, nodeID, targetID string) (sketchsvc.MoveResult, error)
	Reset()
}

type Exporter interface {
	Export(ctx context.Context, sketchID string) (exportsvc.Result, error)
	List(ctx context.Context, sketchID string) ([]string, error)
	Get(ctx context.Context, sketchID, name string) (exportsvc.Document, error)
}

type SketchHandler struct {
	sketches Sketches
	owners   sketchsvc.OwnershipChecker
	exports  Exporter
}

func NewSketchHandler(sketches Sketches, owners sketchsvc.OwnershipChecker, exports Exporter) *SketchHandler {
	if owners == nil {
		owners = sketchsvc.AllowAll{}
	}
	return &SketchHandler{sketches: sketches, owners: owners, exports: exports}
}

type rootNodeResponse struct {
	RootNode tree.RenderedNode `json:"rootNode"`
}

type addNodeRequest struct {
	Name     string `json:"name"`
	Fullpath string `json:"fullpath"`
}

type updateNodeRequest struct {
	Name     *string                     `json:"name"`
	Fullpath *string                     `json:"fullpath"`
	Data     map[string]node.MethodPatch `json:"data"`
}

type moveNodeRequest struct {
	Target string `json:"target"`
}

// authorize resolves the caller and sketch, answering 404 when the caller
// does not own the sketch.
func (h *SketchHandler) authorize(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	userID := middleware.UserID(r.Context())
	sketchID := strings.TrimSpace(r.PathValue("sketchId"))
	if sketchID == "" {
		writeError(w, apperrors.FieldValidation("sketchId", apperrors.FieldMissing, `Missing required field "sketchId"`))
		return "", "", false
	}
	ok, err := h.owners.OwnsSketch(r.Context(), userID, sketchID)
	if err != nil {
		writeError(w, err)
		return "", "", false
	}
	if !ok {
		writeError(w, apperrors.NotFound("Sketch not found"))
		return "", "", false
	}
	return userID, sketchID, true
}

func (h *SketchHandler) HandleCreateSketch(w http.ResponseWriter, r *http.Request) {
	userID, sketchID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	root, err := h.sketches.CreateSketch(r.Context(), userID, sketchID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rootNodeResponse{RootNode: root})
}

func (h *SketchHandler) HandleGetTree(w http.ResponseWriter, r *http.Request) {
	_, sketchID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	root, err := h.sketches.GetTree(r.Context(), sketchID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rootNodeResponse{RootNode: root})
}

func (h *SketchHandler) HandleAddNode(w http.ResponseWriter, r *http.Request) {
	userID, sketchID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req addNodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.sketches.AddNode(r.Context(), userID, sketchID, r.PathValue("nodeId"), sketchsvc.NodeSpec{
		Name:     req.Name,
		Fullpath: strings.TrimSpace(req.Fullpath),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *SketchHandler) HandleUpdateNode(w http.ResponseWriter, r *http.Request) {
	userID, sketchID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req updateNodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.sketches.UpdateNode(r.Context(), userID, sketchID, r.PathValue("nodeId"), sketchsvc.NodePatch{
		Name:     req.Name,
		Fullpath: req.Fullpath,
		Data:     req.Data,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SketchHandler) HandleDeleteNode(w http.ResponseWriter, r *http.Request) {
	userID, sketchID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if err := h.sketches.DeleteNode(r.Context(), userID, sketchID, r.PathValue("nodeId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SketchHandler) HandleMoveNode(w http.ResponseWriter, r *http.Request) {
	userID, sketchID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req moveNodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.sketches.MoveNode(r.Context(), userID, sketchID, r.PathValue("nodeId"), strings.TrimSpace(req.Target))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SketchHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	_, sketchID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if h.exports == nil {
		writeError(w, apperrors.Generic("export is not configured", nil))
		return
	}
	res, err := h.exports.Export(r.Context(), sketchID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type exportListResponse struct {
	Exports []string `json:"exports"`
}

func (h *SketchHandler) HandleListExports(w http.ResponseWriter, r *http.Request) {
	_, sketchID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if h.exports == nil {
		writeError(w, apperrors.Generic("export is not configured", nil))
		return
	}
	names, err := h.exports.List(r.Context(), sketchID)
	if err != nil {
		writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, exportListResponse{Exports: names})
}

func (h *SketchHandler) HandleGetExport(w http.ResponseWriter, r *http.Request) {
	_, sketchID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if h.exports == nil {
		writeError(w, apperrors.Generic("export is not configured", nil))
		return
	}
	doc, err := h.exports.Get(r.Context(), sketchID, r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// HandleReset drops every cached projection and closes every tree stream.
func (h *SketchHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.sketches.Reset()
	if f, ok := h.owners.(interface{ Forget() }); ok {
		f.Forget()
	}
	log.Printf("handler: reset requested by user=%s", middleware.UserID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
