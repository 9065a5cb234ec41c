package server

import (
	"net/http"

	"apisketch/internal/gateway/handler"
	"apisketch/internal/gateway/middleware"
)

// RouteOptions toggles environment-dependent routes.
type RouteOptions struct {
	AllowReset bool
}

func NewMux(
	sketchHandler *handler.SketchHandler,
	treeStreamHandler *handler.TreeStreamHandler,
	opts RouteOptions,
) http.Handler {
	mux := http.NewServeMux()

	// Sketch tree
	mux.HandleFunc("POST /api/sketches/{sketchId}", sketchHandler.HandleCreateSketch)
	mux.HandleFunc("GET /api/sketches/{sketchId}/tree", sketchHandler.HandleGetTree)
	mux.HandleFunc("POST /api/sketches/{sketchId}/nodes/{nodeId}", sketchHandler.HandleAddNode)
	mux.HandleFunc("PATCH /api/sketches/{sketchId}/nodes/{nodeId}", sketchHandler.HandleUpdateNode)
	mux.HandleFunc("DELETE /api/sketches/{sketchId}/nodes/{nodeId}", sketchHandler.HandleDeleteNode)
	mux.HandleFunc("PUT /api/sketches/{sketchId}/nodes/{nodeId}/move", sketchHandler.HandleMoveNode)
	mux.HandleFunc("POST /api/sketches/{sketchId}/export", sketchHandler.HandleExport)
	mux.HandleFunc("GET /api/sketches/{sketchId}/exports", sketchHandler.HandleListExports)
	mux.HandleFunc("GET /api/sketches/{sketchId}/exports/{name}", sketchHandler.HandleGetExport)
	mux.HandleFunc("GET /api/sketches/{sketchId}/ws", treeStreamHandler.HandleTreeWS)

	// Test support
	if opts.AllowReset {
		mux.HandleFunc("POST /api/reset", sketchHandler.HandleReset)
	}

	// Middleware
	return middleware.CORS(middleware.RequireUser(mux))
}
