package app

import (
	"context"
	"fmt"
	"net/http"

	"apisketch/internal/cache/projection"
	"apisketch/internal/gateway/config"
	"apisketch/internal/gateway/handler"
	"apisketch/internal/gateway/server"
	exportsvc "apisketch/internal/gateway/service/export"
	sketchsvc "apisketch/internal/gateway/service/sketch"
	"apisketch/internal/gateway/service/treefeed"
	"apisketch/internal/sketch/projector"
)

type App struct {
	server  *server.Server
	stores  *gatewayStores
	handler http.Handler
}

func New(ctx context.Context, args []string) (*App, error) {
	cfg, err := config.Load(args)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	stores, err := initStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Dependencies
	cache := projection.New()
	proj := projector.New(stores.events, cache)
	feed := treefeed.NewHub(0)
	sketchSvc := sketchsvc.New(stores.events, proj, feed, sketchsvc.Config{
		MaxDepth:       cfg.Tree.MaxDepth,
		StorageTimeout: cfg.EventLog.StorageTimeout,
	})
	owners := sketchsvc.NewLogOwnership(stores.events, cfg.Ownership.CacheSize, cfg.Ownership.CacheTTL)
	exportSvc := exportsvc.New(sketchSvc, stores.exports)

	sketchHandler := handler.NewSketchHandler(sketchSvc, owners, exportSvc)
	treeStreamHandler := handler.NewTreeStreamHandler(sketchHandler, feed)

	// Routing & Server
	mux := server.NewMux(sketchHandler, treeStreamHandler, server.RouteOptions{AllowReset: cfg.AllowsReset()})

	return &App{
		server: server.New(cfg.Port, mux, server.Options{
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			IdleTimeout:       cfg.Server.IdleTimeout,
		}),
		stores:  stores,
		handler: mux,
	}, nil
}

// Handler exposes the routed handler for in-process use.
func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.stores.events.Close(); err == nil {
		err = cerr
	}
	return err
}
