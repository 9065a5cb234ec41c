package app

import (
	"context"
	"fmt"
	"log"

	"apisketch/internal/gateway/config"
	"apisketch/internal/gateway/repository/eventlog"
	exportrepo "apisketch/internal/gateway/repository/export"
)

type gatewayStores struct {
	events  eventlog.Store
	exports exportrepo.Store
}

func initStores(ctx context.Context, cfg *config.Config) (*gatewayStores, error) {
	events, err := eventlog.Open(ctx, eventlog.Config{
		Backend:       cfg.EventLog.Backend,
		DatabaseURL:   cfg.EventLog.DatabaseURL,
		SQLitePath:    cfg.EventLog.SQLitePath,
		ReadCacheSize: cfg.EventLog.ReadCacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	exports, err := chooseExportStore(cfg)
	if err != nil {
		_ = events.Close()
		return nil, err
	}
	return &gatewayStores{events: events, exports: exports}, nil
}

func chooseExportStore(cfg *config.Config) (exportrepo.Store, error) {
	if !cfg.Export.CanUseS3() {
		log.Printf("export store: in-memory (s3 config incomplete)")
		return exportrepo.NewMemoryStore(), nil
	}
	s3Cfg := exportrepo.S3Config{
		Endpoint:  cfg.Export.Endpoint,
		Region:    cfg.Export.Region,
		AccessKey: cfg.Export.AccessKey,
		SecretKey: cfg.Export.SecretKey,
		Bucket:    cfg.Export.Bucket,
		UseSSL:    cfg.Export.UseSSL,
	}
	store, err := exportrepo.NewS3Store(s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize export s3 store: %w", err)
	}
	log.Printf("export store: s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint)
	return store, nil
}
