package main

import (
	"context"
	"fmt"
	"log"

	"github.com/soaringjerry/Vitals/internal/api"
	"github.com/soaringjerry/Vitals/internal/config"
	"github.com/soaringjerry/Vitals/internal/db"
	"github.com/soaringjerry/Vitals/internal/pgstore"
	"github.com/soaringjerry/Vitals/internal/services"
)

func openStore(ctx context.Context, cfg config.Config) (api.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		s, err := api.OpenMemoryStore(cfg.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("open snapshot %s: %w", cfg.SnapshotPath, err)
		}
		log.Printf("store: memory (snapshot %s)", cfg.SnapshotPath)
		return s, nil
	case config.StoreSQLite:
		if err := MigrateIfNeeded(ctx, cfg.SnapshotPath, cfg.SQLitePath, cfg.StoreTimeout); err != nil {
			return nil, err
		}
		s, err := db.Open(ctx, cfg.SQLitePath, cfg.StoreTimeout)
		if err != nil {
			return nil, err
		}
		log.Printf("store: sqlite (%s)", cfg.SQLitePath)
		return s, nil
	case config.StorePostgres:
		s, err := pgstore.Open(ctx, cfg.PostgresDSN, cfg.StoreTimeout)
		if err != nil {
			return nil, err
		}
		log.Printf("store: postgres")
		return s, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func newRouter(store api.Store, cfg config.Config, pub services.Publisher) *api.Router {
	return api.NewRouter(store, api.Options{
		DemoMode:     cfg.DemoMode,
		SeedPassword: cfg.SeedPassword,
		SessionTTL:   cfg.SessionTTL,
		Events:       pub,
	})
}
