package main

import (
	"context"
	"fmt"

	"github.com/pdf360/planview/internal/cache"
	"github.com/pdf360/planview/internal/config"
	"github.com/pdf360/planview/internal/database"
	"github.com/pdf360/planview/internal/storage"
	"github.com/pdf360/planview/internal/storage/memory"
	pgstorage "github.com/pdf360/planview/internal/storage/postgres"
	sqlitestorage "github.com/pdf360/planview/internal/storage/sqlite"
)

func initStorage(mgr *database.Manager) (storage.Backend, error) {
	storageCfg := config.GetStorageConfig()

	backend, err := createStorageBackend(storageCfg, mgr)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return nil, err
	}
	Logger.Info("Storage backend ready", "type", storageCfg.Type)
	return backend, nil
}

func createStorageBackend(storageCfg config.StorageConfig, mgr *database.Manager) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		Logger.Info("Postgres storage backend initialized")
		return pgstorage.New(mgr, nil), nil

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, mgr)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend initialized", "dumpPath", storageCfg.SQLite.DumpPath)
		return backend, nil

	case "memory", "":
		Logger.Info("Memory storage backend initialized")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

func initCache(ctx context.Context) (cache.MarkerLists, func() error) {
	cacheCfg := config.GetCacheConfig()
	if !cacheCfg.RedisEnabled {
		Logger.Info("Using in-process marker cache")
		return cache.NewMarkerCache(), func() error { return nil }
	}

	rc := cache.NewRedisMarkerCache(cache.RedisConfig{
		Addr:     cacheCfg.RedisAddr,
		Password: cacheCfg.RedisPassword,
		DB:       cacheCfg.RedisDB,
		TTL:      cacheCfg.TTL,
	})
	if err := rc.Ping(ctx); err != nil {
		Logger.Warn("Redis unreachable, falling back to in-process marker cache", "addr", cacheCfg.RedisAddr, "error", err)
		_ = rc.Close()
		return cache.NewMarkerCache(), func() error { return nil }
	}
	Logger.Info("Using Redis marker cache", "addr", cacheCfg.RedisAddr)
	return rc, rc.Close
}
