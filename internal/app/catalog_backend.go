package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dwizi/fixdesk/internal/catalog"
	"github.com/dwizi/fixdesk/internal/config"
	"github.com/dwizi/fixdesk/internal/store"
)

// catalogBackend is the persistent side of the issue catalog plus the hooks
// the runtime needs for readiness and shutdown.
type catalogBackend struct {
	name  string
	store catalog.Store
	ping  func(ctx context.Context) error
	close func() error
}

func (b *catalogBackend) Ping(ctx context.Context) error {
	if b == nil || b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

func (b *catalogBackend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

func openCatalogBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (*catalogBackend, error) {
	switch cfg.CatalogBackend {
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.CatalogPath), 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
		return &catalogBackend{
			name:  "file",
			store: catalog.NewFileStore(cfg.CatalogPath, logger.With("component", "catalog-file")),
			ping: func(ctx context.Context) error {
				_, err := os.Stat(filepath.Dir(cfg.CatalogPath))
				return err
			},
		}, nil
	case "redis":
		options, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(options)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		redisStore := catalog.NewRedisStore(client, cfg.RedisKey, logger.With("component", "catalog-redis"))
		return &catalogBackend{
			name:  "redis",
			store: redisStore,
			ping: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
			close: redisStore.Close,
		}, nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		sqlStore, err := store.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if err := sqlStore.AutoMigrate(ctx); err != nil {
			sqlStore.Close()
			return nil, err
		}
		return &catalogBackend{
			name:  "sqlite",
			store: sqlStore,
			ping:  sqlStore.Ping,
			close: sqlStore.Close,
		}, nil
	}
}

// OpenCatalog opens the configured catalog backend for one-off tools such as
// the CLI. The returned func releases the backend.
func OpenCatalog(ctx context.Context, cfg config.Config, logger *slog.Logger) (*catalog.Catalog, func() error, error) {
	backend, err := openCatalogBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	issueCatalog := catalog.New(backend.store, logger.With("component", "catalog"))
	if err := issueCatalog.Refresh(ctx); err != nil {
		backend.Close()
		return nil, nil, err
	}
	return issueCatalog, backend.Close, nil
}
