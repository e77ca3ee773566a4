package backend

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/dunamismax/transformd/internal/config"
	"github.com/dunamismax/transformd/internal/repository"
	"github.com/dunamismax/transformd/internal/storage"
	"github.com/dunamismax/transformd/internal/store"
)

// Backend bundles the content repository and work item store selected by
// configuration.
type Backend struct {
	Repository repository.Repository
	WorkItems  store.WorkItemStore

	db *sql.DB
}

// Open connects the configured backend. The memory backend keeps state in
// the process and is meant for local runs where api and worker share it.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Backend, error) {
	switch cfg.Database.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory backend, content and work items are not persisted")
		return &Backend{
			Repository: repository.NewMemoryRepository(),
			WorkItems:  store.NewMemoryWorkItemStore(),
		}, nil
	case config.BackendPostgres:
		return openPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Database.Backend)
	}
}

func openPostgres(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Backend, error) {
	binaries, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := binaries.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	db, err := store.OpenPostgres(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	repo, err := repository.NewPostgresRepository(ctx, db, binaries)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	workItems, err := store.NewPostgresWorkItemStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("connected backend",
		zap.String("backend", config.BackendPostgres),
		zap.String("bucket", binaries.Bucket()),
	)
	return &Backend{Repository: repo, WorkItems: workItems, db: db}, nil
}

func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
