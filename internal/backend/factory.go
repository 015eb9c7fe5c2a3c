package backend

import (
	"context"
	"fmt"

	"ledger/internal/log"
	"ledger/internal/storage/csvfile"
	"ledger/internal/storage/memory"
	"ledger/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVBackend:
		return f.createCSVBackend(ctx, config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createCSVBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store := csvfile.New(config.LedgerPath, csvfile.Options{
		LockTimeout: config.LockTimeout,
		CacheSize:   config.CacheSize,
		CacheTTL:    config.CacheTTL,
	}, f.logger)
	// the migrator shares the store's lock so an upgrade never races a write
	migrator := csvfile.NewMigrator(config.LedgerPath, store.Locker(), f.logger)

	f.logger.InfoContext(ctx, "Initialized CSV backend",
		log.FieldPath, config.LedgerPath,
		"lock_timeout", config.LockTimeout.String())

	return &BackendResult{
		Backend:  store,
		Migrator: migrator,
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := sqlite.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", log.FieldPath, config.SQLiteDBPath)

	return &BackendResult{
		Backend:  repo,
		Migrator: sqlite.NewMigrator(config.SQLiteDBPath, f.logger),
		Cleanup:  repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) (*BackendResult, error) {
	f.logger.InfoContext(ctx, "Initialized memory backend")

	return &BackendResult{
		Backend: memory.New(),
	}, nil
}
