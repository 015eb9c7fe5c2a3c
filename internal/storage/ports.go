package storage

import (
	"context"

	"ledger/internal/core"
)

// RecordBackend persists the ordered record list of the ledger.
type RecordBackend interface {
	// EnsureInitialized creates an empty store if none exists.
	EnsureInitialized(ctx context.Context) error
	// ReadAll returns every record in stored order.
	ReadAll(ctx context.Context) ([]core.Record, error)
	// Append writes one record after the existing ones.
	Append(ctx context.Context, r core.Record) error
	// ReplaceAll swaps the whole store content for records.
	ReplaceAll(ctx context.Context, records []core.Record) error
}

// Modifier is implemented by backends that can read, change and rewrite
// their content while holding their write lock. fn gets a private copy of
// the records; returning an error leaves the store unchanged.
type Modifier interface {
	Modify(ctx context.Context, fn func([]core.Record) ([]core.Record, error)) error
}

// Locker serializes mutations of a backend. The returned func releases
// the lock.
type Locker interface {
	Lock(ctx context.Context) (func(), error)
}

// Migrator upgrades an older stored layout to the current one.
type Migrator interface {
	Migrate(ctx context.Context) (MigrationResult, error)
}

// MigrationResult reports what a migration run did.
type MigrationResult struct {
	Migrated    bool
	FromColumns int
	ToColumns   int
	Rows        int
	BackupPath  string
}

// NoopLocker is used by backends that serialize on their own.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context) (func(), error) {
	return func() {}, nil
}

// NoopMigrator is used by backends that never hold a legacy layout.
type NoopMigrator struct{}

func (NoopMigrator) Migrate(context.Context) (MigrationResult, error) {
	return MigrationResult{}, nil
}
