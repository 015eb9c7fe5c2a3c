package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaVersion is the newest embedded migration.
const SchemaVersion = 1

// RunMigrations applies every pending embedded migration. It returns the
// schema version before and after the run.
func RunMigrations(dbPath string) (from, to uint, err error) {
	// Create a separate connection for migrations to avoid interfering with the main connection
	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, 0, fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlitemigrate.WithInstance(migrateDB, &sqlitemigrate.Config{})
	if err != nil {
		return 0, 0, fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, 0, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return 0, 0, fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	from, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return from, from, fmt.Errorf("schema version %d is dirty", from)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return from, from, fmt.Errorf("run migrations: %w", err)
	}

	to, _, err = m.Version()
	if err != nil {
		return from, from, fmt.Errorf("read schema version: %w", err)
	}
	return from, to, nil
}

// Migrator applies the embedded schema migrations of a database file.
type Migrator struct {
	path   string
	logger *log.Logger
}

func NewMigrator(dbPath string, logger *log.Logger) *Migrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Migrator{path: dbPath, logger: logger.WithComponent(log.ComponentMigration)}
}

// Migrate reports Migrated only when at least one migration ran. Column
// counts carry schema versions for this backend.
func (m *Migrator) Migrate(ctx context.Context) (storage.MigrationResult, error) {
	from, to, err := RunMigrations(m.path)
	res := storage.MigrationResult{FromColumns: int(from), ToColumns: int(to), Migrated: to != from}
	if err != nil {
		err = fmt.Errorf("%w: %w", core.ErrMigration, err)
		m.logger.Outcome(ctx, "schema migration failed", log.OpMigrate, log.NewFields().WithPath(m.path), err)
		return res, err
	}
	if res.Migrated {
		m.logger.InfoContext(ctx, "schema migrated",
			log.FieldOperation, log.OpMigrate,
			log.FieldPath, m.path,
			"from_version", from,
			"to_version", to)
	}
	return res, nil
}
