// Package sqlite stores the ledger in an embedded SQLite database whose
// schema is managed by versioned migrations.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"ledger/internal/core"
	"ledger/internal/log"

	_ "modernc.org/sqlite"
)

const (
	selectRecords = `SELECT seq, id, date, kind, category, amount, note, image_ref FROM records ORDER BY seq`
	insertRecord  = `INSERT INTO records (id, date, kind, category, amount, note, image_ref) VALUES (?, ?, ?, ?, ?, ?, ?)`
	deleteRecords = `DELETE FROM records`
)

// SQLiteRepository implements storage.RecordBackend. Stored order is the
// insertion sequence.
type SQLiteRepository struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, core.StorageError("create db directory", dbPath, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, core.StorageError("open sqlite database", dbPath, err)
	}
	// one writer at a time keeps ReplaceAll transactions from interleaving
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, core.StorageError("ping database", dbPath, err)
	}

	return &SQLiteRepository{
		db:     db,
		path:   dbPath,
		logger: logger.WithComponent(log.ComponentStorage).With(log.FieldBackend, "sqlite"),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// EnsureInitialized applies the schema migrations. Re-running is a no-op.
func (r *SQLiteRepository) EnsureInitialized(ctx context.Context) error {
	if _, _, err := RunMigrations(r.path); err != nil {
		return core.StorageError("init", r.path, err)
	}
	return nil
}

// ReadAll implements storage.RecordBackend
func (r *SQLiteRepository) ReadAll(ctx context.Context) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, selectRecords)
	if err != nil {
		return nil, core.StorageError("query records", r.path, err)
	}
	defer rows.Close()

	var records []core.Record
	for rows.Next() {
		var (
			seq                                             int64
			id, date, kind, category, amount, note, imageRef string
		)
		if err := rows.Scan(&seq, &id, &date, &kind, &category, &amount, &note, &imageRef); err != nil {
			return nil, core.StorageError("scan record", r.path, err)
		}
		rec, err := decodeRow(seq, id, date, kind, category, amount, note, imageRef)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageError("iterate records", r.path, err)
	}

	r.logger.DebugContext(ctx, "ledger read", log.FieldRows, len(records))
	return records, nil
}

// Append implements storage.RecordBackend
func (r *SQLiteRepository) Append(ctx context.Context, rec core.Record) error {
	if _, err := r.db.ExecContext(ctx, insertRecord, recordArgs(rec)...); err != nil {
		return core.StorageError("insert record", r.path, err)
	}
	return nil
}

// ReplaceAll swaps the table content inside one transaction.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, records []core.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.StorageError("begin transaction", r.path, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteRecords); err != nil {
		return core.StorageError("clear records", r.path, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		return core.StorageError("prepare insert", r.path, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, recordArgs(rec)...); err != nil {
			return core.StorageError("insert record", r.path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.StorageError("commit", r.path, err)
	}
	return nil
}

func recordArgs(rec core.Record) []any {
	return []any{
		rec.ID,
		rec.Date.String(),
		rec.Kind.String(),
		rec.Category,
		rec.Amount.Text(),
		rec.Note,
		rec.ImageRef,
	}
}

func decodeRow(seq int64, id, date, kind, category, amount, note, imageRef string) (core.Record, error) {
	row := int(seq)
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Record{}, core.MalformedRowError(row, "date", err)
	}
	k, err := core.ParseKind(kind)
	if err != nil {
		return core.Record{}, core.MalformedRowError(row, "kind", err)
	}
	m, err := core.ParseStoredAmount(amount)
	if err != nil {
		return core.Record{}, core.MalformedRowError(row, "amount", fmt.Errorf("%q: %w", amount, err))
	}
	return core.Record{
		ID:       id,
		Date:     d,
		Kind:     k,
		Category: category,
		Amount:   m,
		Note:     note,
		ImageRef: imageRef,
	}, nil
}
