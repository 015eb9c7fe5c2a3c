package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

const backupTimeLayout = "20060102150405"

// Migrator upgrades a ledger file with fewer columns than Header, or with
// its columns in another order, to the Header layout. The old file is copied to <file>.<YYYYMMDDHHMMSS>.bak before anything is
// rewritten.
type Migrator struct {
	path   string
	locker storage.Locker
	logger *log.Logger
	now    func() time.Time
	newID  func() string
}

func NewMigrator(path string, locker storage.Locker, logger *log.Logger) *Migrator {
	if logger == nil {
		logger = log.Default()
	}
	if locker == nil {
		locker = storage.NoopLocker{}
	}
	return &Migrator{
		path:   path,
		locker: locker,
		logger: logger.WithComponent(log.ComponentMigration),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Migrate is a no-op for a missing or empty file and for a file already at
// the current layout.
func (m *Migrator) Migrate(ctx context.Context) (storage.MigrationResult, error) {
	res := storage.MigrationResult{ToColumns: len(Header)}

	unlock, err := m.locker.Lock(ctx)
	if err != nil {
		return res, m.fail(ctx, err)
	}
	defer unlock()

	head, err := m.readHeader()
	if err != nil {
		return res, m.fail(ctx, err)
	}
	res.FromColumns = len(head)
	if len(head) == 0 || (len(head) >= len(Header) && ordered(head)) {
		res.ToColumns = len(head)
		return res, nil
	}

	backup, err := m.backup()
	if err != nil {
		return res, m.fail(ctx, err)
	}
	res.BackupPath = backup

	rows, unknown, err := m.upgradeRows(backup)
	if err != nil {
		return res, m.fail(ctx, err)
	}
	if len(unknown) > 0 {
		m.logger.WarnContext(ctx, "dropping unrecognized columns",
			log.FieldPath, m.path, "columns", strings.Join(unknown, ","))
	}

	if err := storage.WriteFileAtomic(m.path, 0o644, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(Header); err != nil {
			return err
		}
		return cw.WriteAll(rows)
	}); err != nil {
		return res, m.fail(ctx, core.StorageError("rewrite", m.path, err))
	}

	res.Migrated = true
	res.Rows = len(rows)
	m.logger.InfoContext(ctx, "ledger migrated",
		log.FieldOperation, log.OpMigrate,
		log.FieldPath, m.path,
		log.FieldFromCols, res.FromColumns,
		log.FieldToCols, res.ToColumns,
		log.FieldRows, res.Rows,
		log.FieldBackupPath, res.BackupPath)
	return res, nil
}

func (m *Migrator) readHeader() ([]string, error) {
	f, err := os.Open(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, core.StorageError("open", m.path, err)
	}
	defer f.Close()

	head, err := newReader(f).Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", core.ErrMalformedRow, err)
	}
	return head, nil
}

// backup copies the ledger aside and fsyncs the copy. A second migration in
// the same second gets a numbered name instead of overwriting the first.
func (m *Migrator) backup() (string, error) {
	base := fmt.Sprintf("%s.%s", m.path, m.now().Format(backupTimeLayout))
	name := base + ".bak"
	for i := 1; ; i++ {
		err := storage.CopyFileSync(m.path, name)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, os.ErrExist) || i > 100 {
			return "", core.StorageError("backup", name, err)
		}
		name = fmt.Sprintf("%s-%d.bak", base, i)
	}
}

// upgradeRows reads every row of the backup by header name and lays it out
// in the current column order. Values are copied as text; only recognized
// kind labels are normalized. Rows with no content are dropped.
func (m *Migrator) upgradeRows(backup string) ([][]string, []string, error) {
	f, err := os.Open(backup)
	if err != nil {
		return nil, nil, core.StorageError("open", backup, err)
	}
	defer f.Close()

	cr := newReader(f)
	head, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: header: %v", core.ErrMalformedRow, err)
	}
	cols, unknown := parseHeader(head)

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, core.StorageError("read", backup, err)
		}
		if blank(row) {
			continue
		}
		rows = append(rows, m.upgradeRow(cols, row))
	}
	return rows, unknown, nil
}

func (m *Migrator) upgradeRow(cols columns, row []string) []string {
	kind := cols.get(row, ColKind)
	if strings.TrimSpace(kind) == "" {
		kind = core.Expense.String()
	} else if k, err := core.ParseKind(kind); err == nil {
		kind = k.String()
	}

	id := strings.TrimSpace(cols.get(row, ColID))
	if id == "" {
		id = m.newID()
	}

	return []string{
		cols.get(row, ColDate),
		kind,
		cols.get(row, ColCategory),
		cols.get(row, ColAmount),
		cols.get(row, ColNote),
		cols.get(row, ColImageRef),
		id,
	}
}

func ordered(head []string) bool {
	cols, _ := parseHeader(head)
	return cols.inHeaderOrder()
}

func (m *Migrator) fail(ctx context.Context, err error) error {
	err = fmt.Errorf("%w: %w", core.ErrMigration, err)
	m.logger.Outcome(ctx, "ledger migration failed", log.OpMigrate, log.NewFields().WithPath(m.path), err)
	return err
}
