// Package csvfile stores the ledger as a delimited UTF-8 text file with a
// header row. Rewrites go through a temp file and an atomic rename, and
// every mutation holds an advisory lock file next to the ledger.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// Options tunes a Store. Zero values pick the defaults.
type Options struct {
	LockTimeout time.Duration
	CacheSize   int
	CacheTTL    time.Duration
	Locker      storage.Locker
}

// snapshot is a cached parse of the file, valid while size and mtime match.
type snapshot struct {
	size    int64
	modTime time.Time
	records []core.Record
}

// Store implements storage.RecordBackend over a single CSV file.
type Store struct {
	mu     sync.Mutex
	path   string
	locker storage.Locker
	cache  cache.Cache[snapshot]
	logger *log.Logger
}

func New(path string, opts Options, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	locker := opts.Locker
	if locker == nil {
		locker = NewFileLock(path, opts.LockTimeout)
	}
	return &Store{
		path:   path,
		locker: locker,
		cache:  cache.New[snapshot](opts.CacheSize, opts.CacheTTL),
		logger: logger.WithComponent(log.ComponentStorage).With(log.FieldBackend, "csv"),
	}
}

// Path is the ledger file location.
func (s *Store) Path() string {
	return s.path
}

// Locker exposes the mutation lock so the migrator can share it.
func (s *Store) Locker() storage.Locker {
	return s.locker
}

// EnsureInitialized writes a header-only file when the ledger is absent
// or empty. An existing non-empty file is left alone.
func (s *Store) EnsureInitialized(ctx context.Context) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	info, err := os.Stat(s.path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return core.StorageError("stat", s.path, err)
	}

	if err := storage.WriteFileAtomic(s.path, 0o644, func(w io.Writer) error {
		return writeRecords(w, nil)
	}); err != nil {
		return core.StorageError("init", s.path, err)
	}
	s.invalidate()
	s.logger.InfoContext(ctx, "ledger file initialized", log.FieldOperation, log.OpInit, log.FieldPath, s.path)
	return nil
}

// ReadAll returns every non-blank row in file order. A missing file reads
// as an empty ledger. One undecodable row fails the whole read.
func (s *Store) ReadAll(ctx context.Context) ([]core.Record, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, core.StorageError("stat", s.path, err)
	}

	if snap, ok := s.cache.Get(s.path); ok && snap.size == info.Size() && snap.modTime.Equal(info.ModTime()) {
		return slices.Clone(snap.records), nil
	}

	start := time.Now()
	records, err := s.load()
	if err != nil {
		return nil, err
	}

	s.cache.Set(s.path, snapshot{size: info.Size(), modTime: info.ModTime(), records: records})
	s.logger.DebugContext(ctx, "ledger read",
		log.FieldPath, s.path,
		log.FieldRows, len(records),
		log.FieldDuration, time.Since(start).Milliseconds())
	return slices.Clone(records), nil
}

// Append adds one row at the end of the file, creating it first if needed.
func (s *Store) Append(ctx context.Context, r core.Record) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	defer s.invalidate()

	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0) {
		return s.rewrite([]core.Record{r})
	}
	if err != nil {
		return core.StorageError("stat", s.path, err)
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return core.StorageError("open", s.path, err)
	}
	defer f.Close()

	ordered, err := checkCurrentLayout(f)
	if err != nil {
		return err
	}
	if !ordered {
		// Rows are written in Header order, so the file is normalized first.
		records, err := s.load()
		if err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "ledger columns reordered", log.FieldOperation, log.OpAppend, log.FieldPath, s.path)
		return s.rewrite(append(records, r))
	}
	if err := ensureTrailingNewline(f, info.Size()); err != nil {
		return core.StorageError("append", s.path, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(encodeRecord(r)); err != nil {
		return core.StorageError("append", s.path, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return core.StorageError("append", s.path, err)
	}
	if err := f.Sync(); err != nil {
		return core.StorageError("sync", s.path, err)
	}
	return nil
}

// ReplaceAll rewrites the whole file with records.
func (s *Store) ReplaceAll(ctx context.Context, records []core.Record) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	defer s.invalidate()

	return s.rewrite(records)
}

// Modify rewrites the file with fn's result, reading and writing under one
// lock hold. The cache is bypassed for the read.
func (s *Store) Modify(ctx context.Context, fn func([]core.Record) ([]core.Record, error)) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	defer s.invalidate()

	records, err := s.load()
	if err != nil {
		return err
	}
	next, err := fn(records)
	if err != nil {
		return err
	}
	return s.rewrite(next)
}

// load parses the file from disk. A missing file is an empty ledger.
func (s *Store) load() ([]core.Record, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, core.StorageError("open", s.path, err)
	}
	defer f.Close()

	records, _, err := readRecords(f)
	if err != nil {
		if !errors.Is(err, core.ErrIntegrity) {
			err = core.StorageError("read", s.path, err)
		}
		return nil, err
	}
	return records, nil
}

func (s *Store) rewrite(records []core.Record) error {
	if err := storage.WriteFileAtomic(s.path, 0o644, func(w io.Writer) error {
		return writeRecords(w, records)
	}); err != nil {
		return core.StorageError("rewrite", s.path, err)
	}
	return nil
}

func (s *Store) lock(ctx context.Context) (func(), error) {
	s.mu.Lock()
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return func() {
		unlock()
		s.mu.Unlock()
	}, nil
}

func (s *Store) invalidate() {
	s.cache.Delete(s.path)
}

// checkCurrentLayout refuses to append to a file whose header still has a
// legacy layout; the migrator has to run first. ordered is false when the
// header has every column but not in Header order.
func checkCurrentLayout(f *os.File) (ordered bool, err error) {
	head, err := newReader(io.NewSectionReader(f, 0, 1<<16)).Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("%w: header: %v", core.ErrMalformedRow, err)
	}
	if len(head) < len(Header) {
		return false, fmt.Errorf("%w: ledger has %d columns, expected %d; migrate it first", core.ErrIntegrity, len(head), len(Header))
	}
	cols, _ := parseHeader(head)
	return cols.inHeaderOrder(), nil
}

func ensureTrailingNewline(f *os.File, size int64) error {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return err
	}
	if bytes.Equal(last, []byte{'\n'}) {
		return nil
	}
	_, err := f.Write([]byte{'\n'})
	return err
}
