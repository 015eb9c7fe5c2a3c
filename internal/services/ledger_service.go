package services

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// ImageReleaser frees the receipt image of a deleted record.
type ImageReleaser interface {
	Release(ctx context.Context, ref string) error
}

// LedgerService owns the record list: it validates, assigns identities and
// decides which stored record a caller means.
type LedgerService struct {
	backend  storage.RecordBackend
	migrator storage.Migrator
	images   ImageReleaser
	logger   *log.Logger
	newID    func() string
}

// NewLedgerService wires a backend. migrator and images may be nil.
func NewLedgerService(backend storage.RecordBackend, migrator storage.Migrator, images ImageReleaser, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Default()
	}
	if migrator == nil {
		migrator = storage.NoopMigrator{}
	}
	return &LedgerService{
		backend:  backend,
		migrator: migrator,
		images:   images,
		logger:   logger.WithComponent(log.ComponentLedger),
		newID:    uuid.NewString,
	}
}

// Migrate upgrades an older stored layout. It must run before any other
// operation touches the store.
func (s *LedgerService) Migrate(ctx context.Context) (storage.MigrationResult, error) {
	return s.migrator.Migrate(ctx)
}

// EnsureInitialized creates an empty store if there is none.
func (s *LedgerService) EnsureInitialized(ctx context.Context) error {
	err := s.backend.EnsureInitialized(ctx)
	if err != nil {
		s.logger.Outcome(ctx, "ledger init failed", log.OpInit, nil, err)
	}
	return err
}

// ReadAll returns every record in stored order.
func (s *LedgerService) ReadAll(ctx context.Context) ([]core.Record, error) {
	records, err := s.backend.ReadAll(ctx)
	if err != nil {
		s.logger.Outcome(ctx, "ledger read failed", log.OpRead, nil, err)
		return nil, err
	}
	return records, nil
}

// Append validates r, gives it an id if it has none and stores it last.
// Duplicates are allowed.
func (s *LedgerService) Append(ctx context.Context, r core.Record) (core.Record, error) {
	if err := r.Validate(); err != nil {
		s.logger.Outcome(ctx, "record rejected", log.OpAppend, log.NewFields().WithRecord(r), err)
		return core.Record{}, err
	}
	if r.ID == "" {
		r.ID = s.newID()
	}

	err := s.backend.Append(ctx, r)
	s.logger.Outcome(ctx, "record appended", log.OpAppend, log.NewFields().WithRecord(r), err)
	if err != nil {
		return core.Record{}, err
	}
	return r, nil
}

// Update replaces the record old identifies with updated, keeping its id.
// old is matched by id when it has one, else by its visible fields with
// the first match winning.
func (s *LedgerService) Update(ctx context.Context, old, updated core.Record) (core.Record, error) {
	if err := updated.Validate(); err != nil {
		s.logger.Outcome(ctx, "record rejected", log.OpUpdate, log.NewFields().WithRecord(updated), err)
		return core.Record{}, err
	}

	var result core.Record
	err := s.modify(ctx, func(records []core.Record) ([]core.Record, error) {
		i := locate(records, old)
		if i < 0 {
			return nil, core.ErrNotFound
		}
		updated.ID = records[i].ID
		if updated.ID == "" {
			updated.ID = s.newID()
		}
		records[i] = updated
		result = updated
		return records, nil
	})
	s.logger.Outcome(ctx, "record updated", log.OpUpdate, log.NewFields().WithRecord(updated), err)
	if err != nil {
		return core.Record{}, err
	}
	return result, nil
}

// Delete removes the record target identifies, matched like Update, and
// releases its image when no remaining record uses it. A failed release
// is logged; the deletion stands.
func (s *LedgerService) Delete(ctx context.Context, target core.Record) (core.Record, error) {
	var (
		removed   core.Record
		imageUsed bool
	)
	err := s.modify(ctx, func(records []core.Record) ([]core.Record, error) {
		i := locate(records, target)
		if i < 0 {
			return nil, core.ErrNotFound
		}
		removed = records[i]
		records = slices.Delete(records, i, i+1)
		imageUsed = removed.HasImage() && slices.ContainsFunc(records, func(r core.Record) bool {
			return r.ImageRef == removed.ImageRef
		})
		return records, nil
	})
	s.logger.Outcome(ctx, "record deleted", log.OpDelete, log.NewFields().WithRecord(target), err)
	if err != nil {
		return core.Record{}, err
	}

	if removed.HasImage() && !imageUsed && s.images != nil {
		if err := s.images.Release(ctx, removed.ImageRef); err != nil {
			s.logger.Outcome(ctx, "image release failed", log.OpRelease,
				log.NewFields().With(log.FieldImageRef, removed.ImageRef), err)
		}
	}
	return removed, nil
}

// ImageRefs lists the distinct image refs of all records.
func (s *LedgerService) ImageRefs(ctx context.Context) ([]string, error) {
	records, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	var refs []string
	for _, r := range records {
		if r.HasImage() && !slices.Contains(refs, r.ImageRef) {
			refs = append(refs, r.ImageRef)
		}
	}
	return refs, nil
}

// Close releases the backend if it holds resources.
func (s *LedgerService) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close ledger backend: %w", err)
		}
	}
	return nil
}

// modify runs a read-change-rewrite cycle, under the backend's lock when
// it offers one.
func (s *LedgerService) modify(ctx context.Context, fn func([]core.Record) ([]core.Record, error)) error {
	if m, ok := s.backend.(storage.Modifier); ok {
		return m.Modify(ctx, fn)
	}
	records, err := s.backend.ReadAll(ctx)
	if err != nil {
		return err
	}
	next, err := fn(slices.Clone(records))
	if err != nil {
		return err
	}
	return s.backend.ReplaceAll(ctx, next)
}

// locate returns the index of the record target identifies, or -1.
func locate(records []core.Record, target core.Record) int {
	if target.ID != "" {
		return slices.IndexFunc(records, func(r core.Record) bool { return r.ID == target.ID })
	}
	return slices.IndexFunc(records, target.SameFields)
}
