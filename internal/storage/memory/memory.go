// Package memory keeps the ledger in process memory. It backs tests and
// throwaway sessions; nothing survives the process.
package memory

import (
	"context"
	"slices"
	"sync"

	"ledger/internal/core"
)

type Store struct {
	mu    sync.Mutex
	items []core.Record
}

func New(seed ...core.Record) *Store {
	return &Store{items: slices.Clone(seed)}
}

// EnsureInitialized has nothing to create.
func (s *Store) EnsureInitialized(_ context.Context) error {
	return nil
}

// ReadAll returns a copy of the stored records.
func (s *Store) ReadAll(_ context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items), nil
}

// Append stores the record after the existing ones.
func (s *Store) Append(_ context.Context, r core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, r)
	return nil
}

func (s *Store) ReplaceAll(_ context.Context, records []core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.Clone(records)
	return nil
}

// Modify replaces the content with fn's result under the store mutex.
func (s *Store) Modify(_ context.Context, fn func([]core.Record) ([]core.Record, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(slices.Clone(s.items))
	if err != nil {
		return err
	}
	s.items = slices.Clone(next)
	return nil
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
