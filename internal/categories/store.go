package categories

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// suggestThreshold is the largest edit distance Suggest still reports.
const suggestThreshold = 2

// Store persists the category vocabulary as one name per line.
type Store struct {
	mu       sync.Mutex
	path     string
	defaults []string
	logger   *log.Logger
}

func New(path string, defaults []string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		path:     path,
		defaults: dedupeSorted(defaults),
		logger:   logger.WithComponent(log.ComponentCategories),
	}
}

// Load returns the persisted categories sorted. A missing file is seeded
// with the defaults. On a read failure the defaults are returned together
// with the error.
func (s *Store) Load(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) ([]string, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		defaults := slices.Clone(s.defaults)
		if err := s.save(ctx, defaults); err != nil {
			return defaults, err
		}
		s.logger.InfoContext(ctx, "seeded default categories", log.FieldPath, s.path, log.FieldCount, len(defaults))
		return defaults, nil
	}
	if err != nil {
		err = core.StorageError("open", s.path, err)
		s.logger.Outcome(ctx, "category load failed", log.OpLoad, log.NewFields().WithPath(s.path), err)
		return slices.Clone(s.defaults), err
	}
	defer f.Close()

	cats, err := readLines(f)
	if err != nil {
		err = core.StorageError("read", s.path, err)
		s.logger.Outcome(ctx, "category load failed", log.OpLoad, log.NewFields().WithPath(s.path), err)
		return slices.Clone(s.defaults), err
	}
	return cats, nil
}

// Save replaces the whole file with the trimmed, deduplicated and sorted
// names. Nothing changes on disk if it fails.
func (s *Store) Save(ctx context.Context, categories []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, dedupeSorted(categories))
}

func (s *Store) save(ctx context.Context, cats []string) error {
	err := storage.WriteFileAtomic(s.path, 0o644, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		for _, c := range cats {
			if _, err := bw.WriteString(c + "\n"); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
	if err != nil {
		err = core.StorageError("write", s.path, err)
		s.logger.Outcome(ctx, "category save failed", log.OpSave, log.NewFields().WithPath(s.path), err)
		return err
	}
	s.logger.DebugContext(ctx, "categories saved", log.FieldPath, s.path, log.FieldCount, len(cats))
	return nil
}

// Add inserts name into the persisted set.
func (s *Store) Add(ctx context.Context, name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.ErrEmptyCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cats, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if slices.Contains(cats, name) {
		return cats, nil
	}
	cats = dedupeSorted(append(cats, name))
	if err := s.save(ctx, cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// Remove drops name from the persisted set. Records using it are untouched.
// Removing an unknown name is a no-op.
func (s *Store) Remove(ctx context.Context, name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.ErrEmptyCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cats, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := slices.Index(cats, name)
	if i < 0 {
		return cats, nil
	}
	cats = slices.Delete(cats, i, i+1)
	if err := s.save(ctx, cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// Suggest returns the known category closest to name, ignoring case, when
// name is not itself known and the distance is small enough to be a typo.
func Suggest(name string, known []string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || slices.Contains(known, name) {
		return "", false
	}
	lower := strings.ToLower(name)
	best, bestDist := "", suggestThreshold+1
	for _, k := range known {
		d := levenshtein.ComputeDistance(lower, strings.ToLower(k))
		if d < bestDist {
			best, bestDist = k, d
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(string(bytes.TrimPrefix(sc.Bytes(), utf8BOM)))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return dedupeSorted(out), nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func dedupeSorted(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
