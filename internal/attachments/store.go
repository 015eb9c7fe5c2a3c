// Package attachments manages the receipt images referenced by records.
// Images are copied into one directory under the data directory and
// referenced by their data-directory-relative, slash-separated path.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// Release policies.
const (
	PolicyRemove = "remove"
	PolicyKeep   = "keep"
)

const nameTimeLayout = "20060102_150405"

// ErrOutsideStore rejects refs that do not point into the managed directory.
var ErrOutsideStore = &core.ValidationError{Field: "image_ref", Message: "image is not in the attachments directory"}

type Store struct {
	dataDir string
	dir     string
	policy  string
	logger  *log.Logger
	now     func() time.Time
}

// New returns a store for <dataDir>/<dir>. An unknown policy behaves as
// PolicyRemove.
func New(dataDir, dir, policy string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	if policy != PolicyKeep {
		policy = PolicyRemove
	}
	return &Store{
		dataDir: dataDir,
		dir:     filepath.ToSlash(filepath.Clean(dir)),
		policy:  policy,
		logger:  logger.WithComponent(log.ComponentAttachments),
		now:     time.Now,
	}
}

// Dir is the managed directory on disk.
func (s *Store) Dir() string {
	return filepath.Join(s.dataDir, filepath.FromSlash(s.dir))
}

func (s *Store) Policy() string {
	return s.policy
}

// Attach copies sourcePath into the managed directory as
// <YYYYMMDD_HHMMSS>_<basename> and returns its ref. A name already taken
// gets a counter before the extension.
func (s *Store) Attach(ctx context.Context, sourcePath string) (string, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return "", &core.ValidationError{Field: "image", Message: fmt.Sprintf("cannot read %q: %v", sourcePath, err)}
	}
	if !info.Mode().IsRegular() {
		return "", &core.ValidationError{Field: "image", Message: fmt.Sprintf("%q is not a regular file", sourcePath)}
	}

	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return "", core.StorageError("create attachments directory", s.Dir(), err)
	}

	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	prefix := s.now().Format(nameTimeLayout)

	name := prefix + "_" + base
	for i := 1; ; i++ {
		dst := filepath.Join(s.Dir(), name)
		err := storage.CopyFileSync(sourcePath, dst)
		if err == nil {
			ref := path.Join(s.dir, name)
			s.logger.InfoContext(ctx, "image attached",
				log.FieldOperation, log.OpAttach,
				log.FieldImageRef, ref)
			return ref, nil
		}
		if !errors.Is(err, os.ErrExist) || i > 1000 {
			err = core.StorageError("copy", dst, err)
			s.logger.Outcome(ctx, "image attach failed", log.OpAttach, log.NewFields().WithPath(sourcePath), err)
			return "", err
		}
		name = fmt.Sprintf("%s_%s-%d%s", prefix, stem, i, ext)
	}
}

// Resolve maps a ref to its path on disk. Refs written with backslashes
// are accepted.
func (s *Store) Resolve(ref string) (string, error) {
	rel, err := s.clean(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dataDir, filepath.FromSlash(rel)), nil
}

func (s *Store) clean(ref string) (string, error) {
	ref = strings.TrimSpace(strings.ReplaceAll(ref, `\`, "/"))
	if ref == "" || path.IsAbs(ref) {
		return "", ErrOutsideStore
	}
	rel := path.Clean(ref)
	if !strings.HasPrefix(rel, s.dir+"/") {
		return "", ErrOutsideStore
	}
	return rel, nil
}

// Release is called once a deleted record no longer references ref. With
// PolicyRemove the file is deleted; a missing file is not an error. With
// PolicyKeep nothing happens until Prune.
func (s *Store) Release(ctx context.Context, ref string) error {
	if s.policy == PolicyKeep {
		s.logger.DebugContext(ctx, "image kept", log.FieldOperation, log.OpRelease, log.FieldImageRef, ref)
		return nil
	}
	p, err := s.Resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return core.StorageError("remove", p, err)
	}
	s.logger.InfoContext(ctx, "image removed", log.FieldOperation, log.OpRelease, log.FieldImageRef, ref)
	return nil
}

// Prune deletes managed files that no ref in referenced points to and
// returns the refs it removed.
func (s *Store) Prune(ctx context.Context, referenced []string) ([]string, error) {
	keep := make(map[string]struct{}, len(referenced))
	for _, ref := range referenced {
		if rel, err := s.clean(ref); err == nil {
			keep[rel] = struct{}{}
		}
	}

	entries, err := os.ReadDir(s.Dir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, core.StorageError("list", s.Dir(), err)
	}

	var removed []string
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ref := path.Join(s.dir, e.Name())
		if _, ok := keep[ref]; ok {
			continue
		}
		p := filepath.Join(s.Dir(), e.Name())
		if err := os.Remove(p); err != nil {
			errs = append(errs, core.StorageError("remove", p, err))
			continue
		}
		removed = append(removed, ref)
	}
	slices.Sort(removed)

	err = errors.Join(errs...)
	s.logger.Outcome(ctx, "attachments pruned", log.OpPrune,
		log.NewFields().WithPath(s.Dir()).With(log.FieldCount, len(removed)), err)
	return removed, err
}
