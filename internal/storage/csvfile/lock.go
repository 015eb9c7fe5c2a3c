package csvfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"ledger/internal/core"
)

// ErrLockTimeout is returned when another holder keeps the ledger lock
// longer than the configured wait.
var ErrLockTimeout = errors.New("timed out waiting for ledger lock")

const lockRetryDelay = 25 * time.Millisecond

// FileLock is an advisory lock on <ledger>.lock with a bounded wait.
type FileLock struct {
	path    string
	timeout time.Duration
}

func NewFileLock(ledgerPath string, timeout time.Duration) *FileLock {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FileLock{path: ledgerPath + ".lock", timeout: timeout}
}

// Lock blocks until the lock is held, ctx is done or the timeout passes.
func (l *FileLock) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, core.StorageError("lock", l.path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	fl := flock.New(l.path)
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if errors.Is(err, context.DeadlineExceeded) || (err == nil && !ok) {
		return nil, core.StorageError("lock", l.path, fmt.Errorf("%w after %v", ErrLockTimeout, l.timeout))
	}
	if err != nil {
		return nil, core.StorageError("lock", l.path, err)
	}
	return func() { _ = fl.Unlock() }, nil
}

// Path is the lock file location.
func (l *FileLock) Path() string {
	return l.path
}
