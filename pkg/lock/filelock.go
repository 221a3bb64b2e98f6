// Package lock implements cross-process advisory locking and
// container-status polling. Locks are OS advisory file locks (flock(2)
// via golang.org/x/sys/unix), held only for the duration of one
// logical transaction, and re-entrant per process since a single
// ybox-* invocation is always single-threaded.
package lock

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ybox-project/ybox/pkg/ybox"
)

// Mode selects the flock(2) mode: shared locks are used for reads, and
// allow multiple concurrent holders; exclusive locks are used for writes
// and allow exactly one.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

func (m Mode) flockOp() int {
	if m == Exclusive {
		return unix.LOCK_EX
	}
	return unix.LOCK_SH
}

// FileLock guards one sibling ".lock" file. It is re-entrant per FileLock
// value: nested Acquire calls on the same value while it is held in a
// compatible mode are counted rather than re-flocked, so components that
// share one FileLock (say, the state store's) can nest acquisitions
// without deadlocking. Two FileLock values for the same path are not
// re-entrant with each other, even within one process: they exclude each
// other as two processes would.
type FileLock struct {
	path string

	mu      sync.Mutex
	file    *os.File
	mode    Mode
	depth   int
}

// New returns a FileLock bound to path. The file is created on first
// Acquire if it does not already exist.
func New(path string) *FileLock {
	return &FileLock{path: path}
}

// Acquire blocks until the lock is held in the given mode or ctx's
// deadline/timeout elapses, whichever comes first. Re-entrant: calling
// Acquire again from the same *FileLock value while already held in a
// compatible mode just bumps a depth counter; Release must be called a
// matching number of times.
func (l *FileLock) Acquire(ctx context.Context, mode Mode) error {
	l.mu.Lock()
	if l.file != nil {
		if mode == Shared || l.mode == Exclusive {
			l.depth++
			l.mu.Unlock()
			return nil
		}
		// Currently held Shared but Exclusive requested: must release and
		// re-acquire properly rather than silently downgrading.
	}
	l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return ybox.NewError(ybox.KindLockTimeout, l.path, fmt.Errorf("open lock file: %w", err))
	}

	deadline, hasDeadline := ctx.Deadline()
	backoff := 20 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond

	for {
		err := unix.Flock(int(f.Fd()), mode.flockOp()|unix.LOCK_NB)
		if err == nil {
			l.mu.Lock()
			l.file = f
			l.mode = mode
			l.depth = 1
			l.mu.Unlock()
			return nil
		}
		if err != unix.EWOULDBLOCK {
			f.Close()
			return ybox.NewError(ybox.KindLockTimeout, l.path, err)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return ybox.NewError(ybox.KindLockTimeout, l.path, fmt.Errorf("lock %s not acquired before timeout", l.path))
		case <-time.After(backoff):
		}

		if hasDeadline && time.Now().After(deadline) {
			f.Close()
			return ybox.NewError(ybox.KindLockTimeout, l.path, fmt.Errorf("lock %s not acquired before timeout", l.path))
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// AcquireTimeout is sugar over Acquire with a plain timeout instead of a
// caller-managed context, matching how most ybox-* call sites want it.
func (l *FileLock) AcquireTimeout(timeout time.Duration, mode Mode) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return l.Acquire(ctx, mode)
}

// Release drops one level of the re-entrant hold, actually unlocking and
// closing the underlying file descriptor once depth reaches zero.
func (l *FileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.depth--
	if l.depth > 0 {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	l.depth = 0
	if err != nil {
		return err
	}
	return closeErr
}
