package lock

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLockExclusiveExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db.lock")

	first := New(path)
	require.NoError(t, first.AcquireTimeout(time.Second, Exclusive))

	second := New(path)
	err := second.AcquireTimeout(100*time.Millisecond, Exclusive)
	require.Error(t, err)

	require.NoError(t, first.Release())

	require.NoError(t, second.AcquireTimeout(time.Second, Exclusive))
	require.NoError(t, second.Release())
}

func TestFileLockReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db.lock")
	l := New(path)

	require.NoError(t, l.AcquireTimeout(time.Second, Exclusive))
	require.NoError(t, l.AcquireTimeout(time.Second, Shared))

	require.NoError(t, l.Release())
	require.NoError(t, l.Release())
}

// TestFileLockSerializesConcurrentInstallers: two concurrent holders
// contending for the same exclusive lock must serialize, and neither
// may observe the critical section as entered by both at once.
func TestFileLockSerializesConcurrentInstallers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared_root.lock")

	var inCriticalSection int32
	var overlapDetected int32

	run := func() {
		l := New(path)
		require.NoError(t, l.AcquireTimeout(5*time.Second, Exclusive))
		if atomic.AddInt32(&inCriticalSection, 1) > 1 {
			atomic.StoreInt32(&overlapDetected, 1)
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inCriticalSection, -1)
		require.NoError(t, l.Release())
	}

	done := make(chan struct{}, 2)
	go func() { run(); done <- struct{}{} }()
	go func() { run(); done <- struct{}{} }()
	<-done
	<-done

	assert.EqualValues(t, 0, overlapDetected)
}

func TestFileLockRespectsContextCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db.lock")

	holder := New(path)
	require.NoError(t, holder.AcquireTimeout(time.Second, Exclusive))
	defer holder.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	waiter := New(path)
	err := waiter.Acquire(ctx, Exclusive)
	require.Error(t, err)
}
