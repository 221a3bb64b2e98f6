// Package sharedroot implements the copy-on-first-use shared-root
// lifecycle: multiple containers of one distribution share read-only
// /usr, /etc, /opt, /var trees to save disk and memory, coordinated by
// a per-distribution file lock.
package sharedroot

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ybox-project/ybox/pkg/config"
	"github.com/ybox-project/ybox/pkg/lock"
	"github.com/ybox-project/ybox/pkg/ybox"
)

// Manager coordinates allocation, bootstrap, and teardown of shared
// roots for one host.
type Manager struct {
	paths config.Paths
}

// New returns a Manager rooted at the host's ybox data directory.
func New(paths config.Paths) *Manager {
	return &Manager{paths: paths}
}

// Dir returns the shared-root directory path for a distribution. It
// creates nothing on disk; the shared root itself is only created via
// Bootstrap.
func (m *Manager) Dir(distribution string) string {
	return m.paths.SharedRootDir(distribution)
}

// Lock returns the per-distribution shared-root file lock, guarding
// first-container bootstrap and package installs. Lock ordering is
// always state-DB lock, then shared-root lock, then engine operations.
func (m *Manager) Lock(distribution string) *lock.FileLock {
	return lock.New(m.paths.SharedRootLockPath(distribution))
}

// scaffoldEntries are directories Allocate creates ahead of any real
// distribution content; IsEmpty ignores them so allocating a shared
// root's overlay directories doesn't itself look like population.
var scaffoldEntries = map[string]bool{"writable": true, ".bootstrap": true}

// IsEmpty reports whether the shared root for distribution has not yet
// been populated (the signal that this container is the bootstrap
// container for its distribution).
func (m *Manager) IsEmpty(distribution string) (bool, error) {
	dir := m.Dir(distribution)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, ybox.NewError(ybox.KindEngine, dir, err)
	}
	for _, e := range entries {
		if !scaffoldEntries[e.Name()] {
			return false, nil
		}
	}
	return true, nil
}

// Allocate ensures the shared-root and writable-overlay directories
// exist for a distribution.
func (m *Manager) Allocate(distribution string) error {
	dir := m.Dir(distribution)
	for _, sub := range []string{"", "/writable/var/log", "/writable/var/cache"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return ybox.NewError(ybox.KindEngine, dir, err)
		}
	}
	return nil
}

// BootstrapPlan describes the two-phase dance needed for the first
// container of a distribution: the caller creates and runs the
// container writably mounted, waits for `stopped`, invokes CopyBack,
// tears the container down, then re-creates it read-only.
type BootstrapPlan struct {
	Distribution string
	WritableDir  string // host path the first container's shared root mount points at
}

// PlanBootstrap returns the writable mount point a first-boot container
// should use, under a dedicated "bootstrap" subdirectory of the shared
// root so CopyBack has a stable secondary bind mount distinct from the
// shared-root tree itself.
func (m *Manager) PlanBootstrap(distribution string) BootstrapPlan {
	return BootstrapPlan{
		Distribution: distribution,
		WritableDir:  filepath.Join(m.Dir(distribution), ".bootstrap"),
	}
}

// CopyBackFunc invokes the in-guest helper that copies the bootstrap
// container's populated directories back into the shared-root tree; it
// is supplied by the caller (ybox-create) since it goes through the
// engine adapter's Exec, which sharedroot does not import directly to
// avoid a dependency cycle between engine orchestration and shared-root
// bookkeeping.
type CopyBackFunc func(ctx context.Context, plan BootstrapPlan) error

// Bootstrap runs the full first-container dance: allocate, invoke
// copyBack, then promote the bootstrap tree into the shared root proper.
func (m *Manager) Bootstrap(ctx context.Context, distribution string, copyBack CopyBackFunc) error {
	if err := m.Allocate(distribution); err != nil {
		return err
	}
	plan := m.PlanBootstrap(distribution)
	if err := os.MkdirAll(plan.WritableDir, 0o755); err != nil {
		return ybox.NewError(ybox.KindEngine, plan.WritableDir, err)
	}

	if err := copyBack(ctx, plan); err != nil {
		return err
	}

	return m.promote(plan)
}

// promote moves the populated bootstrap tree's contents into the shared
// root's top level, where subsequent containers mount it read-only.
func (m *Manager) promote(plan BootstrapPlan) error {
	entries, err := os.ReadDir(plan.WritableDir)
	if err != nil {
		return ybox.NewError(ybox.KindEngine, plan.WritableDir, err)
	}
	dest := m.Dir(plan.Distribution)
	for _, e := range entries {
		src := filepath.Join(plan.WritableDir, e.Name())
		dst := filepath.Join(dest, e.Name())
		if err := os.Rename(src, dst); err != nil {
			return ybox.NewError(ybox.KindEngine, src, err)
		}
	}
	return os.Remove(plan.WritableDir)
}
