// Package lifecycle is the thin glue a `cmd/ybox-create`/`cmd/ybox-destroy`
// binary drives: it resolves a profile, compiles it into an
// engine.ContainerSpec, runs the shared-root bootstrap dance when needed,
// waits for the guest's status file, and records (or tombstones) the
// container row in the state store. Locking discipline throughout is
// state-DB lock, then shared-root lock, then engine operations, per the
// package orchestrator's own ordering.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ybox-project/ybox/pkg/config"
	"github.com/ybox-project/ybox/pkg/engine"
	"github.com/ybox-project/ybox/pkg/lock"
	"github.com/ybox-project/ybox/pkg/profile"
	"github.com/ybox-project/ybox/pkg/sharedroot"
	"github.com/ybox-project/ybox/pkg/state"
	"github.com/ybox-project/ybox/pkg/ybox"
)

// EngineClient is the subset of *engine.Engine lifecycle drives,
// narrowed to an interface for testability.
type EngineClient interface {
	Create(ctx context.Context, spec engine.ContainerSpec) (string, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string, timeout time.Duration) error
	Remove(ctx context.Context, name string, force bool) error
	Exec(ctx context.Context, name, asUser string, argv []string) (string, error)
	ImageExists(ctx context.Context, image string) bool
	PullImage(ctx context.Context, image string) error
}

// Manager ties the state store, shared-root manager, and engine
// adapter together for container creation and destruction.
type Manager struct {
	log    *logrus.Entry
	paths  config.Paths
	store  *state.Store
	shared *sharedroot.Manager
	engine EngineClient
}

// New returns a Manager.
func New(log *logrus.Entry, paths config.Paths, store *state.Store, shared *sharedroot.Manager, eng EngineClient) *Manager {
	return &Manager{log: log, paths: paths, store: store, shared: shared, engine: eng}
}

// CreateOptions carries the caller-facing flags of `ybox-create`.
type CreateOptions struct {
	Name           string
	Distribution   string
	Profile        string
	AllowHomeShare bool
	UID, GID       int
	StatusCeiling  time.Duration
}

func (m *Manager) placeholders(opts CreateOptions) config.Placeholders {
	return config.Placeholders{
		TargetHome:       m.paths.ContainerHomeDir(opts.Name),
		TargetScriptsDir: m.paths.ContainerScriptsDir(opts.Name),
		Home:             m.paths.ContainerHomeDir(opts.Name),
		User:             "user",
		XDGRuntimeDir:    m.paths.RuntimeDir,
		XDGConfigHome:    m.paths.ConfigHome,
		XDGDataHome:      m.paths.DataHome,
		ContainerName:    opts.Name,
		ContainerUID:     fmt.Sprintf("%d", opts.UID),
		ContainerGID:     fmt.Sprintf("%d", opts.GID),
	}
}

// Create resolves the profile, compiles a ContainerSpec, runs the
// shared-root bootstrap dance for the first container of a
// distribution if needed, starts the container, waits for its status
// file to reach "started", and registers it in the state store. The
// row is only written once the container is durably up, so a failed
// or interrupted create leaves no row behind.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) error {
	resolved, err := config.Load(config.LoadOptions{
		Distribution: opts.Distribution,
		Profile:      opts.Profile,
		ConfigHome:   m.paths.ConfigHome,
		Placeholders: m.placeholders(opts),
	})
	if err != nil {
		return err
	}

	useSharedRoot := resolved.GetBool("base", "use_shared_root", false)
	var sharedRootDir string
	if useSharedRoot {
		sharedRootDir = m.shared.Dir(opts.Distribution)
	}

	profOpts := profile.Options{
		ContainerName:  opts.Name,
		SharedRoot:     sharedRootDir,
		AllowHomeShare: opts.AllowHomeShare,
		HomeDir:        m.paths.ContainerHomeDir(opts.Name),
		UID:            opts.UID,
		GID:            opts.GID,
	}
	spec, manifest, err := profile.Compile(resolved, profOpts)
	if err != nil {
		return ybox.NewError(ybox.KindConfig, opts.Name, err)
	}

	if err := profile.WriteManifests(m.paths.ContainerScriptsDir(opts.Name), manifest); err != nil {
		return ybox.NewError(ybox.KindEngine, opts.Name, err)
	}

	if !m.engine.ImageExists(ctx, spec.Image) {
		if err := m.engine.PullImage(ctx, spec.Image); err != nil {
			return ybox.NewError(ybox.KindEngine, spec.Image, err)
		}
	}

	if useSharedRoot {
		sharedLock := m.shared.Lock(opts.Distribution)
		if err := sharedLock.Acquire(ctx, lock.Exclusive); err != nil {
			return err
		}
		defer sharedLock.Release()

		empty, err := m.shared.IsEmpty(opts.Distribution)
		if err != nil {
			return err
		}
		if empty {
			if err := m.bootstrapSharedRoot(ctx, opts, spec); err != nil {
				return err
			}
		}
	}

	if err := m.runContainer(ctx, opts, spec); err != nil {
		return err
	}

	return m.store.RegisterContainer(ctx, state.Container{
		Name:          opts.Name,
		Distribution:  opts.Distribution,
		SharedRoot:    sharedRootDir,
		Configuration: resolved.Dump(),
	})
}

// bootstrapSharedRoot runs the first-container dance: create and start
// the container with the shared root mounted writable at a dedicated
// bootstrap directory, wait for init.sh to finish (status "stopped"),
// copy its populated directories back into the shared root proper via
// the in-guest helper, tear the container down, and promote the
// bootstrap tree. The caller re-creates the container read-only
// immediately afterward in runContainer.
func (m *Manager) bootstrapSharedRoot(ctx context.Context, opts CreateOptions, spec engine.ContainerSpec) error {
	plan := m.shared.PlanBootstrap(opts.Distribution)

	bootstrapSpec := spec
	bootstrapSpec.Mounts = append([]engine.Mount{
		{Host: plan.WritableDir, Guest: "/ybox-shared-root", Mode: engine.MountReadWrite},
	}, spec.Mounts...)

	copyBack := func(ctx context.Context, plan sharedroot.BootstrapPlan) error {
		if _, err := m.engine.Create(ctx, bootstrapSpec); err != nil {
			return ybox.NewError(ybox.KindEngine, opts.Name, err)
		}
		if err := m.engine.Start(ctx, opts.Name); err != nil {
			return ybox.NewError(ybox.KindEngine, opts.Name, err)
		}
		if err := lock.WaitForStatus(ctx, m.paths.ContainerStatusFile(opts.Name), lock.StatusStopped, opts.StatusCeiling); err != nil {
			return err
		}
		if _, err := m.engine.Exec(ctx, opts.Name, "root", []string{"ybox-copy-shared-root", "/ybox-shared-root"}); err != nil {
			return ybox.NewError(ybox.KindEngine, opts.Name, err)
		}
		if err := m.engine.Remove(ctx, opts.Name, true); err != nil {
			return ybox.NewError(ybox.KindEngine, opts.Name, err)
		}
		return nil
	}

	return m.shared.Bootstrap(ctx, opts.Distribution, copyBack)
}

// runContainer creates, starts, and waits for readiness on the final
// (read-only-shared-root, if applicable) container.
func (m *Manager) runContainer(ctx context.Context, opts CreateOptions, spec engine.ContainerSpec) error {
	if _, err := m.engine.Create(ctx, spec); err != nil {
		return ybox.NewError(ybox.KindEngine, opts.Name, err)
	}
	if err := m.engine.Start(ctx, opts.Name); err != nil {
		return ybox.NewError(ybox.KindEngine, opts.Name, err)
	}
	return lock.WaitForStatus(ctx, m.paths.ContainerStatusFile(opts.Name), lock.StatusStarted, opts.StatusCeiling)
}

// DestroyOptions carries the caller-facing flags of `ybox-destroy`.
type DestroyOptions struct {
	Name             string
	Force            bool
	ForceOwnOrphans  string // another live container name to transfer orphaned packages to
	StopTimeout      time.Duration
}

// Destroy stops and removes the engine container, then applies the
// tombstone rule: if the container still has package rows referencing
// it (it shares a root with other containers), its row is renamed to a
// freshly generated unique tombstone name rather than deleted, since
// state that might still be referenced is never removed outright.
// ForceOwnOrphans, if set, additionally transfers any such orphaned
// rows onto another live container immediately.
func (m *Manager) Destroy(ctx context.Context, opts DestroyOptions) error {
	if _, err := m.store.GetContainer(ctx, opts.Name); err != nil {
		return ybox.NewError(ybox.KindUser, opts.Name, fmt.Errorf("no such container: %w", err))
	}

	if err := m.engine.Stop(ctx, opts.Name, opts.StopTimeout); err != nil && !opts.Force {
		return ybox.NewError(ybox.KindEngine, opts.Name, err)
	}
	if err := m.engine.Remove(ctx, opts.Name, opts.Force); err != nil && !opts.Force {
		return ybox.NewError(ybox.KindEngine, opts.Name, err)
	}

	tombstone := TombstoneName(opts.Name)
	if err := m.store.MarkContainerDestroyed(ctx, opts.Name, tombstone); err != nil {
		return err
	}

	if opts.ForceOwnOrphans != "" {
		if err := m.store.TransferOrphanPackages(ctx, tombstone, opts.ForceOwnOrphans); err != nil {
			return err
		}
	}
	return nil
}

// TombstoneName generates the unique name a destroyed container's row
// is renamed to when it still has packages referencing it, built on
// the container's own name so a tombstone remains recognizable in
// `ybox-ls -a` output.
func TombstoneName(name string) string {
	return fmt.Sprintf("%s-destroyed-%s", name, uuid.New().String())
}
