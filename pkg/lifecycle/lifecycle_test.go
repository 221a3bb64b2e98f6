package lifecycle

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ybox-project/ybox/pkg/config"
	"github.com/ybox-project/ybox/pkg/engine"
	"github.com/ybox-project/ybox/pkg/sharedroot"
	"github.com/ybox-project/ybox/pkg/state"
)

func testStore(t *testing.T) *state.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := state.Open(dir+"/state.db", dir+"/state.db.lock")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

type fakeEngine struct {
	removed []string
	stopped []string
}

func (f *fakeEngine) Create(context.Context, engine.ContainerSpec) (string, error) { return "cid", nil }
func (f *fakeEngine) Start(context.Context, string) error                         { return nil }
func (f *fakeEngine) Stop(_ context.Context, name string, _ time.Duration) error {
	f.stopped = append(f.stopped, name)
	return nil
}
func (f *fakeEngine) Remove(_ context.Context, name string, _ bool) error {
	f.removed = append(f.removed, name)
	return nil
}
func (f *fakeEngine) Exec(context.Context, string, string, []string) (string, error) { return "", nil }
func (f *fakeEngine) ImageExists(context.Context, string) bool                       { return true }
func (f *fakeEngine) PullImage(context.Context, string) error                        { return nil }

func TestTombstoneNameIsUniquePerCall(t *testing.T) {
	a := TombstoneName("c1")
	b := TombstoneName("c1")
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "c1-destroyed-")
}

// TestDestroyRemovesContainerWithNoPackages checks that a container with
// no packages referencing it is removed outright, not tombstoned.
func TestDestroyRemovesContainerWithNoPackages(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	require.NoError(t, store.RegisterContainer(ctx, state.Container{Name: "c1", Distribution: "arch"}))

	eng := &fakeEngine{}
	m := New(testLog(), config.Paths{}, store, sharedroot.New(config.Paths{}), eng)

	require.NoError(t, m.Destroy(ctx, DestroyOptions{Name: "c1", StopTimeout: time.Second}))

	_, err := store.GetContainer(ctx, "c1")
	assert.Error(t, err)
	assert.Equal(t, []string{"c1"}, eng.stopped)
	assert.Equal(t, []string{"c1"}, eng.removed)
}

// TestDestroyTombstonesContainerWithSurvivingPackages checks that a
// container still referenced by package rows is renamed to a tombstone
// instead of deleted, and that --force-own-orphans transfers those rows
// onto another live container.
func TestDestroyTombstonesContainerWithSurvivingPackages(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	require.NoError(t, store.RegisterContainer(ctx, state.Container{Name: "c1", Distribution: "arch", SharedRoot: "/data/SHARED_ROOTS/arch"}))
	require.NoError(t, store.RegisterContainer(ctx, state.Container{Name: "c2", Distribution: "arch", SharedRoot: "/data/SHARED_ROOTS/arch"}))
	require.NoError(t, store.RecordPackage(ctx, state.Package{Name: "vim", Container: "c1", Explicit: true}, nil))

	eng := &fakeEngine{}
	m := New(testLog(), config.Paths{}, store, sharedroot.New(config.Paths{}), eng)

	require.NoError(t, m.Destroy(ctx, DestroyOptions{Name: "c1", ForceOwnOrphans: "c2", StopTimeout: time.Second}))

	_, err := store.GetContainer(ctx, "c1")
	assert.Error(t, err, "the original name must no longer resolve")

	pkgs, err := store.ListPackages(ctx, "c2", false)
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "vim", pkgs[0].Name)
}
