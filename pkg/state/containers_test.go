package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterContainerIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	c := Container{Name: "c1", Distribution: "arch", SharedRoot: "/shared/arch", Configuration: "[base]\n"}

	require.NoError(t, s.RegisterContainer(ctxBG(), c))
	require.NoError(t, s.RegisterContainer(ctxBG(), c))

	got, err := s.GetContainer(ctxBG(), "c1")
	require.NoError(t, err)
	assert.Equal(t, c.Distribution, got.Distribution)
	assert.False(t, got.Destroyed)
}

// TestMarkContainerDestroyedWithoutPackagesRemovesRow and
// TestMarkContainerDestroyedWithPackagesCreatesTombstone cover the two
// branches of the tombstone rule.
func TestMarkContainerDestroyedWithoutPackagesRemovesRow(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RegisterContainer(ctxBG(), Container{Name: "c1", Distribution: "arch"}))

	require.NoError(t, s.MarkContainerDestroyed(ctxBG(), "c1", "c1-destroyed-1"))

	_, err := s.GetContainer(ctxBG(), "c1")
	assert.Error(t, err)
	_, err = s.GetContainer(ctxBG(), "c1-destroyed-1")
	assert.Error(t, err)
}

func TestMarkContainerDestroyedWithPackagesCreatesTombstone(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RegisterContainer(ctxBG(), Container{Name: "c1", Distribution: "arch"}))
	require.NoError(t, s.RecordPackage(ctxBG(), Package{Name: "firefox", Container: "c1", Explicit: true}, nil))

	require.NoError(t, s.MarkContainerDestroyed(ctxBG(), "c1", "c1-destroyed-1"))

	tomb, err := s.GetContainer(ctxBG(), "c1-destroyed-1")
	require.NoError(t, err)
	assert.True(t, tomb.Destroyed)

	pkgs, err := s.ListPackages(ctxBG(), "c1-destroyed-1", true)
	require.NoError(t, err)
	assert.Len(t, pkgs, 1)
}

func TestPurgeDestroyedIfUnreferenced(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RegisterContainer(ctxBG(), Container{Name: "c1", Distribution: "arch"}))
	require.NoError(t, s.RecordPackage(ctxBG(), Package{Name: "firefox", Container: "c1", Explicit: true}, nil))
	require.NoError(t, s.MarkContainerDestroyed(ctxBG(), "c1", "c1-destroyed-1"))

	purged, err := s.PurgeDestroyedIfUnreferenced(ctxBG())
	require.NoError(t, err)
	assert.Equal(t, 0, purged) // still referenced by the firefox package row

	require.NoError(t, s.RemovePackage(ctxBG(), "firefox", "c1-destroyed-1"))

	purged, err = s.PurgeDestroyedIfUnreferenced(ctxBG())
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
}

func TestTransferOrphanPackages(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RegisterContainer(ctxBG(), Container{Name: "c1", Distribution: "arch"}))
	require.NoError(t, s.RegisterContainer(ctxBG(), Container{Name: "c2", Distribution: "arch"}))
	require.NoError(t, s.RecordPackage(ctxBG(), Package{Name: "firefox", Container: "c1", Explicit: true}, nil))
	require.NoError(t, s.MarkContainerDestroyed(ctxBG(), "c1", "c1-destroyed-1"))

	require.NoError(t, s.TransferOrphanPackages(ctxBG(), "c1-destroyed-1", "c2"))

	pkgs, err := s.ListPackages(ctxBG(), "c2", true)
	require.NoError(t, err)
	assert.Len(t, pkgs, 1)
}
