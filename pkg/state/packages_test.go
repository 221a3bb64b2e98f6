package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndGetPackage(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RegisterContainer(ctxBG(), Container{Name: "c1", Distribution: "arch"}))

	pkg := Package{
		Name:          "firefox",
		Container:     "c1",
		LocalCopies:   []string{"/home/u/.local/share/applications/c1-firefox.desktop", "/home/u/.local/bin/c1-firefox"},
		Flags:         map[string]string{"firefox": "--no-remote"},
		LocalCopyType: CopyBoth,
		Explicit:      true,
	}
	require.NoError(t, s.RecordPackage(ctxBG(), pkg, nil))

	got, err := s.GetPackage(ctxBG(), "firefox", "c1")
	require.NoError(t, err)
	assert.Equal(t, pkg.LocalCopies, got.LocalCopies)
	assert.Equal(t, pkg.Flags, got.Flags)
	assert.Equal(t, CopyBoth, got.LocalCopyType)
	assert.True(t, got.Explicit)
}

// TestRecordPackageIsIdempotent: recording the same package twice leaves
// a single row with the same contents.
func TestRecordPackageIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RegisterContainer(ctxBG(), Container{Name: "c1", Distribution: "arch"}))

	pkg := Package{Name: "firefox", Container: "c1", LocalCopyType: CopyDesktop, Explicit: true}
	require.NoError(t, s.RecordPackage(ctxBG(), pkg, nil))
	require.NoError(t, s.RecordPackage(ctxBG(), pkg, nil))

	pkgs, err := s.ListPackages(ctxBG(), "c1", true)
	require.NoError(t, err)
	assert.Len(t, pkgs, 1)
}

func TestRemovePackageIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RegisterContainer(ctxBG(), Container{Name: "c1", Distribution: "arch"}))
	require.NoError(t, s.RecordPackage(ctxBG(), Package{Name: "firefox", Container: "c1", Explicit: true}, nil))

	require.NoError(t, s.RemovePackage(ctxBG(), "firefox", "c1"))
	require.NoError(t, s.RemovePackage(ctxBG(), "firefox", "c1")) // no-op, no error

	_, err := s.GetPackage(ctxBG(), "firefox", "c1")
	assert.Error(t, err)
}

func TestListPackagesExcludesDependenciesByDefault(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RegisterContainer(ctxBG(), Container{Name: "c1", Distribution: "arch"}))
	require.NoError(t, s.RecordPackage(ctxBG(), Package{Name: "zoom", Container: "c1", Explicit: true}, nil))
	require.NoError(t, s.RecordPackage(ctxBG(), Package{Name: "qt5ct", Container: "c1", Explicit: false},
		[]PackageDep{{Name: "zoom", Container: "c1", Dependency: "qt5ct", DepType: DepOptional}}))

	explicitOnly, err := s.ListPackages(ctxBG(), "c1", false)
	require.NoError(t, err)
	assert.Len(t, explicitOnly, 1)
	assert.Equal(t, "zoom", explicitOnly[0].Name)

	all, err := s.ListPackages(ctxBG(), "c1", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
