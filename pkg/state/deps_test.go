package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDependencyRefcountReachesZeroAfterLastDependentRemoved verifies the
// refcount drops to zero once every dependent package is gone.
func TestDependencyRefcountReachesZeroAfterLastDependentRemoved(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RegisterContainer(ctxBG(), Container{Name: "c1", Distribution: "arch"}))
	require.NoError(t, s.RecordPackage(ctxBG(), Package{Name: "zoom", Container: "c1", Explicit: true}, nil))
	require.NoError(t, s.RecordPackage(ctxBG(), Package{Name: "skype", Container: "c1", Explicit: true}, nil))
	require.NoError(t, s.RecordPackage(ctxBG(), Package{Name: "qt5ct", Container: "c1", Explicit: false}, nil))

	require.NoError(t, s.IncrementDepRefcount(ctxBG(), "zoom", "c1", "qt5ct", DepOptional))
	require.NoError(t, s.IncrementDepRefcount(ctxBG(), "skype", "c1", "qt5ct", DepOptional))

	count, err := s.DependencyRefcount(ctxBG(), "qt5ct", "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	remaining, err := s.DecrementDepRefcount(ctxBG(), "zoom", "c1", "qt5ct")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	remaining, err = s.DecrementDepRefcount(ctxBG(), "skype", "c1", "qt5ct")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestIncrementDepRefcountRejectsSelfDependency(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RegisterContainer(ctxBG(), Container{Name: "c1", Distribution: "arch"}))
	require.NoError(t, s.RecordPackage(ctxBG(), Package{Name: "zoom", Container: "c1", Explicit: true}, nil))

	err := s.IncrementDepRefcount(ctxBG(), "zoom", "c1", "zoom", DepRequired)
	assert.Error(t, err)
}

func TestIncrementDepRefcountIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RegisterContainer(ctxBG(), Container{Name: "c1", Distribution: "arch"}))
	require.NoError(t, s.RecordPackage(ctxBG(), Package{Name: "zoom", Container: "c1", Explicit: true}, nil))
	require.NoError(t, s.RecordPackage(ctxBG(), Package{Name: "qt5ct", Container: "c1", Explicit: false}, nil))

	require.NoError(t, s.IncrementDepRefcount(ctxBG(), "zoom", "c1", "qt5ct", DepOptional))
	require.NoError(t, s.IncrementDepRefcount(ctxBG(), "zoom", "c1", "qt5ct", DepOptional))

	dependents, err := s.ListDependents(ctxBG(), "qt5ct", "c1")
	require.NoError(t, err)
	assert.Len(t, dependents, 1)
}
