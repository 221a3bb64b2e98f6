package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddListRemoveRepo(t *testing.T) {
	s := newTestStore(t)

	r := Repo{
		Name:            "multilib",
		ContainerOrRoot: "/shared/arch",
		URLs:            []string{"https://mirror.example/arch/multilib"},
		Key:             "0xDEADBEEF",
		WithSourceRepo:  true,
	}
	require.NoError(t, s.AddRepo(ctxBG(), r))
	require.NoError(t, s.AddRepo(ctxBG(), r)) // idempotent

	repos, err := s.ListRepos(ctxBG(), "/shared/arch")
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, r.URLs, repos[0].URLs)
	assert.True(t, repos[0].WithSourceRepo)

	require.NoError(t, s.RemoveRepo(ctxBG(), "multilib", "/shared/arch"))
	repos, err = s.ListRepos(ctxBG(), "/shared/arch")
	require.NoError(t, err)
	assert.Empty(t, repos)
}
