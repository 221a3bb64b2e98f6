package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFrom(t *testing.T, sections map[string]map[string]string) *rawDoc {
	t.Helper()
	d := newRawDoc()
	for name, keys := range sections {
		for k, v := range keys {
			d.section(name)[k] = v
		}
	}
	return d
}

func TestResolvePercentSimple(t *testing.T) {
	d := docFrom(t, map[string]map[string]string{
		"base": {
			"name":    "arch",
			"greeting": "hello %(name)s",
		},
	})

	out, err := resolvePercent(d)
	require.NoError(t, err)
	assert.Equal(t, "hello arch", out.section("base")["greeting"])
}

func TestResolvePercentUndefinedReference(t *testing.T) {
	d := docFrom(t, map[string]map[string]string{
		"base": {"greeting": "hello %(missing)s"},
	})

	_, err := resolvePercent(d)
	require.Error(t, err)
}

func TestResolvePercentCycle(t *testing.T) {
	d := docFrom(t, map[string]map[string]string{
		"base": {
			"a": "%(b)s",
			"b": "%(a)s",
		},
	})

	_, err := resolvePercent(d)
	require.Error(t, err)
}

func TestResolveEnvRecognizedPlaceholder(t *testing.T) {
	d := docFrom(t, map[string]map[string]string{
		"mounts": {"home": "${TARGET_HOME}:/home/user:rw"},
	})

	out, err := resolveEnv(d, Placeholders{TargetHome: "/data/c1/home"})
	require.NoError(t, err)
	assert.Equal(t, "/data/c1/home:/home/user:rw", out.section("mounts")["home"])
}

func TestResolveEnvRecognizedPlaceholderUndefinedIsError(t *testing.T) {
	d := docFrom(t, map[string]map[string]string{
		"mounts": {"home": "${TARGET_HOME}:/home/user:rw"},
	})

	_, err := resolveEnv(d, Placeholders{})
	require.Error(t, err)
}

func TestResolveEnvUnrecognizedNameLeftLiteral(t *testing.T) {
	d := docFrom(t, map[string]map[string]string{
		"env": {"x": "${SOME_UNRELATED_THING}"},
	})

	out, err := resolveEnv(d, Placeholders{})
	require.NoError(t, err)
	assert.Equal(t, "${SOME_UNRELATED_THING}", out.section("env")["x"])
}

func TestJoinContinuations(t *testing.T) {
	in := "install = pacman -S `\n{quiet} {pkg}"
	out := joinContinuations(in)
	assert.Equal(t, "install = pacman -S {quiet} {pkg}", out)
}
