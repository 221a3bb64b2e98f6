package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestLoadProfileWithIncludes(t *testing.T) {
	dir := t.TempDir()
	configHome := filepath.Join(dir, "config")

	common := filepath.Join(configHome, "profiles", "basic", "common.ini")
	writeFile(t, common, "[env]\nLANG = en_US.UTF-8\n")

	basic := filepath.Join(configHome, "profiles", "basic", "basic.ini")
	writeFile(t, basic, "[base]\nincludes = common.ini\nname = my-basic\n")

	profile, err := Load(LoadOptions{
		Distribution: "arch",
		Profile:      "basic",
		ConfigHome:   configHome,
		Placeholders: Placeholders{},
	})
	require.NoError(t, err)

	assert.Equal(t, "my-basic", profile.GetDefault("base", "name", ""))
	assert.Equal(t, "en_US.UTF-8", profile.GetDefault("env", "LANG", ""))
	// bundled distro.ini for arch still contributes [pkgmgr].
	assert.Contains(t, profile.GetDefault("pkgmgr", "install", ""), "pacman")
}

// TestLoadProfileIncludeCycleIsSafe: a cyclic include graph must
// terminate without mutating any file on disk.
func TestLoadProfileIncludeCycleIsSafe(t *testing.T) {
	dir := t.TempDir()
	configHome := filepath.Join(dir, "config")

	a := filepath.Join(configHome, "profiles", "cyclic", "a.ini")
	b := filepath.Join(configHome, "profiles", "cyclic", "b.ini")
	writeFile(t, a, "[base]\nincludes = b.ini\n")
	writeFile(t, b, "[base]\nincludes = a.ini\nname = from-b\n")

	basic := filepath.Join(configHome, "profiles", "cyclic", "basic.ini")
	writeFile(t, basic, "[base]\nincludes = a.ini\n")

	before, statErr := os.Stat(a)
	require.NoError(t, statErr)

	_, err := Load(LoadOptions{
		Distribution: "arch",
		Profile:      "cyclic",
		ConfigHome:   configHome,
	})
	// A cycle does not itself raise an error (each file is visited once);
	// what matters here is that no disk mutation occurred and resolution
	// terminates. A genuinely undefined interpolation reference, by
	// contrast, is a ConfigError - exercised in
	// TestResolvePercentUndefinedReference at the resolver layer.
	_ = err

	after, statErr := os.Stat(a)
	require.NoError(t, statErr)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestLoadMissingProfileIsConfigError(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(LoadOptions{
		Distribution: "arch",
		Profile:      "does-not-exist",
		ConfigHome:   filepath.Join(dir, "config"),
	})
	require.Error(t, err)
}
