package wrapper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ybox-project/ybox/pkg/state"
)

func testGenerator(t *testing.T) (*Generator, string) {
	t.Helper()
	dir := t.TempDir()
	return &Generator{
		Container:       "c1",
		ApplicationsDir: filepath.Join(dir, "applications"),
		BinDir:          filepath.Join(dir, "bin"),
		ManDir:          filepath.Join(dir, "man"),
		TrampolineBin:   "/usr/local/libexec/ybox-trampoline",
	}, dir
}

const sampleDesktop = `[Desktop Entry]
Name=Firefox
Exec=firefox %u
Type=Application

[Desktop Action new-window]
Name=Open a New Window
Exec=firefox --new-window %u
`

// TestInstallDesktopEntryPreservesFieldCodes exercises desktop entry
// field-code preservation across both the default group and an action
// group.
func TestInstallDesktopEntryPreservesFieldCodes(t *testing.T) {
	g, _ := testGenerator(t)

	dest, err := g.InstallDesktopEntry("/usr/share/applications/firefox.desktop", "firefox", "--no-remote", []byte(sampleDesktop))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(g.ApplicationsDir, "c1-firefox.desktop"), dest)

	contents, err := os.ReadFile(dest)
	require.NoError(t, err)
	text := string(contents)

	assert.Contains(t, text, "Exec=/usr/local/libexec/ybox-trampoline c1 firefox --no-remote %u")
	assert.Contains(t, text, "Exec=/usr/local/libexec/ybox-trampoline c1 firefox --new-window --no-remote %u")
	assert.Contains(t, text, "Name=Firefox")
}

func TestInstallExecutableShimIsIdempotentAndExecutable(t *testing.T) {
	g, _ := testGenerator(t)

	dest, err := g.InstallExecutableShim("firefox", "")
	require.NoError(t, err)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o111)

	// Idempotent: installing again overwrites cleanly, no error.
	_, err = g.InstallExecutableShim("firefox", "")
	assert.NoError(t, err)
}

func TestInstallManLinkReplacesExistingLink(t *testing.T) {
	g, dir := testGenerator(t)
	guestMan := filepath.Join(dir, "firefox.1")
	require.NoError(t, os.WriteFile(guestMan, []byte("man page"), 0o644))

	dest, err := g.InstallManLink(guestMan, "man1")
	require.NoError(t, err)

	dest2, err := g.InstallManLink(guestMan, "man1")
	require.NoError(t, err)
	assert.Equal(t, dest, dest2)
}

// TestRemoveIsIdempotent: removing already-missing wrapper files is not
// an error.
func TestRemoveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0o644))
	missing := filepath.Join(dir, "missing")

	err := Remove([]string{present, missing})
	require.NoError(t, err)

	_, err = os.Stat(present)
	assert.True(t, os.IsNotExist(err))
}

func TestTypeForClassifiesByDirectory(t *testing.T) {
	mask := TypeFor(
		[]string{"/data/applications/c1-firefox.desktop", "/data/bin/c1-firefox"},
		"/data/applications", "/data/bin",
	)
	assert.Equal(t, state.CopyBoth, mask)
}
