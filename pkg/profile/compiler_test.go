package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ybox-project/ybox/pkg/config"
)

func TestCompileRejectsMissingImage(t *testing.T) {
	resolved := buildResolved(t, map[string]map[string]string{
		"base": {"name": "c1"},
	})
	_, _, err := Compile(resolved, Options{ContainerName: "c1"})
	assert.Error(t, err)
}

func TestCompileMountsSharedRootReadOnly(t *testing.T) {
	resolved := buildResolved(t, map[string]map[string]string{
		"base": {"image": "docker.io/library/archlinux:latest", "shared_root_dirs": "/usr,/etc"},
	})
	spec, _, err := Compile(resolved, Options{ContainerName: "c1", SharedRoot: "/shared/arch"})
	require.NoError(t, err)

	var sawUsr bool
	for _, m := range spec.Mounts {
		if m.Guest == "/usr" {
			sawUsr = true
			assert.Equal(t, "ro", string(m.Mode))
		}
	}
	assert.True(t, sawUsr)
}

func TestCompileNeverMountsHomeWithoutOptIn(t *testing.T) {
	resolved := buildResolved(t, map[string]map[string]string{
		"base": {"image": "docker.io/library/archlinux:latest"},
	})
	spec, _, err := Compile(resolved, Options{ContainerName: "c1", HomeDir: "/home/u", AllowHomeShare: false})
	require.NoError(t, err)

	for _, m := range spec.Mounts {
		assert.NotEqual(t, "/home/u", m.Host)
	}
}

func TestCompileStripsPrivilegedCaps(t *testing.T) {
	resolved := buildResolved(t, map[string]map[string]string{
		"base":     {"image": "docker.io/library/archlinux:latest"},
		"security": {"caps_add": "NET_BIND_SERVICE,SYS_ADMIN"},
	})
	spec, _, err := Compile(resolved, Options{ContainerName: "c1"})
	require.NoError(t, err)

	assert.Contains(t, spec.CapsAdd, "NET_BIND_SERVICE")
	assert.NotContains(t, spec.CapsAdd, "SYS_ADMIN")
}

func TestCompileBuildsAppAndConfigManifests(t *testing.T) {
	resolved := buildResolved(t, map[string]map[string]string{
		"base":    {"image": "docker.io/library/archlinux:latest"},
		"apps":    {"install": "firefox,zoom"},
		"app_flags": {"firefox": "--no-remote"},
		"configs": {"fontconfig": "/etc/fonts/local.conf -> /etc/fonts/local.conf [COPY]"},
		"startup": {"commands": "systemctl --user start pulseaudio"},
	})
	_, manifest, err := Compile(resolved, Options{ContainerName: "c1"})
	require.NoError(t, err)

	require.Len(t, manifest.Apps, 2)
	assert.Equal(t, "firefox", manifest.Apps[0].Name)
	assert.Equal(t, "--no-remote", manifest.Apps[0].Flags)

	require.Len(t, manifest.Configs, 1)
	assert.Equal(t, ActionCopy, manifest.Configs[0].Action)
	assert.Equal(t, "/etc/fonts/local.conf", manifest.Configs[0].GuestTarget)

	require.Len(t, manifest.Startup, 1)
}

func TestWriteManifestsCreatesFiles(t *testing.T) {
	dir := t.TempDir()
	m := Manifest{
		Apps:    []AppEntry{{Name: "firefox"}},
		Configs: []ConfigEntry{{HostSource: "/a", GuestTarget: "/b", Action: ActionLink}},
		Startup: []string{"echo hi"},
	}
	require.NoError(t, WriteManifests(dir, m))

	for _, f := range []string{appManifestFile, configManifestFile, startupManifestFile} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err)
	}
}

// buildResolved constructs a ResolvedProfile directly from in-memory
// section maps, bypassing the INI loader — these tests exercise the
// profile compiler in isolation from config parsing.
func buildResolved(t *testing.T, sections map[string]map[string]string) *config.ResolvedProfile {
	t.Helper()
	return config.NewResolvedProfileForTesting(sections)
}
