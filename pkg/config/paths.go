package config

import (
	"os"
	"path/filepath"

	"github.com/OpenPeeDeeP/xdg"
)

const appName = "ybox"

// Paths resolves every on-disk location ybox persists state under,
// built on OpenPeeDeeP/xdg, with a data/config/runtime triple instead
// of a single config directory.
type Paths struct {
	DataHome    string // ~/.local/share/ybox
	ConfigHome  string // ~/.config/ybox
	RuntimeDir  string // $XDG_RUNTIME_DIR (no ybox subdir: used only for sockets/locks that must not persist)
}

// NewPaths resolves the XDG directories for the current user, with no
// vendor subdirectory, since ybox is not nested under a vendor name.
func NewPaths() Paths {
	dirs := xdg.New("", appName)
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = filepath.Join(os.TempDir(), "ybox-run")
	}
	return Paths{
		DataHome:   dirs.DataHome(),
		ConfigHome: dirs.ConfigHome(),
		RuntimeDir: runtimeDir,
	}
}

// StateDBPath is the well-known SQLite path under the data directory.
func (p Paths) StateDBPath() string {
	return filepath.Join(p.DataHome, "state.db")
}

// StateLockPath is the sibling lock file guarding the state DB.
func (p Paths) StateLockPath() string {
	return filepath.Join(p.DataHome, "state.db.lock")
}

// SharedRootsDir is the root of every distribution's shared root tree.
func (p Paths) SharedRootsDir() string {
	return filepath.Join(p.DataHome, "SHARED_ROOTS")
}

// SharedRootDir is the shared root tree for one distribution.
func (p Paths) SharedRootDir(distribution string) string {
	return filepath.Join(p.SharedRootsDir(), distribution)
}

// SharedRootLockPath guards first-container bootstrap and package install
// coordination for a distribution's shared root.
func (p Paths) SharedRootLockPath(distribution string) string {
	return filepath.Join(p.SharedRootsDir(), "."+distribution+".lock")
}

// ContainerDir is the per-container directory holding home/, logs/, scripts/.
func (p Paths) ContainerDir(name string) string {
	return filepath.Join(p.DataHome, name)
}

// ContainerHomeDir is the guest HOME bind-mount source.
func (p Paths) ContainerHomeDir(name string) string {
	return filepath.Join(p.ContainerDir(name), "home")
}

// ContainerLogsDir holds the container's log output.
func (p Paths) ContainerLogsDir(name string) string {
	return filepath.Join(p.ContainerDir(name), "logs")
}

// ContainerScriptsDir is bind-mounted into the container as
// $YBOX_TARGET_SCRIPTS_DIR.
func (p Paths) ContainerScriptsDir(name string) string {
	return filepath.Join(p.ContainerDir(name), "scripts")
}

// ContainerStatusFile is the guest-written status file gating readiness.
func (p Paths) ContainerStatusFile(name string) string {
	return filepath.Join(p.ContainerScriptsDir(name), "status")
}

// ProfileDir is where a user keeps their own profile INI files.
func (p Paths) ProfileDir(profile string) string {
	return filepath.Join(p.ConfigHome, "profiles", profile)
}

// DistroOverrideFile is an optional user override for a bundled
// distribution INI.
func (p Paths) DistroOverrideFile(distribution string) string {
	return filepath.Join(p.ConfigHome, "distros", distribution, "distro.ini")
}

// hostDataHome is the plain $XDG_DATA_HOME, independent of ybox's own
// DataHome subdirectory, for wrapper artifacts that must land where a
// desktop environment or shell actually looks for them.
func hostDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share")
}

// WrapperApplicationsDir is $XDG_DATA_HOME/applications, where rewritten
// .desktop entries are installed.
func (p Paths) WrapperApplicationsDir() string {
	return filepath.Join(hostDataHome(), "applications")
}

// WrapperBinDir is $HOME/.local/bin, where executable trampoline shims
// are installed.
func (p Paths) WrapperBinDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "bin")
}

// WrapperManDir is $XDG_DATA_HOME/man, where man-page symlinks are
// installed under their section subdirectory.
func (p Paths) WrapperManDir() string {
	return filepath.Join(hostDataHome(), "man")
}

// TrampolineBin is the installed path of the exec-into-container
// trampoline every wrapper shim and rewritten .desktop entry invokes,
// overridable for non-standard installs.
func TrampolineBin() string {
	if v := os.Getenv("YBOX_TRAMPOLINE_BIN"); v != "" {
		return v
	}
	return "/usr/local/libexec/ybox-trampoline"
}
