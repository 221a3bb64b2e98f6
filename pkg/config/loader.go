package config

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed distros
var bundledDistros embed.FS

// LoadOptions parameterizes a single profile resolution: the load order
// for a container's configuration.
type LoadOptions struct {
	Distribution string // short code, e.g. "arch", "debian"
	Profile      string // profile name, e.g. "basic"
	ConfigHome   string // paths.ConfigHome
	Placeholders Placeholders
}

// Load resolves distro.ini -> user overrides -> profile basic.ini (with
// its own includes), last write wins per key, and returns the flat
// ResolvedProfile.
func Load(opts LoadOptions) (*ResolvedProfile, error) {
	visited := map[string]bool{}
	merged := newRawDoc()

	bundled, err := loadBundledDistro(opts.Distribution, visited)
	if err != nil {
		return nil, err
	}
	merged.merge(bundled)

	overridePath := filepath.Join(opts.ConfigHome, "distros", opts.Distribution, "distro.ini")
	if fileExists(overridePath) {
		override, err := loadChain(overridePath, visited)
		if err != nil {
			return nil, err
		}
		merged.merge(override)
	}

	profilePath := filepath.Join(opts.ConfigHome, "profiles", opts.Profile, "basic.ini")
	if !fileExists(profilePath) {
		return nil, ConfigErrorf(profilePath, "profile %q not found for distribution %q", opts.Profile, opts.Distribution)
	}
	profileDoc, err := loadChain(profilePath, visited)
	if err != nil {
		return nil, err
	}
	merged.merge(profileDoc)

	return Resolve(merged, opts.Placeholders)
}

// LoadDump re-parses a container's stored configuration snapshot (the
// text a prior ResolvedProfile.Dump produced) back into a
// ResolvedProfile. The dump already carries fully expanded values, so
// it is parsed directly with no interpolation or placeholder pass: a
// `ybox-pkg` invocation against an existing container uses the exact
// profile that container was created with, never a re-resolution
// against the (possibly since-edited) on-disk profile.
func LoadDump(text string) (*ResolvedProfile, error) {
	doc, err := parseRawBytes("<stored configuration>", []byte(text))
	if err != nil {
		return nil, err
	}
	return &ResolvedProfile{sections: doc.sections}, nil
}

// loadBundledDistro loads distros/<id>/distro.ini from the embedded FS.
// Embedded distribution INIs cannot include files outside the embed.FS
// tree, so their own base.includes chain (if any) is resolved against
// that FS rather than the host filesystem.
func loadBundledDistro(distribution string, visited map[string]bool) (*rawDoc, error) {
	path := fmt.Sprintf("distros/%s/distro.ini", distribution)
	return loadEmbeddedChain(bundledDistros, path, visited)
}

func loadEmbeddedChain(fsys embed.FS, path string, visited map[string]bool) (*rawDoc, error) {
	canon := "embed:" + path
	if visited[canon] {
		return newRawDoc(), nil
	}
	visited[canon] = true

	contents, err := fsys.ReadFile(path)
	if err != nil {
		return nil, ConfigErrorf(path, "unknown bundled distribution: %w", err)
	}

	self, err := parseRawBytes(path, contents)
	if err != nil {
		return nil, err
	}

	result := newRawDoc()
	includes := parseIncludeList(self.section("base")["includes"])
	dir := filepath.Dir(path)
	for _, inc := range includes {
		incPath := inc
		if !filepath.IsAbs(incPath) {
			incPath = filepath.Join(dir, inc)
		}
		child, err := loadEmbeddedChain(fsys, incPath, visited)
		if err != nil {
			return nil, err
		}
		result.merge(child)
	}
	result.merge(self)
	return result, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ListBundledDistros enumerates the distribution codes shipped in the
// binary, for `ybox-create --help`-style discovery.
func ListBundledDistros() ([]string, error) {
	entries, err := fs.ReadDir(bundledDistros, "distros")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
