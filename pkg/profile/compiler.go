// Package profile translates a resolved INI profile into a concrete
// engine.ContainerSpec plus the manifest files an entrypoint consumes,
// enforcing a fixed set of security defaults along the way.
package profile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ybox-project/ybox/pkg/config"
	"github.com/ybox-project/ybox/pkg/engine"
)

// ConfigAction tags one [configs] entry with how it reaches the guest.
type ConfigAction string

const (
	ActionCopy    ConfigAction = "COPY"
	ActionLink    ConfigAction = "LINK"
	ActionLinkDir ConfigAction = "LINK_DIR"
)

// ConfigEntry is one manifest line copied into the container's scripts
// directory for its entrypoint to apply.
type ConfigEntry struct {
	HostSource  string
	GuestTarget string
	Action      ConfigAction
}

// AppEntry is one [apps] line: a package name plus its resolved extra
// argv fragments from [app_flags].
type AppEntry struct {
	Name  string
	Flags string
}

// Manifest is the three ordered lists the profile compiler hands to the
// entrypoint via files in the container's scripts directory.
type Manifest struct {
	Configs []ConfigEntry
	Apps    []AppEntry
	Startup []string
}

// Options carries the caller-controlled knobs that are not themselves
// part of the INI profile: the container's name, its shared root (if
// any), and whether the operator explicitly opted into sharing $HOME.
type Options struct {
	ContainerName  string
	SharedRoot     string // absolute path, or "" if this distro/profile has none
	AllowHomeShare bool
	HomeDir        string
	UID, GID       int
}

// sharedRootGuestDirs are the directories bind-mounted read-only from a
// shared root when one is configured, driven by [base].shared_root_dirs.
func sharedRootGuestDirs(resolved *config.ResolvedProfile) []string {
	raw := resolved.GetDefault("base", "shared_root_dirs", "/usr,/etc,/opt,/var")
	return splitList(raw)
}

// Compile produces a ContainerSpec and Manifest from a fully resolved
// profile. It enforces a fixed set of security defaults: shared
// root directories are always mounted read-only, $HOME is never mounted
// unless allow_home_share=true, and privileged security flags the
// profile may request are dropped rather than honored blindly.
func Compile(resolved *config.ResolvedProfile, opts Options) (engine.ContainerSpec, Manifest, error) {
	spec := engine.ContainerSpec{
		Image:    resolved.GetDefault("base", "image", ""),
		Name:     opts.ContainerName,
		Hostname: opts.ContainerName,
		UID:      opts.UID,
		GID:      opts.GID,
		UserNS:   engine.UserNSKeepID,
		Env:      map[string]string{},
	}
	if spec.Image == "" {
		return spec, Manifest{}, fmt.Errorf("profile [base].image is required")
	}

	if opts.SharedRoot != "" {
		for _, dir := range sharedRootGuestDirs(resolved) {
			spec.Mounts = append(spec.Mounts, engine.Mount{
				Host:  opts.SharedRoot + dir,
				Guest: dir,
				Mode:  engine.MountReadOnly,
			})
		}
		// Writable overlays the shared root still needs even read-only.
		for _, dir := range []string{"/var/log", "/var/cache"} {
			spec.Mounts = append(spec.Mounts, engine.Mount{
				Host:  opts.SharedRoot + "/writable" + dir,
				Guest: dir,
				Mode:  engine.MountReadWrite,
			})
		}
	}

	applyMounts(resolved, &spec)
	applyEnv(resolved, &spec)
	applySecurity(resolved, &spec)

	if opts.AllowHomeShare && opts.HomeDir != "" {
		spec.Mounts = append(spec.Mounts, engine.Mount{Host: opts.HomeDir, Guest: "/home/" + guestUser(resolved), Mode: engine.MountReadWrite})
	}

	manifest := Manifest{
		Configs: buildConfigEntries(resolved),
		Apps:    buildAppEntries(resolved),
		Startup: splitList(resolved.GetDefault("startup", "commands", "")),
	}

	return spec, manifest, nil
}

func guestUser(resolved *config.ResolvedProfile) string {
	return resolved.GetDefault("base", "user", "user")
}

// applyMounts reads the [mounts] section, whose keys are arbitrary names
// and whose values are "host:guest[:mode]" triplets.
func applyMounts(resolved *config.ResolvedProfile, spec *engine.ContainerSpec) {
	section := resolved.Section("mounts")
	keys := sortedKeys(section)
	for _, k := range keys {
		m, err := parseMountValue(section[k])
		if err != nil {
			continue // malformed entries are skipped; caller surfaces profile lint separately
		}
		spec.Mounts = append(spec.Mounts, m)
	}
}

func parseMountValue(value string) (engine.Mount, error) {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) < 2 {
		return engine.Mount{}, fmt.Errorf("malformed mount %q", value)
	}
	m := engine.Mount{Host: parts[0], Guest: parts[1], Mode: engine.MountReadWrite}
	if len(parts) == 3 {
		m.Mode = engine.MountMode(parts[2])
	}
	return m, nil
}

func applyEnv(resolved *config.ResolvedProfile, spec *engine.ContainerSpec) {
	for k, v := range resolved.Section("env") {
		spec.Env[k] = v
	}
}

// privilegedCapsDenylist is never honored even if a profile requests it.
var privilegedCapsDenylist = map[string]bool{
	"SYS_ADMIN": true,
	"SYS_MODULE": true,
	"SYS_RAWIO": true,
	"NET_ADMIN": true,
}

func applySecurity(resolved *config.ResolvedProfile, spec *engine.ContainerSpec) {
	section := resolved.Section("security")
	for _, c := range splitList(section["caps_add"]) {
		c = strings.ToUpper(strings.TrimSpace(c))
		if privilegedCapsDenylist[c] {
			continue
		}
		spec.CapsAdd = append(spec.CapsAdd, c)
	}
	spec.CapsDrop = splitList(section["caps_drop"])
	spec.SeccompProfile = section["seccomp"]
	spec.NoNewPrivs = resolved.GetBool("security", "no_new_privileges", true)
	spec.DisableLabel = resolved.GetBool("security", "disable_label", false)

	if limit, ok := section["pids_limit"]; ok {
		if n, err := strconv.Atoi(limit); err == nil {
			spec.PidsLimit = n
		}
	}
}

func buildConfigEntries(resolved *config.ResolvedProfile) []ConfigEntry {
	section := resolved.Section("configs")
	var out []ConfigEntry
	for _, k := range sortedKeys(section) {
		value := section[k]
		// "<host_source> -> <guest_target> [ACTION]"
		action := ActionCopy
		rest := value
		if idx := strings.LastIndex(value, "["); idx != -1 && strings.HasSuffix(value, "]") {
			action = ConfigAction(strings.ToUpper(value[idx+1 : len(value)-1]))
			rest = strings.TrimSpace(value[:idx])
		}
		parts := strings.SplitN(rest, "->", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, ConfigEntry{
			HostSource:  strings.TrimSpace(parts[0]),
			GuestTarget: strings.TrimSpace(parts[1]),
			Action:      action,
		})
	}
	return out
}

func buildAppEntries(resolved *config.ResolvedProfile) []AppEntry {
	apps := splitList(resolved.GetDefault("apps", "install", ""))
	flags := resolved.Section("app_flags")
	out := make([]AppEntry, 0, len(apps))
	for _, name := range apps {
		out = append(out, AppEntry{Name: name, Flags: flags[name]})
	}
	return out
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
