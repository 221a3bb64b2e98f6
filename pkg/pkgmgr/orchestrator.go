package pkgmgr

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ybox-project/ybox/pkg/state"
	"github.com/ybox-project/ybox/pkg/wrapper"
	"github.com/ybox-project/ybox/pkg/ybox"
)

// Runner executes one argv vector inside a running container and
// returns its combined output, implemented by *engine.Engine. A
// narrow interface here keeps pkgmgr testable without a real engine
// binary and avoids pkgmgr depending on engine's subprocess plumbing
// directly.
type Runner interface {
	Exec(ctx context.Context, container, asUser string, argv []string) (string, error)
}

// WrapperGenerator is the subset of *wrapper.Generator the orchestrator
// drives after a successful install, narrowed to an interface for
// testability.
type WrapperGenerator interface {
	InstallDesktopEntry(hostDesktopFile, packageName, extraFlags string, contents []byte) (string, error)
	InstallExecutableShim(guestExecName, extraFlags string) (string, error)
	InstallManLink(guestManPath, section string) (string, error)
}

// Orchestrator ties together the distribution command templates, the
// container runner, the state store, and wrapper generation to
// implement the install/uninstall/repair algorithms.
type Orchestrator struct {
	log       *logrus.Entry
	templates Templates
	runner    Runner
	store     *state.Store
	container string
}

// New returns an Orchestrator for one container.
func New(log *logrus.Entry, templates Templates, runner Runner, store *state.Store, container string) *Orchestrator {
	return &Orchestrator{log: log, templates: templates, runner: runner, store: store, container: container}
}

// InstallOptions carries the caller-facing flags of `ybox-pkg install`.
type InstallOptions struct {
	WithOptDeps []string          // names selected non-interactively via --with-opt-deps
	Explicit    bool              // true for a package named directly on the command line
	Flags       map[string]string // profile [app_flags]: sub-executable name -> extra argv fragment
}

// Install runs the full install algorithm for one package: a
// check_install short-circuit, the install template with one
// transient-failure retry, optional-dependency resolution, wrapper
// materialization, and state recording. Locking (state-DB,
// shared-root) is the caller's
// responsibility — Install assumes it is already held, since it may
// recurse into itself for optional dependencies within the same lock
// scope.
func (o *Orchestrator) Install(ctx context.Context, pkg string, opts InstallOptions, gen WrapperGenerator) error {
	already, err := o.isInstalled(ctx, pkg)
	if err != nil {
		return err
	}

	var depRecords []state.PackageDep
	if already {
		// Already present in the guest (a twice-run install, or a
		// package the base image ships pre-installed): skip straight to
		// wrapper materialization and state recording, steps 6-7 of
		// §4.F, rather than the install template and opt_deps.
		o.log.Debugf("package %s already installed in %s, recording state and wrappers only", pkg, o.container)
	} else {
		if err := o.runInstallWithRetry(ctx, pkg); err != nil {
			return err
		}

		deps, err := o.optDeps(ctx, pkg)
		if err != nil {
			o.log.Warnf("opt_deps for %s failed, continuing without optional deps: %v", pkg, err)
			deps = nil
		}

		selected := map[string]bool{}
		for _, name := range opts.WithOptDeps {
			selected[name] = true
		}

		for _, d := range DirectDeps(deps) {
			if !selected[d.Name] {
				continue
			}
			if err := o.Install(ctx, d.Name, InstallOptions{}, gen); err != nil {
				return fmt.Errorf("installing optional dependency %s: %w", d.Name, err)
			}
			depRecords = append(depRecords, state.PackageDep{Name: pkg, Container: o.container, Dependency: d.Name, DepType: state.DepOptional})
		}
	}

	copies, copyType, err := o.materializeWrappers(ctx, pkg, opts.Flags, gen)
	if err != nil {
		return err
	}

	return o.store.RecordPackage(ctx, state.Package{
		Name:          pkg,
		Container:     o.container,
		LocalCopies:   copies,
		LocalCopyType: copyType,
		Flags:         opts.Flags,
		Explicit:      opts.Explicit,
	}, depRecords)
}

func (o *Orchestrator) isInstalled(ctx context.Context, pkg string) (bool, error) {
	argv, err := o.templates.Render("check_install", pkg)
	if err != nil {
		return false, err
	}
	_, err = o.runner.Exec(ctx, o.container, "", argv)
	if err == nil {
		return true, nil
	}
	if typed, ok := ybox.AsTyped(err); ok && typed.Kind == ybox.KindEngine {
		return false, nil // non-zero exit means "not installed" for a query template
	}
	return false, err
}

// transientPattern matches package-manager failures recoverable by
// killing stale processes and clearing lock files, vs. a permanent
// failure (missing package, unresolved dependency) that should abort.
var transientPattern = regexp.MustCompile(`(?i)lock|database is locked|unable to lock|temporary failure|could not resolve|timed out`)

func (o *Orchestrator) runInstallWithRetry(ctx context.Context, pkg string) error {
	argv, err := o.templates.Render("install", pkg)
	if err != nil {
		return err
	}

	out, err := o.runner.Exec(ctx, o.container, "", argv)
	if err == nil {
		return nil
	}
	if !transientPattern.MatchString(out) {
		return ybox.NewError(ybox.KindPackageOp, pkg, err)
	}

	if err := o.clearStaleLocks(ctx); err != nil {
		o.log.Warnf("clearing stale locks for %s before retry: %v", pkg, err)
	}
	if _, err := o.runner.Exec(ctx, o.container, "", argv); err != nil {
		return ybox.NewError(ybox.KindPackageOp, pkg, fmt.Errorf("install failed after transient-failure retry: %w", err))
	}
	return nil
}

func (o *Orchestrator) clearStaleLocks(ctx context.Context) error {
	locksPattern := o.templates.LocksPattern()
	processesPattern := o.templates.ProcessesPattern()
	if processesPattern != "" {
		_, _ = o.runner.Exec(ctx, o.container, "root", []string{"pkill", "-f", processesPattern})
	}
	if locksPattern != "" {
		_, _ = o.runner.Exec(ctx, o.container, "root", []string{"sh", "-c", "rm -f " + locksPattern})
	}
	return nil
}

func (o *Orchestrator) optDeps(ctx context.Context, pkg string) ([]OptDep, error) {
	argv, err := o.templates.Render("opt_deps", pkg)
	if err != nil {
		return nil, err
	}
	out, err := o.runner.Exec(ctx, o.container, "", argv)
	if err != nil {
		return nil, err
	}
	return ParseOptDeps(out, o.templates), nil
}

// materializeWrappers enumerates the package's owned files via
// list_files and generates a wrapper for every .desktop entry,
// executable, and man page it recognizes. flags supplies per-executable
// extra argv fragments from the profile's [app_flags] section, keyed by
// the guest executable's base name; an entry with no flags renders "".
func (o *Orchestrator) materializeWrappers(ctx context.Context, pkg string, flags map[string]string, gen WrapperGenerator) ([]string, state.LocalCopyType, error) {
	argv, err := o.templates.Render("list_files", pkg)
	if err != nil {
		return nil, state.CopyNone, err
	}
	out, err := o.runner.Exec(ctx, o.container, "", argv)
	if err != nil {
		return nil, state.CopyNone, err
	}

	var copies []string
	var copyType state.LocalCopyType
	for _, path := range ownedFilePaths(out) {
		switch {
		case strings.HasPrefix(path, "/usr/share/applications/") && strings.HasSuffix(path, ".desktop"):
			contents, err := o.runner.Exec(ctx, o.container, "", []string{"cat", path})
			if err != nil {
				continue
			}
			dest, err := gen.InstallDesktopEntry(path, pkg, flags[pathBase(path)], []byte(contents))
			if err == nil {
				copies = append(copies, dest)
				copyType |= state.CopyDesktop
			}
		case isGuestBinPath(path):
			name := pathBase(path)
			dest, err := gen.InstallExecutableShim(name, flags[name])
			if err == nil {
				copies = append(copies, dest)
				copyType |= state.CopyExecutable
			}
		case manSection(path) != "":
			dest, err := gen.InstallManLink(path, manSection(path))
			if err == nil {
				copies = append(copies, dest)
				// local_copy_type has no dedicated man-link bit; folded
				// into CopyExecutable, the nearest existing category.
				copyType |= state.CopyExecutable
			}
		}
	}

	return copies, copyType, nil
}

func isGuestBinPath(path string) bool {
	return strings.HasPrefix(path, "/usr/bin/") || strings.HasPrefix(path, "/usr/local/bin/")
}

var manPathPattern = regexp.MustCompile(`^/usr/share/man/(man[0-9a-z]+)/`)

// manSection returns the man section ("man1", "man5", ...) for a guest
// man-page path, or "" if path is not under /usr/share/man.
func manSection(path string) string {
	m := manPathPattern.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return m[1]
}

func pathBase(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx == -1 {
		return path
	}
	return path[idx+1:]
}

// ownedFilePaths parses a distribution's list_files output, which is
// one absolute path per line (pacman -Ql emits "pkgname /path"; the
// first field is stripped if present).
func ownedFilePaths(out string) []string {
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		last := fields[len(fields)-1]
		if strings.HasPrefix(last, "/") {
			paths = append(paths, last)
		}
	}
	return paths
}

// Uninstall reverses Install: remove wrapper files, run the uninstall
// template (purge/remove_deps applied only when pkg is itself
// explicitly installed), then cascade-uninstall any of pkg's own
// dependencies whose refcount reaches zero and which was never itself
// explicitly installed.
func (o *Orchestrator) Uninstall(ctx context.Context, pkg string, keepDeps bool) error {
	record, err := o.store.GetPackage(ctx, pkg, o.container)
	if err != nil {
		return ybox.NewError(ybox.KindPackageOp, pkg, fmt.Errorf("package not tracked: %w", err))
	}

	if err := wrapper.Remove(record.LocalCopies); err != nil {
		return err
	}

	argv, err := o.uninstallArgv(pkg, record.Explicit)
	if err != nil {
		return err
	}
	if _, err := o.runner.Exec(ctx, o.container, "", argv); err != nil {
		return ybox.NewError(ybox.KindPackageOp, pkg, err)
	}

	// Captured before RemovePackage deletes pkg's outgoing edges, so the
	// cascade below walks only what pkg itself depended on.
	var ownDeps []state.PackageDep
	if !keepDeps {
		ownDeps, err = o.store.ListDeps(ctx, pkg, o.container)
		if err != nil {
			return err
		}
	}

	if err := o.store.RemovePackage(ctx, pkg, o.container); err != nil {
		return err
	}

	if keepDeps {
		return nil
	}
	return o.cascadeUninstallDeps(ctx, ownDeps)
}

// uninstallArgv renders the uninstall template. {purge}/{remove_deps}
// take their fixed values only for an explicitly installed package;
// a cascade-removed dependency (always called with explicit=false)
// gets them blanked, per §4.F.
func (o *Orchestrator) uninstallArgv(pkg string, explicit bool) ([]string, error) {
	if explicit {
		return o.templates.Render("uninstall", pkg)
	}
	return o.templates.RenderWithFlags("uninstall", pkg, map[string]string{
		"purge":       "",
		"remove_deps": "",
	})
}

// cascadeUninstallDeps uninstalls any dependency edge in deps (pkg's own
// outgoing edges, captured before its row was removed) whose dependency
// now has no remaining dependent and was never itself explicitly
// installed. It never touches a package that was not one of deps, so an
// unrelated orphan (e.g. demoted via `mark -d` with no surviving
// parent) is left alone.
func (o *Orchestrator) cascadeUninstallDeps(ctx context.Context, deps []state.PackageDep) error {
	for _, d := range deps {
		remaining, err := o.store.DependencyRefcount(ctx, d.Dependency, o.container)
		if err != nil {
			return err
		}
		if remaining != 0 {
			continue
		}
		candidate, err := o.store.GetPackage(ctx, d.Dependency, o.container)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return err
		}
		if candidate.Explicit {
			continue
		}
		if err := o.Uninstall(ctx, d.Dependency, false); err != nil {
			return fmt.Errorf("cascading uninstall of dependency %s: %w", d.Dependency, err)
		}
	}
	return nil
}

// Flag exposes one fixed flag value from the distribution's [pkgmgr]
// section (e.g. "word_start"/"word_end" for building a whole-word search
// term), for callers assembling a query outside the template system.
func (o *Orchestrator) Flag(name string) string { return o.templates.Flag(name) }

// RunQuery renders and executes a named template with no install-specific
// bookkeeping around it, for the read-mostly `ybox-pkg` subcommands
// (list, list_all, search, search_all, info, info_all, update, update_all,
// update_meta, clean, orphans) that only need the guest command's output.
// pkg may be "" for templates that take no package argument.
func (o *Orchestrator) RunQuery(ctx context.Context, template, pkg string) (string, error) {
	argv, err := o.templates.Render(template, pkg)
	if err != nil {
		return "", err
	}
	out, err := o.runner.Exec(ctx, o.container, "", argv)
	if err != nil {
		return "", ybox.NewError(ybox.KindPackageOp, template, err)
	}
	return out, nil
}

// Repair runs the light `repair` template for one package.
func (o *Orchestrator) Repair(ctx context.Context, pkg string) error {
	argv, err := o.templates.Render("repair", pkg)
	if err != nil {
		return err
	}
	_, err = o.runner.Exec(ctx, o.container, "", argv)
	if err != nil {
		return ybox.NewError(ybox.KindPackageOp, pkg, err)
	}
	return nil
}

// RepairAll runs the distribution's repair_all template once, discarding
// its output, and then runs mark_explicit for every explicitly installed
// tracked package. It does not reinstall packages itself, and packages
// tracked only as dependencies are not re-marked.
func (o *Orchestrator) RepairAll(ctx context.Context) error {
	argv, err := o.templates.Render("repair_all", "")
	if err != nil {
		return err
	}
	_, err = o.runner.Exec(ctx, o.container, "", argv)
	if err != nil {
		return ybox.NewError(ybox.KindPackageOp, o.container, err)
	}

	packages, err := o.store.ListPackages(ctx, o.container, false)
	if err != nil {
		return err
	}
	for _, pkg := range packages {
		markArgv, err := o.templates.Render("mark_explicit", pkg.Name)
		if err != nil {
			continue
		}
		_, _ = o.runner.Exec(ctx, o.container, "", markArgv)
	}
	return nil
}
