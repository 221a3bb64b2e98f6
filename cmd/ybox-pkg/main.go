// Command ybox-pkg installs, removes, and inspects packages inside a
// ybox container's guest package manager, driving the distribution's
// command templates and materializing host-visible wrappers for
// anything the guest package exposes.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ybox-project/ybox/internal/cliutil"
	"github.com/ybox-project/ybox/pkg/config"
	"github.com/ybox-project/ybox/pkg/lock"
	"github.com/ybox-project/ybox/pkg/pkgmgr"
	"github.com/ybox-project/ybox/pkg/sharedroot"
	"github.com/ybox-project/ybox/pkg/state"
	"github.com/ybox-project/ybox/pkg/wrapper"
	"github.com/ybox-project/ybox/pkg/ybox"
)

var version, commit, date string

// session bundles the open resources one ybox-pkg invocation needs:
// the state store (held open for the command's whole lifetime; its lock
// is taken per store operation), the orchestrator for the target
// container, the profile's [app_flags], and the shared-root lock when
// that container uses one.
type session struct {
	store    *state.Store
	orch     *pkgmgr.Orchestrator
	gen      *wrapper.Generator
	appFlags map[string]string
	shLock   *lock.FileLock
}

func openSession(ctx cliutil.Context, goCtx context.Context, containerName string) (*session, error) {
	store, err := ctx.OpenStore()
	if err != nil {
		return nil, err
	}

	container, err := store.GetContainer(goCtx, containerName)
	if err != nil {
		store.Close()
		return nil, ybox.NewError(ybox.KindUser, containerName, fmt.Errorf("no such container: %w", err))
	}

	resolved, err := config.LoadDump(container.Configuration)
	if err != nil {
		store.Close()
		return nil, err
	}

	eng, err := ctx.DetectEngine()
	if err != nil {
		store.Close()
		return nil, err
	}

	templates := pkgmgr.Load(resolved)
	orch := pkgmgr.New(ctx.Log, templates, eng, store, containerName)

	gen := &wrapper.Generator{
		Container:       containerName,
		ApplicationsDir: ctx.Paths.WrapperApplicationsDir(),
		BinDir:          ctx.Paths.WrapperBinDir(),
		ManDir:          ctx.Paths.WrapperManDir(),
		TrampolineBin:   config.TrampolineBin(),
	}

	var shLock *lock.FileLock
	if resolved.GetBool("base", "use_shared_root", false) {
		shared := sharedroot.New(ctx.Paths)
		shLock = shared.Lock(container.Distribution)
	}

	return &session{store: store, orch: orch, gen: gen, appFlags: resolved.Section("app_flags"), shLock: shLock}, nil
}

func (s *session) close() {
	if s.shLock != nil {
		s.shLock.Release()
	}
	s.store.Close()
}

func main() {
	root := &cobra.Command{
		Use:   "ybox-pkg",
		Short: "Manage packages inside a ybox container",
	}
	quiet, debug := cliutil.AddCommonFlags(root)
	build := cliutil.Build{Version: version, Commit: commit, Date: date}

	root.AddCommand(
		installCmd(quiet, debug, build),
		uninstallCmd(quiet, debug, build),
		updateCmd(quiet, debug, build),
		listCmd(quiet, debug, build),
		listFilesCmd(quiet, debug, build),
		infoCmd(quiet, debug, build),
		searchCmd(quiet, debug, build),
		markCmd(quiet, debug, build),
		cleanCmd(quiet, debug, build),
		repairCmd(quiet, debug, build),
	)

	root.SetVersionTemplate(cliutil.VersionTemplate("ybox-pkg", build))
	cliutil.Execute(root)
}

func installCmd(quiet, debug *bool, build cliutil.Build) *cobra.Command {
	var withOptDeps []string
	cmd := &cobra.Command{
		Use:   "install <container> <package...>",
		Short: "Install one or more packages",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cliutil.NewContext(build, *quiet, *debug)
			sess, err := openSession(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer sess.close()
			if err := withSharedRootLock(cmd, sess); err != nil {
				return err
			}

			for _, pkg := range args[1:] {
				opts := pkgmgr.InstallOptions{WithOptDeps: withOptDeps, Flags: sess.appFlags, Explicit: true}
				if err := sess.orch.Install(cmd.Context(), pkg, opts, sess.gen); err != nil {
					return err
				}
				if !*quiet {
					fmt.Printf("installed %s\n", pkg)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&withOptDeps, "with-opt-deps", nil, "optional dependencies to install alongside")
	return cmd
}

func uninstallCmd(quiet, debug *bool, build cliutil.Build) *cobra.Command {
	var keepDeps bool
	cmd := &cobra.Command{
		Use:   "uninstall <container> <package...>",
		Short: "Uninstall one or more packages",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cliutil.NewContext(build, *quiet, *debug)
			sess, err := openSession(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer sess.close()
			if err := withSharedRootLock(cmd, sess); err != nil {
				return err
			}

			for _, pkg := range args[1:] {
				if err := sess.orch.Uninstall(cmd.Context(), pkg, keepDeps); err != nil {
					return err
				}
				if !*quiet {
					fmt.Printf("uninstalled %s\n", pkg)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepDeps, "keep-deps", false, "do not cascade-uninstall now-unreferenced dependencies")
	return cmd
}

func updateCmd(quiet, debug *bool, build cliutil.Build) *cobra.Command {
	return &cobra.Command{
		Use:   "update <container> [package...]",
		Short: "Update one, several, or (with no package given) all packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cliutil.NewContext(build, *quiet, *debug)
			sess, err := openSession(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer sess.close()
			if err := withSharedRootLock(cmd, sess); err != nil {
				return err
			}

			if len(args) == 1 {
				out, err := sess.orch.RunQuery(cmd.Context(), "update_all", "")
				if err != nil {
					return err
				}
				fmt.Print(out)
				return nil
			}
			for _, pkg := range args[1:] {
				out, err := sess.orch.RunQuery(cmd.Context(), "update", pkg)
				if err != nil {
					return err
				}
				fmt.Print(out)
			}
			return nil
		},
	}
}

func listCmd(quiet, debug *bool, build cliutil.Build) *cobra.Command {
	var all, onlyOptDeps, verbose bool
	cmd := &cobra.Command{
		Use:   "list <container>",
		Short: "List installed packages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cliutil.NewContext(build, *quiet, *debug)
			sess, err := openSession(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer sess.close()

			if all || verbose {
				template := "list_all"
				if verbose {
					template = "list_all_long"
				}
				if onlyOptDeps {
					template = "list_long"
				}
				out, err := sess.orch.RunQuery(cmd.Context(), template, "")
				if err != nil {
					return err
				}
				fmt.Print(out)
				return nil
			}

			packages, err := sess.store.ListPackages(cmd.Context(), args[0], onlyOptDeps)
			if err != nil {
				return err
			}
			for _, p := range packages {
				fmt.Println(p.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "query the guest package manager directly instead of tracked state")
	cmd.Flags().BoolVarP(&onlyOptDeps, "opt-deps", "o", false, "include packages installed only as dependencies")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show version and description alongside each name")
	return cmd
}

func listFilesCmd(quiet, debug *bool, build cliutil.Build) *cobra.Command {
	return &cobra.Command{
		Use:   "list-files <container> <package>",
		Short: "List files owned by an installed package",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cliutil.NewContext(build, *quiet, *debug)
			sess, err := openSession(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer sess.close()

			out, err := sess.orch.RunQuery(cmd.Context(), "list_files", args[1])
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

func infoCmd(quiet, debug *bool, build cliutil.Build) *cobra.Command {
	var allPackages bool
	cmd := &cobra.Command{
		Use:   "info <container> [package]",
		Short: "Show package metadata",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cliutil.NewContext(build, *quiet, *debug)
			sess, err := openSession(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer sess.close()

			template := "info"
			pkg := ""
			if len(args) == 2 {
				pkg = args[1]
			}
			if allPackages {
				template = "info_all"
			} else if pkg == "" {
				return fmt.Errorf("info requires a package name unless --all is given")
			}
			out, err := sess.orch.RunQuery(cmd.Context(), template, pkg)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&allPackages, "all", "a", false, "show metadata for every installed package")
	return cmd
}

func searchCmd(quiet, debug *bool, build cliutil.Build) *cobra.Command {
	var allPackages, wordMatch bool
	cmd := &cobra.Command{
		Use:   "search <container> <term>",
		Short: "Search for an available package",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cliutil.NewContext(build, *quiet, *debug)
			sess, err := openSession(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer sess.close()

			template := "search"
			if allPackages {
				template = "search_all"
			}
			term := args[1]
			if wordMatch {
				term = sess.orch.Flag("word_start") + args[1] + sess.orch.Flag("word_end")
			}
			out, err := sess.orch.RunQuery(cmd.Context(), template, term)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&allPackages, "all", "a", false, "search every configured repository, not just already-enabled ones")
	cmd.Flags().BoolVarP(&wordMatch, "word", "w", false, "match the term as a whole word")
	return cmd
}

func markCmd(quiet, debug *bool, build cliutil.Build) *cobra.Command {
	var explicit, dependency string
	cmd := &cobra.Command{
		Use:   "mark <container>",
		Short: "Mark a package as explicitly installed or as a dependency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (explicit == "") == (dependency == "") {
				return fmt.Errorf("exactly one of -e or -d is required")
			}
			ctx := cliutil.NewContext(build, *quiet, *debug)
			sess, err := openSession(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer sess.close()
			if err := withSharedRootLock(cmd, sess); err != nil {
				return err
			}

			pkg := explicit
			want := true
			if dependency != "" {
				pkg = dependency
				want = false
			}
			if err := sess.store.SetExplicit(cmd.Context(), pkg, args[0], want); err != nil {
				return err
			}
			if want {
				if _, err := sess.orch.RunQuery(cmd.Context(), "mark_explicit", pkg); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&explicit, "explicit", "e", "", "mark this package explicitly installed")
	cmd.Flags().StringVarP(&dependency, "dependency", "d", "", "mark this package as installed only as a dependency")
	return cmd
}

func cleanCmd(quiet, debug *bool, build cliutil.Build) *cobra.Command {
	return &cobra.Command{
		Use:   "clean <container>",
		Short: "Clean the guest package manager's cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cliutil.NewContext(build, *quiet, *debug)
			sess, err := openSession(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer sess.close()
			if err := withSharedRootLock(cmd, sess); err != nil {
				return err
			}

			out, err := sess.orch.RunQuery(cmd.Context(), "clean", "")
			if err != nil {
				return err
			}
			if !*quiet {
				fmt.Print(out)
			}
			return nil
		},
	}
}

func repairCmd(quiet, debug *bool, build cliutil.Build) *cobra.Command {
	var extensive bool
	cmd := &cobra.Command{
		Use:   "repair <container> [package...]",
		Short: "Reinstall tracked packages to repair a damaged install",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cliutil.NewContext(build, *quiet, *debug)
			sess, err := openSession(ctx, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer sess.close()
			if err := withSharedRootLock(cmd, sess); err != nil {
				return err
			}

			if extensive || len(args) == 1 {
				return sess.orch.RepairAll(cmd.Context())
			}
			for _, pkg := range args[1:] {
				if err := sess.orch.Repair(cmd.Context(), pkg); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&extensive, "extensive", false, "run the distribution's repair_all template instead of repairing just the named packages")
	return cmd
}

func withSharedRootLock(cmd *cobra.Command, sess *session) error {
	if sess.shLock == nil {
		return nil
	}
	return sess.shLock.Acquire(cmd.Context(), lock.Exclusive)
}
