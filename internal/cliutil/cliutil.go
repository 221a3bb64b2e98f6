// Package cliutil holds the bootstrap every ybox-* binary shares: flag
// wiring for the common -q/--quiet flag, version banner construction,
// and the top-level error-to-exit-code mapping, so cmd/ybox-* packages
// stay thin.
package cliutil

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ybox-project/ybox/pkg/config"
	"github.com/ybox-project/ybox/pkg/engine"
	"github.com/ybox-project/ybox/pkg/state"
	"github.com/ybox-project/ybox/pkg/ybox"
)

// Build carries the linker-injected version stamp; each cmd/ybox-*
// main.go declares its own package-level vars of these names and passes
// them in, since ldflags targets `main.version` per binary.
type Build struct {
	Version, Commit, Date string
}

// Context is what every ybox-* binary needs once flags are parsed: the
// resolved host paths, the process logger, and the quiet/debug flags.
type Context struct {
	Paths config.Paths
	Log   *logrus.Entry
	Quiet bool
	Debug bool
}

// NewContext resolves host paths and builds the process logger.
func NewContext(b Build, quiet, debug bool) Context {
	paths := config.NewPaths()
	info := ybox.ResolveBuildInfo(b.Version, b.Commit, b.Date)
	log := ybox.NewLogger(paths.DataHome, debug, info.Version, info.Commit, info.Date)
	return Context{Paths: paths, Log: log, Quiet: quiet, Debug: debug}
}

// AddCommonFlags registers -q/--quiet and --debug on root, matching the
// common-flags surface every binary shares.
func AddCommonFlags(cmd *cobra.Command) (*bool, *bool) {
	quiet := cmd.PersistentFlags().BoolP("quiet", "q", false, "suppress non-error output")
	debug := cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	return quiet, debug
}

// VersionTemplate renders the banner string every binary's --version
// flag reports.
func VersionTemplate(binary string, b Build) string {
	info := ybox.ResolveBuildInfo(b.Version, b.Commit, b.Date)
	return info.String(binary) + "\n"
}

// OpenStore opens the shared state database every ybox-* binary reads
// or writes, at its well-known path under the data directory.
func (c Context) OpenStore() (*state.Store, error) {
	return state.Open(c.Paths.StateDBPath(), c.Paths.StateLockPath())
}

// DetectEngine resolves and binds the container engine binary
// (YBOX_CONTAINER_MANAGER, else podman, else docker).
func (c Context) DetectEngine() (*engine.Engine, error) {
	binary, err := engine.Detect()
	if err != nil {
		return nil, err
	}
	return engine.New(c.Log, binary), nil
}

// Execute runs root and translates any returned error into the
// process's fixed exit code, printing a single structured message
// (kind + context + underlying message) to stderr. It never returns;
// callers should invoke it last from main().
func Execute(root *cobra.Command) {
	err := root.Execute()
	if err == nil {
		os.Exit(0)
	}

	if te, ok := ybox.AsTyped(err); ok {
		fmt.Fprintf(os.Stderr, "%s: %s: %v\n", te.Kind, te.Context, te.Err)
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(ybox.ExitCodeFor(err))
}
