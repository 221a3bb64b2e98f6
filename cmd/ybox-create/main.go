// Command ybox-create creates a new per-user container for one
// distribution and profile, running the shared-root bootstrap dance
// for the first container of a distribution when needed.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ybox-project/ybox/internal/cliutil"
	"github.com/ybox-project/ybox/pkg/lifecycle"
	"github.com/ybox-project/ybox/pkg/sharedroot"
)

var version, commit, date string

func main() {
	var distribution, profileName string
	var allowHomeShare bool
	var statusCeiling time.Duration

	root := &cobra.Command{
		Use:   "ybox-create <name>",
		Short: "Create a new ybox container",
		Args:  cobra.ExactArgs(1),
	}
	quiet, debug := cliutil.AddCommonFlags(root)

	root.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cliutil.NewContext(cliutil.Build{Version: version, Commit: commit, Date: date}, *quiet, *debug)

		store, err := ctx.OpenStore()
		if err != nil {
			return err
		}
		defer store.Close()

		eng, err := ctx.DetectEngine()
		if err != nil {
			return err
		}

		mgr := lifecycle.New(ctx.Log, ctx.Paths, store, sharedroot.New(ctx.Paths), eng)

		opts := lifecycle.CreateOptions{
			Name:           args[0],
			Distribution:   distribution,
			Profile:        profileName,
			AllowHomeShare: allowHomeShare,
			UID:            os.Getuid(),
			GID:            os.Getgid(),
			StatusCeiling:  statusCeiling,
		}
		if err := mgr.Create(cmd.Context(), opts); err != nil {
			return err
		}
		if !*quiet {
			fmt.Printf("created container %q\n", args[0])
		}
		return nil
	}

	root.Flags().StringVar(&distribution, "distribution", "arch", "distribution to base the container on")
	root.Flags().StringVar(&profileName, "profile", "basic", "profile to apply")
	root.Flags().BoolVar(&allowHomeShare, "allow-home-share", false, "mount $HOME into the container (off by default)")
	root.Flags().DurationVar(&statusCeiling, "status-timeout", 0, "bound on waiting for the container's status file (default 120s)")
	root.SetVersionTemplate(cliutil.VersionTemplate("ybox-create", cliutil.Build{Version: version, Commit: commit, Date: date}))

	cliutil.Execute(root)
}
