// Command ybox-destroy stops and removes a container, tombstoning its
// state row when packages installed in a shared root still reference it.
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ybox-project/ybox/internal/cliutil"
	"github.com/ybox-project/ybox/pkg/lifecycle"
	"github.com/ybox-project/ybox/pkg/sharedroot"
)

var version, commit, date string

func main() {
	var force bool
	var forceOwnOrphans string
	var stopTimeout time.Duration

	root := &cobra.Command{
		Use:   "ybox-destroy <name>",
		Short: "Destroy a ybox container",
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
		opts := lifecycle.DestroyOptions{
			Name:            args[0],
			Force:           force,
			ForceOwnOrphans: forceOwnOrphans,
			StopTimeout:     stopTimeout,
		}
		if err := mgr.Destroy(cmd.Context(), opts); err != nil {
			return err
		}
		if !*quiet {
			fmt.Printf("destroyed container %q\n", args[0])
		}
		return nil
	}

	root.Flags().BoolVarP(&force, "force", "f", false, "ignore engine stop/remove errors")
	root.Flags().StringVar(&forceOwnOrphans, "force-own-orphans", "", "transfer this container's orphaned shared-root packages onto the named container")
	root.Flags().DurationVar(&stopTimeout, "stop-timeout", 10*time.Second, "grace period before the engine escalates to SIGKILL")
	root.SetVersionTemplate(cliutil.VersionTemplate("ybox-destroy", cliutil.Build{Version: version, Commit: commit, Date: date}))

	cliutil.Execute(root)
}
