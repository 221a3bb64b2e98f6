// Command ybox-control starts, stops, and restarts ybox containers,
// waiting on each container's status file to confirm the engine's
// entrypoint has actually reached the requested state.
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ybox-project/ybox/internal/cliutil"
	"github.com/ybox-project/ybox/pkg/lock"
)

var version, commit, date string

func main() {
	root := &cobra.Command{
		Use:   "ybox-control",
		Short: "Start, stop, or restart a ybox container",
	}
	quiet, debug := cliutil.AddCommonFlags(root)
	build := cliutil.Build{Version: version, Commit: commit, Date: date}

	var statusCeiling time.Duration
	root.PersistentFlags().DurationVar(&statusCeiling, "status-timeout", 0, "bound on waiting for the container's status file (default 120s)")

	root.AddCommand(startCmd(quiet, debug, build, &statusCeiling))
	root.AddCommand(stopCmd(quiet, debug, build, &statusCeiling))
	root.AddCommand(restartCmd(quiet, debug, build, &statusCeiling))

	root.SetVersionTemplate(cliutil.VersionTemplate("ybox-control", build))
	cliutil.Execute(root)
}

func startCmd(quiet, debug *bool, build cliutil.Build, statusCeiling *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "start <name>",
		Short: "Start a stopped container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cliutil.NewContext(build, *quiet, *debug)
			eng, err := ctx.DetectEngine()
			if err != nil {
				return err
			}
			if err := eng.Start(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := lock.WaitForStatus(cmd.Context(), ctx.Paths.ContainerStatusFile(args[0]), lock.StatusStarted, *statusCeiling); err != nil {
				return err
			}
			if !*quiet {
				fmt.Printf("started %q\n", args[0])
			}
			return nil
		},
	}
}

func stopCmd(quiet, debug *bool, build cliutil.Build, statusCeiling *time.Duration) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop a running container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cliutil.NewContext(build, *quiet, *debug)
			eng, err := ctx.DetectEngine()
			if err != nil {
				return err
			}
			if err := eng.Stop(cmd.Context(), args[0], timeout); err != nil {
				return err
			}
			if err := lock.WaitForStatus(cmd.Context(), ctx.Paths.ContainerStatusFile(args[0]), lock.StatusStopped, *statusCeiling); err != nil {
				return err
			}
			if !*quiet {
				fmt.Printf("stopped %q\n", args[0])
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "grace period before the engine escalates to SIGKILL")
	return cmd
}

func restartCmd(quiet, debug *bool, build cliutil.Build, statusCeiling *time.Duration) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "restart <name>",
		Short: "Stop then start a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cliutil.NewContext(build, *quiet, *debug)
			eng, err := ctx.DetectEngine()
			if err != nil {
				return err
			}
			if err := eng.Stop(cmd.Context(), args[0], timeout); err != nil {
				return err
			}
			if err := lock.WaitForStatus(cmd.Context(), ctx.Paths.ContainerStatusFile(args[0]), lock.StatusStopped, *statusCeiling); err != nil {
				return err
			}
			if err := eng.Start(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := lock.WaitForStatus(cmd.Context(), ctx.Paths.ContainerStatusFile(args[0]), lock.StatusStarted, *statusCeiling); err != nil {
				return err
			}
			if !*quiet {
				fmt.Printf("restarted %q\n", args[0])
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "grace period before the engine escalates to SIGKILL")
	return cmd
}
