// Command ybox-logs prints or follows a container's engine logs.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ybox-project/ybox/internal/cliutil"
)

var version, commit, date string

func main() {
	var follow bool
	var tail int

	root := &cobra.Command{
		Use:   "ybox-logs <name>",
		Short: "Show logs for a ybox container",
		Args:  cobra.ExactArgs(1),
	}
	quiet, debug := cliutil.AddCommonFlags(root)

	root.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cliutil.NewContext(cliutil.Build{Version: version, Commit: commit, Date: date}, *quiet, *debug)

		eng, err := ctx.DetectEngine()
		if err != nil {
			return err
		}

		if follow {
			return eng.LogsFollow(cmd.Context(), args[0])
		}

		out, err := eng.Logs(cmd.Context(), args[0], tail)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	root.Flags().BoolVarP(&follow, "follow", "f", false, "stream new log output instead of exiting")
	root.Flags().IntVarP(&tail, "tail", "n", 0, "only show the last N lines (0 means all)")
	root.SetVersionTemplate(cliutil.VersionTemplate("ybox-logs", cliutil.Build{Version: version, Commit: commit, Date: date}))

	cliutil.Execute(root)
}
