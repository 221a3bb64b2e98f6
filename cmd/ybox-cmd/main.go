// Command ybox-cmd runs a free-form command inside a running ybox
// container, tokenizing the command the same way a `[startup]` entry
// is tokenized before being handed to the engine.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ybox-project/ybox/internal/cliutil"
	"github.com/ybox-project/ybox/pkg/engine"
)

var version, commit, date string

func main() {
	var asUser string
	var interactive bool

	root := &cobra.Command{
		Use:   "ybox-cmd <name> -- <command...>",
		Short: "Run a command inside a ybox container",
		Args:  cobra.MinimumNArgs(2),
	}
	quiet, debug := cliutil.AddCommonFlags(root)

	root.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cliutil.NewContext(cliutil.Build{Version: version, Commit: commit, Date: date}, *quiet, *debug)

		eng, err := ctx.DetectEngine()
		if err != nil {
			return err
		}

		name := args[0]
		argv := args[1:]
		if len(argv) == 1 {
			argv = engine.SplitCommand(strings.TrimSpace(argv[0]))
		}

		if interactive {
			return eng.ExecInteractive(cmd.Context(), name, asUser, argv)
		}

		out, err := eng.Exec(cmd.Context(), name, asUser, argv)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	root.Flags().StringVarP(&asUser, "user", "u", "", "run as this user instead of the container's default user")
	root.Flags().BoolVarP(&interactive, "interactive", "i", false, "attach stdio to the command instead of capturing output")
	root.SetVersionTemplate(cliutil.VersionTemplate("ybox-cmd", cliutil.Build{Version: version, Commit: commit, Date: date}))

	cliutil.Execute(root)
}
