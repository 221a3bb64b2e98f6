// Command ybox-ls lists ybox containers, merging the state store's
// durable record (distribution, shared root, destroyed tombstone) with
// the engine's live status for each one still tracked.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ybox-project/ybox/internal/cliutil"
	"github.com/ybox-project/ybox/pkg/utils"
)

var version, commit, date string

func main() {
	var all bool

	root := &cobra.Command{
		Use:   "ybox-ls",
		Short: "List ybox containers",
		Args:  cobra.NoArgs,
	}
	quiet, debug := cliutil.AddCommonFlags(root)

	root.RunE = func(cmd *cobra.Command, _ []string) error {
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

		containers, err := store.ListContainers(cmd.Context(), all)
		if err != nil {
			return err
		}

		statuses, err := eng.List(cmd.Context(), "")
		if err != nil {
			return err
		}
		byName := make(map[string]string, len(statuses))
		for _, s := range statuses {
			byName[s.Name] = s.Status
		}

		rows := [][]string{{"NAME", "DISTRIBUTION", "SHARED ROOT", "STATUS"}}
		for _, c := range containers {
			name := c.Name
			if c.Destroyed {
				name = utils.ColoredString(name, color.FgRed)
			}
			shared := c.SharedRoot
			if shared == "" {
				shared = "-"
			}
			rows = append(rows, []string{name, c.Distribution, shared, statusLabel(byName[c.Name])})
		}

		table, err := utils.RenderTable(rows)
		if err != nil {
			return err
		}
		fmt.Println(table)
		return nil
	}

	root.Flags().BoolVarP(&all, "all", "a", false, "include destroyed (tombstone) containers")
	root.SetVersionTemplate(cliutil.VersionTemplate("ybox-ls", cliutil.Build{Version: version, Commit: commit, Date: date}))

	cliutil.Execute(root)
}

func statusLabel(engineStatus string) string {
	if engineStatus == "" {
		return utils.ColoredString("not running", color.FgYellow)
	}
	return utils.ColoredString(engineStatus, color.FgGreen)
}
