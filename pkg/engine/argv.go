package engine

import "github.com/mgutz/str"

// SplitCommand splits an already-resolved shell-like command string
// (a `[startup]` entry, or a free-form command passed to `ybox-cmd`)
// into an argv vector without ever invoking a shell on the host. The
// result is passed to Exec/ExecInteractive directly.
func SplitCommand(s string) []string {
	return str.ToArgv(s)
}
