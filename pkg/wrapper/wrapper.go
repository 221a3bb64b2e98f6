// Package wrapper generates the host-visible artifacts that make a
// guest application appear host-installed: rewritten .desktop entries,
// executable trampoline shims, and man-page symlinks.
package wrapper

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ybox-project/ybox/pkg/state"
)

// Generator materializes wrappers for one container's installed
// packages into the host's XDG data/bin/man directories.
type Generator struct {
	Container     string
	ApplicationsDir string // $XDG_DATA_HOME/applications
	BinDir          string // $HOME/.local/bin
	ManDir          string // $XDG_DATA_HOME/man
	TrampolineBin   string // absolute path of the exec-into-container trampoline binary
}

// execArgTokens are the desktop-entry field codes that must stay in
// position when rewriting Exec=, per the Desktop Entry Specification.
var execArgTokens = regexp.MustCompile(`%[fFuUdDnNickvm]`)

// InstallDesktopEntry parses hostDesktopFile (as read from inside the
// container via list_files) and writes a rewritten copy under
// ApplicationsDir, with Exec= replaced by a call through the
// trampoline carrying the container name, the original argv, and any
// extra flags from [app_flags]. Returns the host path written.
func (g *Generator) InstallDesktopEntry(hostDesktopFile, packageName, extraFlags string, contents []byte) (string, error) {
	lines, err := rewriteDesktopExec(contents, g.Container, g.TrampolineBin, extraFlags)
	if err != nil {
		return "", err
	}

	destName := fmt.Sprintf("%s-%s", g.Container, filepath.Base(hostDesktopFile))
	dest := filepath.Join(g.ApplicationsDir, destName)

	if err := os.MkdirAll(g.ApplicationsDir, 0o755); err != nil {
		return "", fmt.Errorf("create applications dir: %w", err)
	}
	if err := os.WriteFile(dest, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write desktop entry: %w", err)
	}
	return dest, nil
}

var execLinePattern = regexp.MustCompile(`^Exec\s*=\s*(.*)$`)

// rewriteDesktopExec rewrites every Exec= line (the default group's and
// any Desktop Action's) to invoke the trampoline instead of the guest
// binary directly, preserving field codes in position.
func rewriteDesktopExec(contents []byte, container, trampoline, extraFlags string) ([]string, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(contents)))
	var out []string
	for scanner.Scan() {
		line := scanner.Text()
		if m := execLinePattern.FindStringSubmatch(line); m != nil {
			out = append(out, "Exec="+rewriteExecValue(m[1], container, trampoline, extraFlags))
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func rewriteExecValue(original, container, trampoline, extraFlags string) string {
	// Keep every original token, field codes included, in its original
	// position; the extra flags go just before the first field code, or
	// at the end when there is none.
	extra := strings.Fields(extraFlags)
	parts := []string{trampoline, container}
	for _, tok := range strings.Fields(original) {
		if len(extra) > 0 && execArgTokens.MatchString(tok) {
			parts = append(parts, extra...)
			extra = nil
		}
		parts = append(parts, tok)
	}
	parts = append(parts, extra...)
	return strings.Join(parts, " ")
}

// InstallExecutableShim writes a trampoline shell shim into BinDir for
// one guest executable.
func (g *Generator) InstallExecutableShim(guestExecName, extraFlags string) (string, error) {
	if err := os.MkdirAll(g.BinDir, 0o755); err != nil {
		return "", fmt.Errorf("create bin dir: %w", err)
	}
	dest := filepath.Join(g.BinDir, fmt.Sprintf("%s-%s", g.Container, guestExecName))

	script := fmt.Sprintf("#!/bin/sh\nexec %s %s %s%s \"$@\"\n",
		shellQuote(g.TrampolineBin), shellQuote(g.Container), shellQuote(guestExecName),
		extraFlagsSuffix(extraFlags))

	if err := os.WriteFile(dest, []byte(script), 0o755); err != nil {
		return "", fmt.Errorf("write exec shim: %w", err)
	}
	return dest, nil
}

func extraFlagsSuffix(extraFlags string) string {
	if extraFlags == "" {
		return ""
	}
	return " " + extraFlags
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// InstallManLink symlinks a guest man page into ManDir/<section>/.
func (g *Generator) InstallManLink(guestManPath, section string) (string, error) {
	destDir := filepath.Join(g.ManDir, section)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create man dir: %w", err)
	}
	dest := filepath.Join(destDir, fmt.Sprintf("%s-%s", g.Container, filepath.Base(guestManPath)))

	_ = os.Remove(dest) // idempotent: replace a previous link for this package
	if err := os.Symlink(guestManPath, dest); err != nil {
		return "", fmt.Errorf("link man page: %w", err)
	}
	return dest, nil
}

// Remove deletes every path in copies, ignoring paths that are already
// gone, so uninstall remains idempotent even after a partial prior run.
func Remove(copies []string) error {
	for _, p := range copies {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove wrapper %s: %w", p, err)
		}
	}
	return nil
}

// TypeFor computes the local_copy_type bit mask a set of freshly
// generated wrapper paths should record, from which wrapper directories
// they landed under.
func TypeFor(copies []string, applicationsDir, binDir string) state.LocalCopyType {
	var mask state.LocalCopyType
	for _, c := range copies {
		switch {
		case strings.HasPrefix(c, applicationsDir):
			mask |= state.CopyDesktop
		case strings.HasPrefix(c, binDir):
			mask |= state.CopyExecutable
		}
	}
	return mask
}
