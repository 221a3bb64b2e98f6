package pkgmgr

import (
	"strconv"
	"strings"
)

// OptDep is one parsed line of a distribution's opt_deps output.
type OptDep struct {
	Name        string
	Level       int
	Installed   bool
	Description string
}

// ParseOptDeps parses the fixed opt_deps output format: a header
// line, then lines of the shape
// "{prefix}<name>{sep}<level>{sep}<installed>{sep}<description>".
// Malformed lines are skipped rather than failing the whole parse,
// since a template's surrounding chatter (pacman banners, etc.) is not
// itself part of the contract.
func ParseOptDeps(output string, t Templates) []OptDep {
	prefix := t.Flag("prefix")
	sep := t.Flag("separator")
	if sep == "" {
		sep = "|"
	}

	lines := strings.Split(output, "\n")
	var deps []OptDep
	seenHeader := false
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if !seenHeader {
			seenHeader = true
			continue // header line, expected to match t.Flag("header") loosely
		}
		if prefix != "" && !strings.HasPrefix(line, prefix) {
			continue
		}
		body := strings.TrimPrefix(line, prefix)
		fields := strings.SplitN(body, sep, 4)
		if len(fields) != 4 {
			continue
		}
		level, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			continue
		}
		deps = append(deps, OptDep{
			Name:        strings.TrimSpace(fields[0]),
			Level:       level,
			Installed:   strings.EqualFold(strings.TrimSpace(fields[2]), "true") || strings.TrimSpace(fields[2]) == "1",
			Description: strings.TrimSpace(fields[3]),
		})
	}
	return deps
}

// DirectDeps filters to level-1 (direct) entries.
func DirectDeps(deps []OptDep) []OptDep {
	var out []OptDep
	for _, d := range deps {
		if d.Level == 1 {
			out = append(out, d)
		}
	}
	return out
}

// TransitiveDeps filters to level-2 entries.
func TransitiveDeps(deps []OptDep) []OptDep {
	var out []OptDep
	for _, d := range deps {
		if d.Level == 2 {
			out = append(out, d)
		}
	}
	return out
}
