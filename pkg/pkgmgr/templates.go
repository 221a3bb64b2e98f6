// Package pkgmgr is the distribution-agnostic package orchestrator:
// it dispatches the [pkgmgr] command templates a distribution INI
// provides, drives the install/uninstall/repair algorithms, and hands
// off host wrapper generation and state recording.
package pkgmgr

import (
	"fmt"
	"regexp"

	"github.com/mgutz/str"

	"github.com/ybox-project/ybox/pkg/config"
)

// Templates is the resolved [pkgmgr] section of a distribution INI,
// both the command templates and their flag placeholders.
type Templates struct {
	flags     map[string]string
	commands  map[string]string
}

// templateKeys are the command template names a distribution INI's
// [pkgmgr] section may define.
var templateKeys = []string{
	"install", "uninstall", "info", "list", "list_all", "list_long",
	"list_all_long", "list_files", "search", "search_all", "info_all",
	"check_avail", "check_install", "opt_deps", "update", "update_all",
	"update_meta", "clean", "orphans", "mark_explicit", "repair",
	"repair_all", "processes_pattern", "locks_pattern",
}

// flagKeys are the fixed-value placeholders substituted into command
// templates from the same INI section.
var flagKeys = []string{
	"quiet", "opt_dep", "purge", "remove_deps", "official",
	"word_start", "word_end", "separator", "prefix", "header",
}

// Load extracts a Templates from a resolved profile's [pkgmgr] section.
func Load(resolved *config.ResolvedProfile) Templates {
	section := resolved.Section("pkgmgr")
	t := Templates{flags: map[string]string{}, commands: map[string]string{}}
	for _, k := range flagKeys {
		t.flags[k] = section[k]
	}
	for _, k := range templateKeys {
		t.commands[k] = section[k]
	}
	return t
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Render expands one named command template, substituting every
// {flag_name} from the fixed flag set and {pkg} from pkg, and returns
// the resulting argv vector (tokenized, never passed through a shell).
func (t Templates) Render(name, pkg string) ([]string, error) {
	return t.RenderWithFlags(name, pkg, nil)
}

// RenderWithFlags is Render with specific flag placeholders overridden
// before substitution, e.g. blanking {purge}/{remove_deps} for a
// cascade-removed dependency that was never explicitly installed.
func (t Templates) RenderWithFlags(name, pkg string, overrides map[string]string) ([]string, error) {
	raw, ok := t.commands[name]
	if !ok || raw == "" {
		return nil, fmt.Errorf("distribution has no %q command template", name)
	}

	values := map[string]string{}
	for k, v := range t.flags {
		values[k] = v
	}
	for k, v := range overrides {
		values[k] = v
	}
	values["pkg"] = pkg

	expanded := placeholderPattern.ReplaceAllStringFunc(raw, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := values[key]; ok {
			return v
		}
		return match
	})

	return str.ToArgv(expanded), nil
}

// ProcessesPattern and LocksPattern are the two non-command templates
// used for transient-failure recovery, returned as plain strings
// rather than tokenized argv.
func (t Templates) ProcessesPattern() string { return t.commands["processes_pattern"] }
func (t Templates) LocksPattern() string     { return t.commands["locks_pattern"] }

// Flag returns one fixed flag value (e.g. "quiet", "purge").
func (t Templates) Flag(name string) string { return t.flags[name] }
