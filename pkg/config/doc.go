package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"dario.cat/mergo"
	ini "github.com/go-ini/ini"
)

// rawDoc is the pass-1 parsed INI document: section -> key -> raw,
// unexpanded value text. No %()s interpolation or ${...} expansion has
// happened yet.
type rawDoc struct {
	sections map[string]map[string]string
}

func newRawDoc() *rawDoc {
	return &rawDoc{sections: map[string]map[string]string{}}
}

func (d *rawDoc) section(name string) map[string]string {
	sec, ok := d.sections[name]
	if !ok {
		sec = map[string]string{}
		d.sections[name] = sec
	}
	return sec
}

// sectionNames returns section names sorted for deterministic iteration
// (used by tests and by the package orchestrator's template dump).
func (d *rawDoc) sectionNames() []string {
	names := make([]string, 0, len(d.sections))
	for n := range d.sections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// merge overwrites d's keys with src's, section by section: last write
// wins per key.
func (d *rawDoc) merge(src *rawDoc) {
	for name, keys := range src.sections {
		dst := d.section(name)
		if err := mergo.Merge(&dst, keys, mergo.WithOverride); err != nil {
			// Merging two map[string]string values cannot fail; this
			// guards only against a future field-type change.
			for k, v := range keys {
				dst[k] = v
			}
		}
		d.sections[name] = dst
	}
}

// joinContinuations implements a backtick-newline continuation idiom:
// a line ending in a backtick is joined with the next line, without
// inserting a separator, so that long quoted command fragments can be
// split across lines in a distro INI.
func joinContinuations(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		for strings.HasSuffix(line, "`") && i+1 < len(lines) {
			line = strings.TrimSuffix(line, "`") + lines[i+1]
			i++
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// parseRawFile parses one INI file (after continuation-joining) into a
// rawDoc, without resolving includes or any interpolation. go-ini's own
// key.Value() returns the stored string untouched: all %()s / ${...}
// handling is ours, applied in pass 2 (resolve.go).
func parseRawFile(path string) (*rawDoc, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, ConfigError(path, err)
	}
	return parseRawBytes(path, contents)
}

// parseRawBytes is parseRawFile's shared core, also used to parse
// go:embed-backed bundled distribution INIs (loader.go) where there is no
// real filesystem path to os.ReadFile.
func parseRawBytes(path string, contents []byte) (*rawDoc, error) {
	joined := joinContinuations(string(contents))

	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:     true,
		AllowBooleanKeys:        true,
		SkipUnrecognizableLines: false,
	}, []byte(joined))
	if err != nil {
		return nil, ConfigError(path, fmt.Errorf("parse ini: %w", err))
	}

	doc := newRawDoc()
	for _, sec := range cfg.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection {
			name = "DEFAULT"
		}
		dst := doc.section(name)
		for _, key := range sec.Keys() {
			dst[key.Name()] = key.Value()
		}
	}
	return doc, nil
}
