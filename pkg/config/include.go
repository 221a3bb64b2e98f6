package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// loadChain parses path and every file it transitively includes via
// `base.includes`, merging them so each included file is fully
// resolved (recursively) and merged *before* the
// file that includes it, so the including file's own keys win on
// conflict. A file already visited anywhere in this resolution (by
// canonical path) is skipped the second time: this is what makes an
// include cycle safe rather than infinite.
func loadChain(path string, visited map[string]bool) (*rawDoc, error) {
	canon, err := canonicalPath(path)
	if err != nil {
		return nil, ConfigError(path, err)
	}
	if visited[canon] {
		return newRawDoc(), nil
	}
	visited[canon] = true

	self, err := parseRawFile(path)
	if err != nil {
		return nil, err
	}

	result := newRawDoc()
	includes := parseIncludeList(self.section("base")["includes"])
	dir := filepath.Dir(path)
	for _, inc := range includes {
		incPath := inc
		if !filepath.IsAbs(incPath) {
			incPath = filepath.Join(dir, incPath)
		}
		child, err := loadChain(incPath, visited)
		if err != nil {
			return nil, err
		}
		result.merge(child)
	}

	result.merge(self)
	return result, nil
}

// parseIncludeList splits the raw base.includes value on commas and
// newlines (either separator is accepted since the value may have been
// written across continuation lines).
func parseIncludeList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	// Use the absolute, cleaned form as the cycle key. Symlink resolution
	// is deliberately skipped: profiles commonly live under a symlinked
	// dotfiles checkout, and resolving through the symlink would make two
	// distinct logical configs collide on one physical file.
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("include %q: %w", path, err)
	}
	return filepath.Clean(abs), nil
}
