package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	configManifestFile = "configs.list"
	appManifestFile    = "apps.list"
	startupManifestFile = "startup.list"
)

// WriteManifests materializes the three manifest files the entrypoint
// reads, into scriptsDir (the host path later bind-mounted as
// $YBOX_TARGET_SCRIPTS_DIR).
func WriteManifests(scriptsDir string, m Manifest) error {
	if err := os.MkdirAll(scriptsDir, 0o755); err != nil {
		return fmt.Errorf("create scripts dir: %w", err)
	}

	var configLines []string
	for _, c := range m.Configs {
		configLines = append(configLines, fmt.Sprintf("%s -> %s [%s]", c.HostSource, c.GuestTarget, c.Action))
	}
	if err := writeLines(filepath.Join(scriptsDir, configManifestFile), configLines); err != nil {
		return err
	}

	var appLines []string
	for _, a := range m.Apps {
		if a.Flags == "" {
			appLines = append(appLines, a.Name)
		} else {
			appLines = append(appLines, fmt.Sprintf("%s %s", a.Name, a.Flags))
		}
	}
	if err := writeLines(filepath.Join(scriptsDir, appManifestFile), appLines); err != nil {
		return err
	}

	return writeLines(filepath.Join(scriptsDir, startupManifestFile), m.Startup)
}

func writeLines(path string, lines []string) error {
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
