// Package config handles trogctl paths and settings.
package config

import (
	"os"
	"path/filepath"
)

// Paths holds the files trogctl reads and writes.
type Paths struct {
	Home       string
	ConfigYAML string
	ConfigTOML string
	Logs       string
	ClientLog  string
}

// GetPaths returns the paths for the current user.
func GetPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	trogHome := filepath.Join(home, ".trogctl")
	logsDir := filepath.Join(trogHome, "logs")
	return &Paths{
		Home:       trogHome,
		ConfigYAML: filepath.Join(trogHome, "config.yaml"),
		ConfigTOML: filepath.Join(trogHome, "config.toml"),
		Logs:       logsDir,
		ClientLog:  filepath.Join(logsDir, "trogctl.log"),
	}, nil
}

// SettingsFile returns the settings file in use. YAML wins when both
// exist; if neither does, the YAML path is returned.
func (p *Paths) SettingsFile() string {
	if _, err := os.Stat(p.ConfigYAML); err == nil {
		return p.ConfigYAML
	}
	if _, err := os.Stat(p.ConfigTOML); err == nil {
		return p.ConfigTOML
	}
	return p.ConfigYAML
}

// EnsureDirectories creates the required directories if they don't exist.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.Home, p.Logs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
