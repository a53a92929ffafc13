// Package config handles configuration loading, saving, and path management.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// GlobalDirName is the name of the global trgui directory.
	GlobalDirName = ".trgui"

	// LogsDirName is the name of the logs directory.
	LogsDirName = "logs"
)

// File names
const (
	InstanceFileName = "instance.yaml"
	SettingsFileName = "settings.yaml"
	PrefsFileName    = "prefs.toml"
	EnvFileName      = ".env"
	LogFileName      = "trgui.log"
)

// Paths resolves every file the host reads or writes below one root directory.
type Paths struct {
	Root string
}

// DefaultPaths returns paths rooted at ~/.trgui/.
func DefaultPaths() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, err
	}
	return Paths{Root: filepath.Join(home, GlobalDirName)}, nil
}

// ResolvePaths returns paths rooted at dir, or the defaults when dir is empty.
func ResolvePaths(dir string) (Paths, error) {
	if strings.TrimSpace(dir) == "" {
		return DefaultPaths()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Paths{}, err
	}
	return Paths{Root: abs}, nil
}

// SettingsFile returns the path to settings.yaml.
func (p Paths) SettingsFile() string {
	return filepath.Join(p.Root, SettingsFileName)
}

// InstanceFile returns the path to instance.yaml.
func (p Paths) InstanceFile() string {
	return filepath.Join(p.Root, InstanceFileName)
}

// PrefsFile returns the path to the UI preferences file.
func (p Paths) PrefsFile() string {
	return filepath.Join(p.Root, PrefsFileName)
}

// EnvFile returns the path to the optional .env overrides file.
func (p Paths) EnvFile() string {
	return filepath.Join(p.Root, EnvFileName)
}

// LogsDir returns the path to the logs directory.
func (p Paths) LogsDir() string {
	return filepath.Join(p.Root, LogsDirName)
}

// LogFile returns the path to the main log file.
func (p Paths) LogFile() string {
	return filepath.Join(p.LogsDir(), LogFileName)
}

// LockFile returns the instance lock path for the given endpoint name.
func (p Paths) LockFile(name string) string {
	return filepath.Join(p.Root, name+".lock")
}

// SocketFile returns the instance socket path for the given endpoint name.
func (p Paths) SocketFile(name string) string {
	return filepath.Join(p.Root, name+".sock")
}

// EnsureDir creates the root directory if it doesn't exist.
func (p Paths) EnsureDir() error {
	return os.MkdirAll(p.Root, 0o700)
}
