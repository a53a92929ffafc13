package ui

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const maxRecentFiles = 10

// Prefs is window state kept across sessions.
type Prefs struct {
	SelectedID int      `toml:"selected_id"`
	ShowSpeeds bool     `toml:"show_speeds"`
	Recent     []string `toml:"recent"`
}

func defaultPrefs() Prefs {
	return Prefs{ShowSpeeds: true}
}

// LoadPrefs reads prefs from path. A missing file yields defaults.
func LoadPrefs(path string) (Prefs, error) {
	prefs := defaultPrefs()
	if path == "" {
		return prefs, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return prefs, nil
	}
	if err != nil {
		return prefs, fmt.Errorf("read prefs: %w", err)
	}
	if err := toml.Unmarshal(data, &prefs); err != nil {
		return defaultPrefs(), fmt.Errorf("parse prefs: %w", err)
	}
	return prefs, nil
}

// SavePrefs writes prefs to path atomically.
func SavePrefs(path string, prefs Prefs) error {
	if path == "" {
		return nil
	}
	data, err := toml.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}

// remember adds files to the recent list, newest first, without duplicates.
func (p *Prefs) remember(files []string) {
	for _, f := range files {
		out := []string{f}
		for _, existing := range p.Recent {
			if existing != f {
				out = append(out, existing)
			}
		}
		p.Recent = out
	}
	if len(p.Recent) > maxRecentFiles {
		p.Recent = p.Recent[:maxRecentFiles]
	}
}
