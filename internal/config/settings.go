package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/trgui-ng/trgui/internal/models"
)

// Environment variables that override settings.yaml. They are read from the
// process environment first and from <root>/.env second.
const (
	EnvRPCURL       = "TRGUI_RPC_URL"
	EnvRPCUsername  = "TRGUI_RPC_USERNAME"
	EnvRPCPassword  = "TRGUI_RPC_PASSWORD"
	EnvPollInterval = "TRGUI_POLL_INTERVAL"
	EnvLogLevel     = "TRGUI_LOG_LEVEL"
)

// LoadSettings loads the global settings from settings.yaml and applies
// environment overrides. If the file doesn't exist, defaults are used.
func LoadSettings(p Paths) (*models.Settings, error) {
	settings, err := LoadYAMLOrDefault(p.SettingsFile(), models.NewSettings)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(settings, envLookup(p.EnvFile())); err != nil {
		return nil, err
	}
	normalize(settings)
	return settings, nil
}

// SaveSettings saves the global settings to settings.yaml.
func SaveSettings(p Paths, settings *models.Settings) error {
	return SaveYAML(p.SettingsFile(), settings)
}

// envLookup returns a lookup that prefers the process environment and falls
// back to values read from the dotenv file. A missing file is not an error.
func envLookup(envFile string) func(string) (string, bool) {
	dotenv := map[string]string{}
	if FileExists(envFile) {
		if values, err := godotenv.Read(envFile); err == nil {
			dotenv = values
		}
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

func applyEnv(s *models.Settings, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvRPCURL); ok && strings.TrimSpace(v) != "" {
		s.Poller.URL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvRPCUsername); ok {
		s.Poller.Username = v
	}
	if v, ok := lookup(EnvRPCPassword); ok {
		s.Poller.Password = v
	}
	if v, ok := lookup(EnvPollInterval); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollInterval, err)
		}
		s.Poller.Interval = d
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		s.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
	return nil
}

func normalize(s *models.Settings) {
	defaults := models.NewSettings()
	if strings.TrimSpace(s.Instance.Name) == "" {
		s.Instance.Name = defaults.Instance.Name
	}
	if s.Shutdown.AckTimeout < 0 {
		s.Shutdown.AckTimeout = 0
	}
	if strings.TrimSpace(s.UI.Title) == "" {
		s.UI.Title = defaults.UI.Title
	}
	if strings.TrimSpace(s.Log.Level) == "" {
		s.Log.Level = defaults.Log.Level
	}
}
