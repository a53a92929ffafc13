package models

import "time"

// InstanceSettings configures the single-instance endpoint.
type InstanceSettings struct {
	Name string `yaml:"name"`
}

// ShutdownSettings configures the exit handshake.
type ShutdownSettings struct {
	// AckTimeout bounds the wait for the frontend acknowledgement. Zero waits forever.
	AckTimeout time.Duration `yaml:"ack_timeout"`
}

// UISettings holds presentation settings.
type UISettings struct {
	Title string `yaml:"title"`
}

// LogSettings configures logging output.
type LogSettings struct {
	Level string `yaml:"level"` // "debug" | "info" | "warn" | "error"
	File  bool   `yaml:"file"`
}

// Settings represents global application settings.
// This corresponds to ~/.trgui/settings.yaml.
type Settings struct {
	Version  int              `yaml:"version"`
	Instance InstanceSettings `yaml:"instance"`
	Shutdown ShutdownSettings `yaml:"shutdown"`
	Poller   PollerConfig     `yaml:"poller"`
	UI       UISettings       `yaml:"ui"`
	Log      LogSettings      `yaml:"log"`
}

// NewSettings creates settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version: 1,
		Instance: InstanceSettings{
			Name: "trgui",
		},
		Shutdown: ShutdownSettings{
			AckTimeout: 0,
		},
		Poller: PollerConfig{
			URL:      "http://localhost:9091/transmission/rpc",
			Interval: 5 * time.Second,
		},
		UI: UISettings{
			Title: "Transmission Remote GUI",
		},
		Log: LogSettings{
			Level: "info",
			File:  true,
		},
	}
}
