package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// PollerConfig describes how the background poller reaches the daemon.
type PollerConfig struct {
	URL      string        `yaml:"url" json:"url"`
	Interval time.Duration `yaml:"interval" json:"interval"`
	Username string        `yaml:"username,omitempty" json:"username,omitempty"`
	Password string        `yaml:"password,omitempty" json:"password,omitempty"`
}

// MinPollInterval is the shortest accepted polling interval.
const MinPollInterval = 500 * time.Millisecond

// Validate reports whether the configuration can be applied.
func (c PollerConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url has no host")
	}
	if c.Interval < MinPollInterval {
		return fmt.Errorf("interval %s is shorter than %s", c.Interval, MinPollInterval)
	}
	return nil
}

// Redacted returns a copy safe for logging.
func (c PollerConfig) Redacted() PollerConfig {
	if c.Password != "" {
		c.Password = "***"
	}
	return c
}
