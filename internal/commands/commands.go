// Package commands implements the operations the presentation layer may
// invoke on the host. Every command reports failure as an error; a panicking
// command is recovered by the dispatcher.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/models"
)

// MaxReadSize bounds ReadFile. Torrent metadata files are far smaller.
const MaxReadSize = 32 << 20

// Command names accepted by Invoke.
const (
	ReadFileCommand        = "read_file"
	ShellOpenCommand       = "shell_open"
	SetPollerConfigCommand = "set_poller_config"
)

var (
	// ErrUnknownCommand is returned by Invoke for names it does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrCommandPanic wraps a recovered panic.
	ErrCommandPanic = errors.New("command panicked")
)

// PollerConfigurer applies poller settings.
type PollerConfigurer interface {
	Configure(cfg models.PollerConfig) error
}

// Opener hands a URL or path to the desktop's default handler.
type Opener func(ctx context.Context, target string) error

// Commands holds the collaborators the commands act on.
type Commands struct {
	poller PollerConfigurer
	open   Opener
	logger *zap.Logger
}

// New creates the command set. A nil opener uses the platform default.
func New(poller PollerConfigurer, open Opener, logger *zap.Logger) *Commands {
	if open == nil {
		open = SystemOpen
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Commands{poller: poller, open: open, logger: logger.Named("commands")}
}

// ReadFile returns the contents of a regular file.
func (c *Commands) ReadFile(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("read file: empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("read file: %s is not a regular file", path)
	}
	if info.Size() > MaxReadSize {
		return nil, fmt.Errorf("read file: %s is %d bytes, limit is %d", path, info.Size(), MaxReadSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// ShellOpen opens an http(s) or magnet URL, or an existing local path.
func (c *Commands) ShellOpen(ctx context.Context, target string) error {
	target = strings.TrimSpace(target)
	if err := validateOpenTarget(target); err != nil {
		return fmt.Errorf("shell open: %w", err)
	}
	if err := c.open(ctx, target); err != nil {
		return fmt.Errorf("shell open %s: %w", target, err)
	}
	c.logger.Debug("opened externally", zap.String("target", target))
	return nil
}

func validateOpenTarget(target string) error {
	if target == "" {
		return errors.New("empty target")
	}
	if u, err := url.Parse(target); err == nil {
		switch u.Scheme {
		case "http", "https":
			if u.Host == "" {
				return fmt.Errorf("url %q has no host", target)
			}
			return nil
		case "magnet":
			return nil
		}
	}
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("unsupported target %q", target)
	}
	return nil
}

// SetPollerConfig validates and applies new poller settings.
func (c *Commands) SetPollerConfig(cfg models.PollerConfig) error {
	if c.poller == nil {
		return errors.New("set poller config: poller unavailable")
	}
	if err := c.poller.Configure(cfg); err != nil {
		return fmt.Errorf("set poller config: %w", err)
	}
	return nil
}

// Invoke runs the command called name with JSON arguments and returns its
// result. It never panics.
func (c *Commands) Invoke(ctx context.Context, name string, args json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("command panicked", zap.String("command", name), zap.Any("panic", r))
			result = nil
			err = fmt.Errorf("%w: %s: %v", ErrCommandPanic, name, r)
		}
	}()

	switch name {
	case ReadFileCommand:
		var in struct {
			Path string `json:"path"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return c.ReadFile(in.Path)
	case ShellOpenCommand:
		var in struct {
			Target string `json:"target"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return nil, c.ShellOpen(ctx, in.Target)
	case SetPollerConfigCommand:
		var in struct {
			URL      string `json:"url"`
			Interval string `json:"interval"`
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		cfg := models.PollerConfig{URL: in.URL, Username: in.Username, Password: in.Password}
		if in.Interval != "" {
			d, err := parseDuration(in.Interval)
			if err != nil {
				return nil, fmt.Errorf("set poller config: %w", err)
			}
			cfg.Interval = d
		}
		return nil, c.SetPollerConfig(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

func decodeArgs(args json.RawMessage, dest any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, dest); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// SystemOpen uses the platform's opener command.
func SystemOpen(ctx context.Context, target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", target)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", target)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
