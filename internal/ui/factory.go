package ui

import (
	"context"
	"errors"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/bus"
	"github.com/trgui-ng/trgui/internal/commands"
	"github.com/trgui-ng/trgui/internal/state"
	"github.com/trgui-ng/trgui/internal/window"
)

// Options configures the window factory.
type Options struct {
	Bus       *bus.Bus
	Store     *state.Store
	Commands  *commands.Commands
	PrefsPath string
	// Headless forces headless windows even on a terminal.
	Headless bool
	Logger   *zap.Logger
}

// Factory builds terminal windows when stdout is a terminal and headless
// windows otherwise.
type Factory struct {
	env      *env
	headless bool
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// NewFactory creates a factory.
func NewFactory(opts Options) *Factory {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		env: &env{
			bus:       opts.Bus,
			store:     opts.Store,
			cmds:      opts.Commands,
			prefsPath: opts.PrefsPath,
			logger:    logger.Named("ui"),
		},
		headless: opts.Headless || !IsTerminal(),
	}
}

// Headless reports whether the factory builds headless windows.
func (f *Factory) Headless() bool { return f.headless }

// NewWindow builds a window for spec.
func (f *Factory) NewWindow(ctx context.Context, spec window.Spec) (window.Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.env.bus == nil {
		return nil, errors.New("window factory has no event bus")
	}
	if f.headless {
		return newHeadlessWindow(f.env, spec), nil
	}
	return newTerminalWindow(f.env, spec), nil
}
