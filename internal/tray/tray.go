package tray

import (
	"context"
	_ "embed"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/models"
)

//go:embed icon.png
var iconData []byte

// Options configures the system tray.
type Options struct {
	Tooltip string
	// OnReady runs once the tray exists. Start the application here.
	OnReady func()
	// OnExit runs after the tray loop stops.
	OnExit func()
	Logger *zap.Logger
}

// systrayMenu adapts the systray items to Menu.
type systrayMenu struct {
	toggle *systray.MenuItem
}

func (m *systrayMenu) SetToggleTitle(title string) {
	m.toggle.SetTitle(title)
}

func (m *systrayMenu) SetToggleEnabled(enabled bool) {
	if enabled {
		m.toggle.Enable()
	} else {
		m.toggle.Disable()
	}
}

// Run starts the system tray and attaches it to ctrl. This blocks the calling
// goroutine, which must be the main one, until Quit is called. The click loop
// ends with the tray loop and ctrl falls back to an in-memory menu.
func Run(ctx context.Context, ctrl *Controller, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("systray")

	clickCtx, stopClicks := context.WithCancel(ctx)
	defer stopClicks()

	onReady := func() {
		systray.SetTemplateIcon(iconData, iconData)
		systray.SetTooltip(opts.Tooltip)

		header := systray.AddMenuItem(opts.Tooltip, "")
		header.Disable()
		systray.AddSeparator()

		toggleItem := systray.AddMenuItem(models.LabelShow, "Show or hide the main window")
		systray.AddSeparator()
		quitItem := systray.AddMenuItem("Quit", "Quit "+opts.Tooltip)

		ctrl.SetMenu(&systrayMenu{toggle: toggleItem})

		if opts.OnReady != nil {
			opts.OnReady()
		}
		go handleClicks(clickCtx, ctrl, toggleItem.ClickedCh, quitItem.ClickedCh, logger)
	}
	onExit := func() {
		stopClicks()
		if opts.OnExit != nil {
			opts.OnExit()
		}
	}
	systray.Run(onReady, onExit)
	ctrl.SetMenu(&MemoryMenu{})
}

// Quit stops the tray loop started by Run.
func Quit() {
	systray.Quit()
}

func handleClicks(ctx context.Context, ctrl *Controller, toggle, quit <-chan struct{}, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-toggle:
			go func() {
				if err := ctrl.Toggle(ctx); err != nil {
					logger.Warn("toggle failed", zap.Error(err))
				}
			}()
		case <-quit:
			ctrl.Quit()
		}
	}
}
