// Package tray implements the tray icon and the show/hide toggle for the
// main window.
package tray

import (
	"context"

	"github.com/trgui-ng/trgui/internal/window"
)

// Menu is the part of the tray menu the controller drives.
type Menu interface {
	SetToggleTitle(title string)
	SetToggleEnabled(enabled bool)
}

// Windows gives the controller access to the live windows.
type Windows interface {
	Get(label string) (window.Window, bool)
	Create(ctx context.Context, label, title string) (window.Window, error)
	OnClosed(fn func(label string))
}

// Closer runs the exit handshake for a window before destroying it.
type Closer interface {
	Close(ctx context.Context, w window.Window) error
}
