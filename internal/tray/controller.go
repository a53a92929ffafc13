package tray

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/models"
	"github.com/trgui-ng/trgui/internal/shutdown"
	"github.com/trgui-ng/trgui/internal/window"
)

// ErrDisabled is returned by Show while the tray refuses to open windows.
var ErrDisabled = errors.New("tray cannot show windows")

// ErrHiding is returned by Show while a hide is still in flight.
var ErrHiding = errors.New("main window is being hidden")

// Controller keeps the toggle label in step with the main window: the label
// reads "Hide" exactly when the window exists.
type Controller struct {
	windows Windows
	closer  Closer
	title   string
	logger  *zap.Logger

	mu      sync.Mutex
	menu    Menu
	label   string
	enabled bool
	hiding  bool
	onQuit  func()
}

// NewController creates a controller. Until SetMenu is called the label is
// kept in an in-memory menu.
func NewController(windows Windows, closer Closer, title string, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		windows: windows,
		closer:  closer,
		title:   title,
		logger:  logger.Named("tray"),
		menu:    &MemoryMenu{},
		label:   models.LabelShow,
		enabled: true,
	}
	c.menu.SetToggleTitle(c.label)
	c.menu.SetToggleEnabled(true)
	windows.OnClosed(c.windowClosed)
	return c
}

// SetMenu attaches the real tray menu and brings it up to date.
func (c *Controller) SetMenu(m Menu) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.menu = m
	m.SetToggleTitle(c.label)
	m.SetToggleEnabled(c.enabled)
}

// OnQuit registers the exit request handler for the Quit item.
func (c *Controller) OnQuit(fn func()) {
	c.mu.Lock()
	c.onQuit = fn
	c.mu.Unlock()
}

// SetEnabled allows or refuses showing windows. Quit works either way.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	c.menu.SetToggleEnabled(enabled)
}

// Label returns the current toggle label.
func (c *Controller) Label() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label
}

// Toggle hides the main window if it exists and shows a new one otherwise.
// While a hide is in flight further toggles do nothing.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	if c.hiding {
		c.mu.Unlock()
		c.logger.Debug("toggle ignored while hiding")
		return nil
	}
	if w, ok := c.windows.Get(window.MainLabel); ok {
		c.hiding = true
		c.mu.Unlock()
		return c.hide(ctx, w)
	}
	c.mu.Unlock()

	_, err := c.Show(ctx)
	if errors.Is(err, ErrDisabled) || errors.Is(err, ErrHiding) {
		return nil
	}
	return err
}

// PrimaryClick is the tray icon's primary click. It behaves like Toggle.
func (c *Controller) PrimaryClick(ctx context.Context) error {
	return c.Toggle(ctx)
}

// Show returns the main window, building a new one if needed. The label
// switches to "Hide" in the same step as creation.
func (c *Controller) Show(ctx context.Context) (window.Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return nil, ErrDisabled
	}
	if c.hiding {
		return nil, ErrHiding
	}
	w, err := c.windows.Create(ctx, window.MainLabel, c.title)
	if err != nil {
		c.syncLocked()
		return nil, err
	}
	c.syncLocked()
	return w, nil
}

// Hide closes the main window through the exit handshake. It does nothing
// when there is no window or a hide is already in flight.
func (c *Controller) Hide(ctx context.Context) error {
	c.mu.Lock()
	if c.hiding {
		c.mu.Unlock()
		return nil
	}
	w, ok := c.windows.Get(window.MainLabel)
	if !ok {
		c.syncLocked()
		c.mu.Unlock()
		return nil
	}
	c.hiding = true
	c.mu.Unlock()
	return c.hide(ctx, w)
}

func (c *Controller) hide(ctx context.Context, w window.Window) error {
	err := c.closer.Close(ctx, w)

	c.mu.Lock()
	c.hiding = false
	c.syncLocked()
	c.mu.Unlock()

	if errors.Is(err, shutdown.ErrWindowGone) {
		return nil
	}
	return err
}

// Quit forwards to the registered exit request handler.
func (c *Controller) Quit() {
	c.mu.Lock()
	fn := c.onQuit
	c.mu.Unlock()
	if fn == nil {
		c.logger.Warn("quit requested with no handler")
		return
	}
	fn()
}

func (c *Controller) windowClosed(label string) {
	if label != window.MainLabel {
		return
	}
	c.mu.Lock()
	c.syncLocked()
	c.mu.Unlock()
}

// syncLocked derives the label from whether the main window exists.
func (c *Controller) syncLocked() {
	want := models.LabelShow
	if _, ok := c.windows.Get(window.MainLabel); ok {
		want = models.LabelHide
	}
	if c.label == want {
		return
	}
	c.label = want
	c.menu.SetToggleTitle(want)
	c.logger.Debug("tray label updated", zap.String("label", want))
}

// MemoryMenu is a Menu that only remembers its state. It backs the
// controller when no tray is available.
type MemoryMenu struct {
	mu      sync.Mutex
	title   string
	enabled bool
}

func (m *MemoryMenu) SetToggleTitle(title string) {
	m.mu.Lock()
	m.title = title
	m.mu.Unlock()
}

func (m *MemoryMenu) SetToggleEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()
}

// Title returns the last toggle title.
func (m *MemoryMenu) Title() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.title
}

// Enabled reports whether the toggle is enabled.
func (m *MemoryMenu) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}
