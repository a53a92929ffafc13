package ui

import (
	"sync"

	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/bus"
	"github.com/trgui-ng/trgui/internal/models"
	"github.com/trgui-ng/trgui/internal/window"
)

// HeadlessWindow stands in for a window when there is no terminal to draw
// on. It logs what it receives and answers the exit handshake at once.
type HeadlessWindow struct {
	id     string
	label  string
	env    *env
	logger *zap.Logger

	mu       sync.Mutex
	title    string
	prefs    Prefs
	done     chan struct{}
	closed   bool
	unlisten []func()
}

func newHeadlessWindow(e *env, spec window.Spec) *HeadlessWindow {
	prefs, err := LoadPrefs(e.prefsPath)
	if err != nil {
		e.logger.Warn("load prefs failed, using defaults", zap.Error(err))
	}
	w := &HeadlessWindow{
		id:     spec.ID,
		label:  spec.Label,
		env:    e,
		logger: e.logger.With(zap.String("window", spec.ID)),
		title:  spec.Title,
		prefs:  prefs,
		done:   make(chan struct{}),
	}
	w.unlisten = []func(){
		e.bus.Listen(bus.TopicExitRequested, spec.Label, w.onExitRequested),
		e.bus.Listen(bus.TopicOpenTorrents, spec.Label, w.onOpenTorrents),
	}
	return w
}

func (w *HeadlessWindow) onExitRequested(ev bus.Event) {
	w.mu.Lock()
	prefs := w.prefs
	w.mu.Unlock()
	if err := SavePrefs(w.env.prefsPath, prefs); err != nil {
		w.logger.Warn("flush prefs failed", zap.Error(err))
	}
	w.env.bus.EmitTo(w.label, bus.TopicFrontendDone, ev.Payload)
}

func (w *HeadlessWindow) onOpenTorrents(ev bus.Event) {
	batch, _ := ev.Payload.(models.ArgumentBatch)
	accepted, _ := w.env.ingest(batch)
	w.mu.Lock()
	w.prefs.remember(accepted)
	w.mu.Unlock()
}

func (w *HeadlessWindow) ID() string    { return w.id }
func (w *HeadlessWindow) Label() string { return w.label }

func (w *HeadlessWindow) Show() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return window.ErrClosed
	}
	w.logger.Info("headless window shown", zap.String("title", w.title))
	return nil
}

func (w *HeadlessWindow) Focus() error { return nil }

func (w *HeadlessWindow) SetTitle(title string) error {
	w.mu.Lock()
	w.title = title
	w.mu.Unlock()
	return nil
}

func (w *HeadlessWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	for _, fn := range w.unlisten {
		fn()
	}
	close(w.done)
	return nil
}

func (w *HeadlessWindow) Done() <-chan struct{} { return w.done }

// Recent returns the files this window has accepted, newest first.
func (w *HeadlessWindow) Recent() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.prefs.Recent...)
}
