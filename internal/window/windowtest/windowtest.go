// Package windowtest provides in-memory windows for tests.
package windowtest

import (
	"context"
	"sync"
	"time"

	"github.com/trgui-ng/trgui/internal/bus"
	"github.com/trgui-ng/trgui/internal/window"
)

// Options controls how fake windows answer the exit handshake.
type Options struct {
	Bus *bus.Bus
	// AutoAck answers every exit-requested with frontend-done.
	AutoAck  bool
	AckDelay time.Duration
	// ShowErr makes Show fail.
	ShowErr error
}

// Window is a fake window. It records what happened to it in order.
type Window struct {
	id    string
	label string
	opts  Options

	mu       sync.Mutex
	title    string
	shown    int
	focused  int
	events   []bus.Event
	sequence []string
	attempt  any

	done      chan struct{}
	closeOnce sync.Once
	unlisten  []func()
}

// NewWindow builds a fake window and subscribes it to its bus topics.
func NewWindow(spec window.Spec, opts Options) *Window {
	w := &Window{id: spec.ID, label: spec.Label, opts: opts, done: make(chan struct{})}
	if opts.Bus != nil {
		w.unlisten = append(w.unlisten,
			opts.Bus.Listen(bus.TopicExitRequested, spec.Label, w.onExitRequested),
			opts.Bus.Listen(bus.TopicOpenTorrents, spec.Label, w.record),
		)
	}
	return w
}

func (w *Window) onExitRequested(ev bus.Event) {
	w.record(ev)
	w.mu.Lock()
	w.attempt = ev.Payload
	w.mu.Unlock()
	w.mark("exit-requested")
	if !w.opts.AutoAck {
		return
	}
	go func() {
		if w.opts.AckDelay > 0 {
			time.Sleep(w.opts.AckDelay)
		}
		w.Ack()
	}()
}

func (w *Window) record(ev bus.Event) {
	w.mu.Lock()
	w.events = append(w.events, ev)
	w.mu.Unlock()
}

func (w *Window) mark(step string) {
	w.mu.Lock()
	w.sequence = append(w.sequence, step)
	w.mu.Unlock()
}

// Ack emits frontend-done for the last exit request unless the window is
// already destroyed.
func (w *Window) Ack() {
	select {
	case <-w.done:
		return
	default:
	}
	w.mu.Lock()
	attempt := w.attempt
	w.mu.Unlock()
	w.mark("ack")
	w.opts.Bus.EmitTo(w.label, bus.TopicFrontendDone, attempt)
}

func (w *Window) ID() string    { return w.id }
func (w *Window) Label() string { return w.label }

func (w *Window) Show() error {
	if w.opts.ShowErr != nil {
		return w.opts.ShowErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shown++
	return nil
}

func (w *Window) Focus() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focused++
	return nil
}

func (w *Window) SetTitle(title string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.title = title
	return nil
}

// Close destroys the window.
func (w *Window) Close() error {
	w.destroy("close")
	return nil
}

// Destroy simulates the window going away without a Close call.
func (w *Window) Destroy() {
	w.destroy("destroyed")
}

func (w *Window) destroy(step string) {
	w.closeOnce.Do(func() {
		w.mark(step)
		for _, fn := range w.unlisten {
			fn()
		}
		close(w.done)
	})
}

func (w *Window) Done() <-chan struct{} { return w.done }

// Closed reports whether the window was destroyed.
func (w *Window) Closed() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *Window) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.title
}

func (w *Window) ShowCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shown
}

func (w *Window) FocusCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// Events returns the bus events delivered to this window.
func (w *Window) Events(topic bus.Topic) []bus.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []bus.Event
	for _, ev := range w.events {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

// Sequence returns the handshake steps in the order they happened.
func (w *Window) Sequence() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.sequence...)
}

// Factory builds fake windows and remembers them.
type Factory struct {
	Options Options
	Err     error

	mu      sync.Mutex
	windows []*Window
}

func (f *Factory) NewWindow(_ context.Context, spec window.Spec) (window.Window, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	w := NewWindow(spec, f.Options)
	f.mu.Lock()
	f.windows = append(f.windows, w)
	f.mu.Unlock()
	return w, nil
}

// Count returns how many windows were built.
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.windows)
}

// Last returns the most recently built window, or nil.
func (f *Factory) Last() *Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.windows) == 0 {
		return nil
	}
	return f.windows[len(f.windows)-1]
}
