package ui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/bus"
	"github.com/trgui-ng/trgui/internal/models"
	"github.com/trgui-ng/trgui/internal/window"
)

// quitGrace bounds how long Close waits for the program to restore the terminal.
const quitGrace = 3 * time.Second

// TerminalWindow renders the torrent list full-screen in the terminal.
// The program starts on Show; Close stops it.
type TerminalWindow struct {
	id     string
	label  string
	env    *env
	logger *zap.Logger

	ref  programRef
	done chan struct{}

	mu       sync.Mutex
	title    string
	program  *tea.Program
	running  bool
	closed   bool
	unlisten []func()
}

func newTerminalWindow(e *env, spec window.Spec) *TerminalWindow {
	w := &TerminalWindow{
		id:      spec.ID,
		label:   spec.Label,
		env:     e,
		logger:  e.logger.With(zap.String("window", spec.ID)),
		title:   spec.Title,
		done:    make(chan struct{}),
	}
	w.unlisten = []func(){
		e.bus.Listen(bus.TopicExitRequested, spec.Label, func(ev bus.Event) {
			attempt, _ := ev.Payload.(string)
			if !w.ref.Send(exitRequestedMsg{Attempt: attempt}) {
				// Nothing on screen to flush.
				e.bus.EmitTo(spec.Label, bus.TopicFrontendDone, attempt)
			}
		}),
		e.bus.Listen(bus.TopicOpenTorrents, spec.Label, func(ev bus.Event) {
			batch, _ := ev.Payload.(models.ArgumentBatch)
			w.ref.Send(openTorrentsMsg{Batch: batch})
		}),
	}
	return w
}

func (w *TerminalWindow) ID() string    { return w.id }
func (w *TerminalWindow) Label() string { return w.label }

// Show starts the program. Later calls do nothing.
func (w *TerminalWindow) Show() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return window.ErrClosed
	}
	if w.running {
		return nil
	}

	prefs, err := LoadPrefs(w.env.prefsPath)
	if err != nil {
		w.logger.Warn("load prefs failed, using defaults", zap.Error(err))
	}
	p := tea.NewProgram(newModel(w.env, w.label, w.title, prefs), tea.WithAltScreen())
	w.program = p
	w.running = true
	w.ref.Set(p)

	go func() {
		if _, err := p.Run(); err != nil {
			w.logger.Error("terminal window stopped", zap.Error(err))
		}
		w.finish()
	}()
	return nil
}

func (w *TerminalWindow) Focus() error {
	w.ref.Send(focusMsg{})
	return nil
}

func (w *TerminalWindow) SetTitle(title string) error {
	w.mu.Lock()
	w.title = title
	w.mu.Unlock()
	w.ref.Send(setTitleMsg{Title: title})
	return nil
}

// Close stops the program and restores the terminal.
func (w *TerminalWindow) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return nil
	}
	w.closed = true
	p, running := w.program, w.running
	w.mu.Unlock()

	if !running {
		w.finish()
		return nil
	}
	p.Quit()
	select {
	case <-w.done:
	case <-time.After(quitGrace):
		w.logger.Warn("terminal window did not quit in time, killing it")
		p.Kill()
		<-w.done
	}
	return nil
}

func (w *TerminalWindow) finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.done:
		return
	default:
	}
	w.closed = true
	w.ref.Clear()
	for _, fn := range w.unlisten {
		fn()
	}
	close(w.done)
}

func (w *TerminalWindow) Done() <-chan struct{} { return w.done }
