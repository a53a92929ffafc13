package window

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/models"
)

type entry struct {
	win        Window
	visibility models.Visibility
}

// Manager tracks live windows by label.
type Manager struct {
	factory Factory
	logger  *zap.Logger

	mu       sync.Mutex
	windows  map[string]*entry
	creating map[string]chan struct{}
	onClosed []func(label string)
}

// NewManager creates a manager that builds windows with factory.
func NewManager(factory Factory, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		factory:  factory,
		logger:   logger.Named("window"),
		windows:  make(map[string]*entry),
		creating: make(map[string]chan struct{}),
	}
}

// OnClosed registers fn to run after a window is destroyed and removed from
// the registry. fn runs on its own goroutine.
func (m *Manager) OnClosed(fn func(label string)) {
	m.mu.Lock()
	m.onClosed = append(m.onClosed, fn)
	m.mu.Unlock()
}

// Get returns the live window with label.
func (m *Manager) Get(label string) (Window, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.liveLocked(label)
	if !ok {
		return nil, false
	}
	return e.win, true
}

// liveLocked drops an entry whose window is already destroyed but not yet
// reaped by watch, so callers never see a dead window.
func (m *Manager) liveLocked(label string) (*entry, bool) {
	e, ok := m.windows[label]
	if !ok {
		return nil, false
	}
	select {
	case <-e.win.Done():
		delete(m.windows, label)
		return nil, false
	default:
		return e, true
	}
}

// Visibility reports the state of the window with label. A label with no
// live window is Hidden.
func (m *Manager) Visibility(label string) models.Visibility {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.liveLocked(label); ok {
		return e.visibility
	}
	if _, ok := m.creating[label]; ok {
		return models.VisibilityCreated
	}
	return models.VisibilityHidden
}

// Create returns the live window with label, building, titling, showing and
// focusing a new one if none exists. Concurrent calls for one label build a
// single window.
func (m *Manager) Create(ctx context.Context, label, title string) (Window, error) {
	for {
		m.mu.Lock()
		if e, ok := m.liveLocked(label); ok {
			m.mu.Unlock()
			return e.win, nil
		}
		wait, busy := m.creating[label]
		if !busy {
			m.creating[label] = make(chan struct{})
			m.mu.Unlock()
			break
		}
		m.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	win, err := m.build(ctx, label, title)

	m.mu.Lock()
	done := m.creating[label]
	delete(m.creating, label)
	if err == nil {
		m.windows[label] = &entry{win: win, visibility: models.VisibilityVisible}
	}
	m.mu.Unlock()
	close(done)

	if err != nil {
		return nil, err
	}
	go m.watch(win)
	m.logger.Info("window created", zap.String("label", label), zap.String("id", win.ID()))
	return win, nil
}

func (m *Manager) build(ctx context.Context, label, title string) (Window, error) {
	win, err := m.factory.NewWindow(ctx, Spec{ID: uuid.NewString(), Label: label, Title: title})
	if err != nil {
		return nil, fmt.Errorf("build window %q: %w", label, err)
	}
	steps := []struct {
		name string
		fn   func() error
	}{
		{"set title", func() error { return win.SetTitle(title) }},
		{"show", win.Show},
		{"focus", win.Focus},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			_ = win.Close()
			return nil, fmt.Errorf("%s window %q: %w", step.name, label, err)
		}
	}
	return win, nil
}

func (m *Manager) watch(win Window) {
	<-win.Done()

	m.mu.Lock()
	if e, ok := m.windows[win.Label()]; ok && e.win == win {
		delete(m.windows, win.Label())
	}
	callbacks := append([]func(string){}, m.onClosed...)
	m.mu.Unlock()

	m.logger.Info("window destroyed", zap.String("label", win.Label()), zap.String("id", win.ID()))
	for _, fn := range callbacks {
		fn(win.Label())
	}
}
