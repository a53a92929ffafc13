package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/models"
)

const watchDebounce = 100 * time.Millisecond

// Watcher reloads settings when settings.yaml or .env change on disk.
type Watcher struct {
	paths     Paths
	fsWatcher *fsnotify.Watcher
	onChange  func(*models.Settings)
	logger    *zap.Logger
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	debounceMu sync.Mutex
	debounce   *time.Timer
}

// NewWatcher creates a settings watcher. onChange receives every successfully
// reloaded settings value; parse failures are logged and skipped.
func NewWatcher(p Paths, onChange func(*models.Settings), logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		paths:     p,
		fsWatcher: fsWatcher,
		onChange:  onChange,
		logger:    logger.Named("config-watcher"),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the config directory.
func (w *Watcher) Start() error {
	if err := w.paths.EnsureDir(); err != nil {
		return err
	}
	// Watch the directory rather than the file: atomic saves replace the inode.
	if err := w.fsWatcher.Add(w.paths.Root); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop stops the watcher and waits for pending callbacks to be abandoned.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsWatcher.Close()
		w.debounceMu.Lock()
		if w.debounce != nil {
			w.debounce.Stop()
		}
		w.debounceMu.Unlock()
		w.wg.Wait()
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Rename matters: atomic writes (write tmp → rename to target) show up as
	// Create/Rename on the target.
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	switch filepath.Base(event.Name) {
	case SettingsFileName, EnvFileName:
	default:
		return
	}
	w.logger.Debug("settings file changed", zap.String("path", event.Name), zap.Stringer("op", event.Op))
	w.debounceReload()
}

func (w *Watcher) debounceReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(watchDebounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}
	settings, err := LoadSettings(w.paths)
	if err != nil {
		w.logger.Warn("reload settings failed, keeping previous values", zap.Error(err))
		return
	}
	if w.onChange != nil {
		w.onChange(settings)
	}
}
