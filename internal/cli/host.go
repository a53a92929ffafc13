package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/bus"
	"github.com/trgui-ng/trgui/internal/commands"
	"github.com/trgui-ng/trgui/internal/config"
	"github.com/trgui-ng/trgui/internal/instance"
	"github.com/trgui-ng/trgui/internal/lifecycle"
	"github.com/trgui-ng/trgui/internal/models"
	"github.com/trgui-ng/trgui/internal/poller"
	"github.com/trgui-ng/trgui/internal/shutdown"
	"github.com/trgui-ng/trgui/internal/state"
	"github.com/trgui-ng/trgui/internal/transmission"
	"github.com/trgui-ng/trgui/internal/tray"
	"github.com/trgui-ng/trgui/internal/ui"
	"github.com/trgui-ng/trgui/internal/window"
)

// host owns every long-lived component of one process.
type host struct {
	paths    config.Paths
	settings *models.Settings
	logger   *zap.Logger

	channel *instance.Channel
	poller  *poller.Supervisor
	tray    *tray.Controller
	orch    *lifecycle.Orchestrator
}

type hostOptions struct {
	headless bool
	// newFactory replaces the ui window factory.
	newFactory func(*bus.Bus) window.Factory
}

func newHost(paths config.Paths, settings *models.Settings, logger *zap.Logger, opts hostOptions) *host {
	b := bus.New(logger)
	channel := instance.New(instance.Options{
		Name:       settings.Instance.Name,
		LockPath:   paths.LockFile(settings.Instance.Name),
		SocketPath: paths.SocketFile(settings.Instance.Name),
		Logger:     logger,
	})

	store := &state.Store{}
	sup := poller.New(transmission.NewClient(nil), store, logger)
	if err := sup.Configure(settings.Poller); err != nil {
		logger.Warn("poller not configured", zap.Error(err))
	}

	var factory window.Factory
	if opts.newFactory != nil {
		factory = opts.newFactory(b)
	} else {
		factory = ui.NewFactory(ui.Options{
			Bus:       b,
			Store:     store,
			Commands:  commands.New(sup, commands.SystemOpen, logger),
			PrefsPath: paths.PrefsFile(),
			Headless:  opts.headless,
			Logger:    logger,
		})
	}
	windows := window.NewManager(factory, logger)
	coord := shutdown.New(b, settings.Shutdown.AckTimeout, logger)
	ctrl := tray.NewController(windows, coord, settings.UI.Title, logger)

	orch := lifecycle.New(lifecycle.Deps{
		Channel: channel,
		Poller:  sup,
		Tray:    ctrl,
		Windows: windows,
		Closer:  coord,
		Bus:     b,
		Logger:  logger,
	})

	return &host{
		paths:    paths,
		settings: settings,
		logger:   logger,
		channel:  channel,
		poller:   sup,
		tray:     ctrl,
		orch:     orch,
	}
}

// run drives the process until the lifecycle exits. With a tray the systray
// loop occupies the calling goroutine, which must be the main one.
func (h *host) run(ctx context.Context, batch models.ArgumentBatch, withTray bool) error {
	// A secondary only forwards; it never shows a tray icon.
	if !withTray || h.channel.TryBind() == models.RoleSecondary {
		return h.runLifecycle(ctx, batch)
	}

	errCh := make(chan error, 1)
	tray.Run(ctx, h.tray, tray.Options{
		Tooltip: h.settings.UI.Title,
		Logger:  h.logger,
		OnReady: func() {
			go func() {
				errCh <- h.runLifecycle(ctx, batch)
				tray.Quit()
			}()
		},
	})
	// The tray loop may end on its own; the lifecycle still shuts down in order.
	h.orch.RequestExit()
	return <-errCh
}

func (h *host) runLifecycle(ctx context.Context, batch models.ArgumentBatch) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	role, err := h.orch.Start(ctx, batch)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	if role == models.RolePrimary && h.orch.State() == models.LifecycleActive {
		h.publishInstance()
		defer h.unpublishInstance()
		if stop := h.watchSettings(); stop != nil {
			defer stop()
		}
	}

	ctxDone := ctx.Done()
	for {
		select {
		case <-h.orch.Done():
			h.logger.Info("stopped", zap.Stringer("role", role))
			return nil
		case sig := <-sigCh:
			h.logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
			h.orch.RequestExit()
		case <-ctxDone:
			ctxDone = nil
			h.orch.RequestExit()
		}
	}
}

func (h *host) publishInstance() {
	info := models.NewInstanceInfo(h.channel.SocketPath(), os.Getpid())
	if err := config.SaveInstanceInfo(h.paths, info); err != nil {
		h.logger.Warn("failed to write instance info", zap.Error(err))
	}
}

func (h *host) unpublishInstance() {
	if err := config.RemoveInstanceInfo(h.paths); err != nil {
		h.logger.Warn("failed to remove instance info", zap.Error(err))
	}
}

// watchSettings re-applies the poller section whenever settings change on disk.
func (h *host) watchSettings() func() {
	w, err := config.NewWatcher(h.paths, func(s *models.Settings) {
		if err := h.poller.Configure(s.Poller); err != nil {
			h.logger.Warn("rejected poller settings", zap.Error(err))
			return
		}
		h.logger.Info("poller settings reloaded")
	}, h.logger)
	if err != nil {
		h.logger.Warn("settings watcher unavailable", zap.Error(err))
		return nil
	}
	if err := w.Start(); err != nil {
		h.logger.Warn("settings watcher unavailable", zap.Error(err))
		w.Stop()
		return nil
	}
	return w.Stop
}
