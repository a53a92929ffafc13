// Package lifecycle drives the host from launch to exit.
//
// A launch either becomes the primary instance and runs until asked to exit,
// or is a secondary that forwards its arguments and exits at once. A primary
// whose listener cannot start runs degraded: it keeps the instance lock but
// never shows a window, so quitting from the tray is the only way out.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/bus"
	"github.com/trgui-ng/trgui/internal/instance"
	"github.com/trgui-ng/trgui/internal/models"
	"github.com/trgui-ng/trgui/internal/shutdown"
	"github.com/trgui-ng/trgui/internal/state"
	"github.com/trgui-ng/trgui/internal/tray"
	"github.com/trgui-ng/trgui/internal/window"
)

// showRetryDelay spaces attempts to show a window while a hide finishes.
const showRetryDelay = 100 * time.Millisecond

// Channel is the single-instance endpoint.
type Channel interface {
	TryBind() models.Role
	Listen(ctx context.Context, h instance.Handler) error
	Send(ctx context.Context, batch models.ArgumentBatch) error
	Start() error
	Stop()
	SetStatusProvider(fn instance.StatusFunc)
}

// Poller is the background poller.
type Poller interface {
	Start(ctx context.Context)
	Stop()
	Snapshot() state.Snapshot
}

// Tray shows and hides the main window.
type Tray interface {
	Show(ctx context.Context) (window.Window, error)
	Hide(ctx context.Context) error
	SetEnabled(enabled bool)
	OnQuit(fn func())
}

// Windows looks up live windows.
type Windows interface {
	Get(label string) (window.Window, bool)
	Visibility(label string) models.Visibility
}

// Closer runs the exit handshake for a window.
type Closer interface {
	Close(ctx context.Context, w window.Window) error
}

// Deps are the components the orchestrator coordinates.
type Deps struct {
	Channel Channel
	Poller  Poller
	Tray    Tray
	Windows Windows
	Closer  Closer
	Bus     *bus.Bus
	Logger  *zap.Logger
}

// Orchestrator owns the lifecycle state machine.
type Orchestrator struct {
	channel Channel
	poller  Poller
	tray    Tray
	windows Windows
	closer  Closer
	bus     *bus.Bus
	logger  *zap.Logger

	mu          sync.Mutex
	state       models.LifecycleState
	role        models.Role
	exitPending bool
	queue       []models.ArgumentBatch
	unlisten    []func()

	wake          chan struct{}
	done          chan struct{}
	ctx           context.Context
	cancel        context.CancelFunc
	deliverCancel context.CancelFunc
	deliverDone   chan struct{}
}

// New creates an orchestrator in the Starting state.
func New(d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		channel: d.Channel,
		poller:  d.Poller,
		tray:    d.Tray,
		windows: d.Windows,
		closer:  d.Closer,
		bus:     d.Bus,
		logger:  logger.Named("lifecycle"),
		state:   models.LifecycleStarting,
		role:    models.RoleSecondary,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	d.Tray.OnQuit(o.RequestExit)
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() models.LifecycleState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Role returns the role decided by Start.
func (o *Orchestrator) Role() models.Role {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.role
}

// Done is closed once the orchestrator reaches Exited.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// Start claims the instance endpoint and brings the host up. A secondary
// forwards batch to the primary and ends in Exited before Start returns.
// Forwarding and listening failures are logged, never returned.
func (o *Orchestrator) Start(ctx context.Context, batch models.ArgumentBatch) (models.Role, error) {
	o.mu.Lock()
	if o.state != models.LifecycleStarting || o.ctx != nil {
		o.mu.Unlock()
		return o.Role(), errors.New("lifecycle already started")
	}
	o.ctx, o.cancel = context.WithCancel(context.WithoutCancel(ctx))
	o.mu.Unlock()

	role := o.channel.TryBind()
	o.mu.Lock()
	o.role = role
	o.mu.Unlock()

	if role == models.RoleSecondary {
		o.runSecondary(ctx, batch)
		return role, nil
	}

	if err := o.channel.Listen(ctx, o.enqueue); err != nil {
		o.logger.Error("instance listener failed, running degraded", zap.Error(err))
		o.tray.SetEnabled(false)
		o.enter(models.LifecycleDegraded)
		return role, nil
	}

	o.channel.SetStatusProvider(o.statusFields)
	o.poller.Start(o.ctx)
	o.subscribe()
	deliverCtx, deliverCancel := context.WithCancel(o.ctx)
	deliverDone := make(chan struct{})
	o.mu.Lock()
	o.deliverCancel, o.deliverDone = deliverCancel, deliverDone
	o.mu.Unlock()
	go o.deliverLoop(deliverCtx, deliverDone)

	if !o.enter(models.LifecycleActive) {
		return role, nil
	}
	o.signal()
	if _, err := o.tray.Show(ctx); err != nil {
		o.logger.Warn("show main window failed", zap.Error(err))
	}
	// The primary's own arguments take the same path as forwarded ones.
	if err := o.channel.Send(ctx, batch); err != nil {
		o.logger.Warn("deliver own arguments failed", zap.Error(err))
	}
	return role, nil
}

func (o *Orchestrator) runSecondary(ctx context.Context, batch models.ArgumentBatch) {
	if err := o.channel.Send(ctx, batch); err != nil {
		o.logger.Warn("forward to primary failed", zap.Error(err))
	} else {
		o.logger.Info("arguments forwarded to primary", zap.Int("args", len(batch)))
	}
	o.mu.Lock()
	o.state = models.LifecycleExited
	o.mu.Unlock()
	o.cancel()
	close(o.done)
}

func (o *Orchestrator) subscribe() {
	unlisten := []func(){
		o.bus.ListenGlobal(bus.TopicListenerStart, func(bus.Event) {
			if err := o.channel.Start(); err != nil {
				o.logger.Warn("restart instance listener failed", zap.Error(err))
			}
		}),
		o.bus.Listen(bus.TopicCloseRequested, window.MainLabel, func(bus.Event) {
			o.RequestExit()
		}),
		o.bus.Listen(bus.TopicHideRequested, window.MainLabel, func(bus.Event) {
			go func() {
				if err := o.tray.Hide(o.ctx); err != nil {
					o.logger.Warn("hide main window failed", zap.Error(err))
				}
			}()
		}),
	}
	o.mu.Lock()
	o.unlisten = append(o.unlisten, unlisten...)
	o.mu.Unlock()
}

// enter moves from Starting to a running state. It reports false when an
// exit was requested meanwhile, in which case shutdown has begun.
func (o *Orchestrator) enter(s models.LifecycleState) bool {
	o.mu.Lock()
	o.state = s
	pending := o.exitPending
	o.mu.Unlock()
	o.logger.Info("lifecycle state changed", zap.String("state", string(s)))
	if pending {
		o.RequestExit()
		return false
	}
	return true
}

// RequestExit starts an orderly shutdown and returns at once. Repeated calls
// are ignored. Wait on Done for completion.
func (o *Orchestrator) RequestExit() {
	o.mu.Lock()
	switch o.state {
	case models.LifecycleStarting:
		o.exitPending = true
		o.mu.Unlock()
		return
	case models.LifecycleShuttingDown, models.LifecycleExited:
		o.mu.Unlock()
		return
	}
	o.state = models.LifecycleShuttingDown
	o.mu.Unlock()

	o.logger.Info("lifecycle state changed", zap.String("state", string(models.LifecycleShuttingDown)))
	go o.shutdown()
}

func (o *Orchestrator) shutdown() {
	// Stop deliveries first so none can build a window behind the handshake.
	o.mu.Lock()
	deliverCancel, deliverDone := o.deliverCancel, o.deliverDone
	o.mu.Unlock()
	if deliverCancel != nil {
		deliverCancel()
		<-deliverDone
	}

	if w, ok := o.windows.Get(window.MainLabel); ok {
		err := o.closer.Close(context.Background(), w)
		if err != nil && !errors.Is(err, shutdown.ErrWindowGone) {
			o.logger.Warn("close main window failed", zap.Error(err))
		}
	}
	o.channel.Stop()
	o.poller.Stop()

	o.mu.Lock()
	unlisten := o.unlisten
	o.unlisten = nil
	o.queue = nil
	o.state = models.LifecycleExited
	o.mu.Unlock()

	for _, fn := range unlisten {
		fn()
	}
	o.cancel()
	o.logger.Info("lifecycle state changed", zap.String("state", string(models.LifecycleExited)))
	close(o.done)
}

// enqueue is the instance handler. It must not block, so batches are queued
// and delivered in order by deliverLoop.
func (o *Orchestrator) enqueue(batch models.ArgumentBatch) bool {
	o.mu.Lock()
	if o.state == models.LifecycleShuttingDown || o.state == models.LifecycleExited {
		o.mu.Unlock()
		o.logger.Debug("refusing batch during shutdown", zap.Int("args", len(batch)))
		return false
	}
	o.queue = append(o.queue, batch)
	o.mu.Unlock()
	o.signal()
	return true
}

func (o *Orchestrator) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) dequeue() (models.ArgumentBatch, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 || o.state != models.LifecycleActive {
		return nil, false
	}
	batch := o.queue[0]
	o.queue = o.queue[1:]
	return batch, true
}

func (o *Orchestrator) deliverLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.wake:
		}
		for ctx.Err() == nil {
			batch, ok := o.dequeue()
			if !ok {
				break
			}
			o.deliver(ctx, batch)
		}
	}
}

// deliver hands a batch to the main window, showing one first if needed.
func (o *Orchestrator) deliver(ctx context.Context, batch models.ArgumentBatch) {
	w, ok := o.windows.Get(window.MainLabel)
	for !ok {
		var err error
		w, err = o.tray.Show(ctx)
		if err == nil {
			break
		}
		if !errors.Is(err, tray.ErrHiding) {
			o.logger.Warn("no window for forwarded arguments", zap.Int("args", len(batch)), zap.Error(err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(showRetryDelay):
		}
		w, ok = o.windows.Get(window.MainLabel)
	}

	if len(batch) > 0 {
		o.bus.EmitTo(window.MainLabel, bus.TopicOpenTorrents, batch.Clone())
	}
	if err := w.Focus(); err != nil {
		o.logger.Debug("focus main window failed", zap.Error(err))
	}
}

func (o *Orchestrator) statusFields() map[string]any {
	fields := o.poller.Snapshot().Fields()
	fields["lifecycle"] = string(o.State())
	fields["window"] = string(o.windows.Visibility(window.MainLabel))
	return fields
}
