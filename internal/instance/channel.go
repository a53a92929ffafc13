package instance

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/trgui-ng/trgui/internal/models"
)

// DefaultSendTimeout bounds a single forward from a secondary.
const DefaultSendTimeout = 5 * time.Second

// Handler receives every argument batch delivered to the primary,
// including the primary's own batch. It reports false when it refuses the
// batch, which the forwarding secondary sees as a failed send.
type Handler func(batch models.ArgumentBatch) bool

// StatusFunc contributes fields to the Status RPC. Values must be
// representable by structpb (strings, numbers, bools, maps, slices).
type StatusFunc func() map[string]any

// Options configures a Channel.
type Options struct {
	// Dir holds the lock file and the socket.
	Dir string
	// Name is the endpoint name, usually the application identifier.
	Name string
	// LockPath and SocketPath override the paths derived from Dir and Name.
	LockPath    string
	SocketPath  string
	SendTimeout time.Duration
	Logger      *zap.Logger
}

// Channel is the single-instance endpoint of one process.
type Channel struct {
	lockPath    string
	socketPath  string
	sendTimeout time.Duration
	logger      *zap.Logger

	// opMu serializes Listen, Start and Stop.
	opMu sync.Mutex

	// mu guards everything below. It is never held while a handler runs or
	// while the gRPC server is shutting down.
	mu        sync.Mutex
	lock      *flock.Flock
	bound     bool
	locked    bool
	role      models.Role
	state     models.ListenerState
	handler   Handler
	status    StatusFunc
	server    *grpc.Server
	serveDone chan struct{}
}

// New creates an unbound channel.
func New(opts Options) *Channel {
	if opts.Name == "" {
		opts.Name = "trgui"
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	lockPath := opts.LockPath
	if lockPath == "" {
		lockPath = filepath.Join(opts.Dir, opts.Name+".lock")
	}
	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = filepath.Join(opts.Dir, opts.Name+".sock")
	}
	return &Channel{
		lockPath:    lockPath,
		socketPath:  socketPath,
		sendTimeout: opts.SendTimeout,
		logger:      opts.Logger.Named("instance"),
		lock:        flock.New(lockPath),
		role:        models.RoleSecondary,
		state:       models.ListenerUnbound,
	}
}

// SocketPath returns the path the primary listens on.
func (c *Channel) SocketPath() string { return c.socketPath }

// Role reports the outcome of TryBind. Before TryBind it is RoleSecondary.
func (c *Channel) Role() models.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// State returns the listener state.
func (c *Channel) State() models.ListenerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetStatusProvider registers extra fields for the Status RPC.
func (c *Channel) SetStatusProvider(fn StatusFunc) {
	c.mu.Lock()
	c.status = fn
	c.mu.Unlock()
}

// TryBind attempts to claim the endpoint without blocking. Exactly one
// process among concurrent callers becomes primary. Any failure to take
// the lock, including unexpected I/O errors, yields RoleSecondary.
// Repeated calls return the first result.
func (c *Channel) TryBind() models.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound {
		return c.role
	}
	c.bound = true
	c.role = models.RoleSecondary

	if err := os.MkdirAll(filepath.Dir(c.lockPath), 0o700); err != nil {
		c.logger.Warn("create instance directory failed", zap.Error(err))
		return c.role
	}
	ok, err := c.lock.TryLock()
	if err != nil {
		c.logger.Warn("instance lock failed", zap.String("lock", c.lockPath), zap.Error(err))
		return c.role
	}
	if !ok {
		c.logger.Debug("instance endpoint already owned", zap.String("lock", c.lockPath))
		return c.role
	}
	c.locked = true
	c.role = models.RolePrimary
	c.logger.Debug("instance endpoint claimed", zap.String("lock", c.lockPath))
	return c.role
}

// Listen starts accepting forwarded batches. On failure the lock is kept,
// the state becomes Stopped and a *ListenError is returned.
func (c *Channel) Listen(ctx context.Context, h Handler) error {
	if h == nil {
		return errors.New("listen: nil handler")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.bound || c.role != models.RolePrimary {
		return ErrNotPrimary
	}
	c.handler = h
	return c.listenLocked()
}

// Start re-arms a stopped listener with the last registered handler.
// It is a no-op when already listening.
func (c *Channel) Start() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.bound || c.role != models.RolePrimary {
		return ErrNotPrimary
	}
	if c.state == models.ListenerListening {
		return nil
	}
	if c.handler == nil {
		return errors.New("start: no handler registered")
	}
	if !c.locked {
		ok, err := c.lock.TryLock()
		if err != nil {
			return fmt.Errorf("reacquire instance lock: %w", err)
		}
		if !ok {
			return ErrBindConflict
		}
		c.locked = true
	}
	return c.listenLocked()
}

// listenLocked must be called with mu held.
func (c *Channel) listenLocked() error {
	if c.state == models.ListenerListening {
		return nil
	}
	// Holding the lock means any socket file left behind is stale.
	if err := os.Remove(c.socketPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.state = models.ListenerStopped
		return &ListenError{Socket: c.socketPath, Err: err}
	}
	lis, err := net.Listen("unix", c.socketPath)
	if err != nil {
		c.state = models.ListenerStopped
		return &ListenError{Socket: c.socketPath, Err: err}
	}

	srv := grpc.NewServer()
	srv.RegisterService(&serviceDesc, &service{ch: c})
	done := make(chan struct{})
	c.server = srv
	c.serveDone = done
	c.state = models.ListenerListening

	go func() {
		defer close(done)
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			c.logger.Error("instance server stopped", zap.Error(err))
		}
	}()

	c.logger.Info("instance listener started", zap.String("socket", c.socketPath))
	return nil
}

// Stop shuts the listener down, removes the socket and releases the lock so
// a future process can become primary. Safe to call repeatedly.
func (c *Channel) Stop() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	srv, done := c.server, c.serveDone
	c.server, c.serveDone = nil, nil
	wasListening := c.state == models.ListenerListening
	if c.state != models.ListenerUnbound || c.locked {
		c.state = models.ListenerStopped
	}
	locked := c.locked
	c.locked = false
	c.mu.Unlock()

	if srv != nil {
		srv.Stop()
		<-done
	}
	if wasListening {
		if err := os.Remove(c.socketPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("remove instance socket failed", zap.Error(err))
		}
	}
	if locked {
		if err := c.lock.Unlock(); err != nil {
			c.logger.Warn("release instance lock failed", zap.Error(err))
		}
	}
	if wasListening || locked {
		c.logger.Info("instance endpoint released")
	}
}

// Send delivers a batch to the primary. A listening primary delivers to its
// own handler; a degraded primary drops the batch; a secondary forwards it
// over the socket. Failures are returned as *SendError and never retried.
func (c *Channel) Send(ctx context.Context, batch models.ArgumentBatch) error {
	c.mu.Lock()
	primary := c.bound && c.role == models.RolePrimary
	c.mu.Unlock()

	if primary {
		if !c.deliver(batch.Clone()) {
			c.logger.Debug("primary did not accept its own batch", zap.Int("args", len(batch)))
		}
		return nil
	}
	return c.forward(ctx, batch)
}

func (c *Channel) forward(ctx context.Context, batch models.ArgumentBatch) error {
	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	conn, err := dial(c.socketPath)
	if err != nil {
		return &SendError{Socket: c.socketPath, Err: err}
	}
	defer conn.Close()

	if err := invokeForward(ctx, conn, batch); err != nil {
		return &SendError{Socket: c.socketPath, Err: err}
	}
	c.logger.Debug("batch forwarded to primary", zap.Int("args", len(batch)))
	return nil
}

// deliver hands a batch to the handler if the listener is up and reports
// whether the handler took it. The handler runs without mu held.
func (c *Channel) deliver(batch models.ArgumentBatch) bool {
	c.mu.Lock()
	h := c.handler
	listening := c.state == models.ListenerListening
	c.mu.Unlock()
	if !listening || h == nil {
		return false
	}
	return h(batch)
}

func (c *Channel) statusFields() map[string]any {
	c.mu.Lock()
	fn := c.status
	fields := map[string]any{
		"pid":    os.Getpid(),
		"role":   c.role.String(),
		"state":  c.state.String(),
		"socket": c.socketPath,
	}
	c.mu.Unlock()
	if fn != nil {
		for k, v := range fn() {
			fields[k] = v
		}
	}
	return fields
}
