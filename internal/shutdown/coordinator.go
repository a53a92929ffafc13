// Package shutdown negotiates window teardown with the presentation layer.
//
// Closing a window is a two-step handshake: the host emits exit-requested to
// the window and destroys it only after the window answers frontend-done.
// This gives the window a chance to flush whatever it holds in memory.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/bus"
	"github.com/trgui-ng/trgui/internal/models"
	"github.com/trgui-ng/trgui/internal/window"
)

// ErrWindowGone is returned when the window was destroyed before it answered.
var ErrWindowGone = errors.New("window destroyed before acknowledging exit")

type attempt struct {
	id    string
	state models.HandshakeState
	done  chan struct{}
	err   error
}

// Coordinator runs exit handshakes. At most one handshake per window label is
// in flight; concurrent Close calls for the same label share it.
type Coordinator struct {
	bus        *bus.Bus
	ackTimeout time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	inflight map[string]*attempt
}

// New creates a coordinator. A zero ackTimeout waits for the acknowledgement
// indefinitely; a positive one force-closes the window when it expires.
func New(b *bus.Bus, ackTimeout time.Duration, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		bus:        b,
		ackTimeout: ackTimeout,
		logger:     logger.Named("shutdown"),
		inflight:   make(map[string]*attempt),
	}
}

// State reports the handshake state for label.
func (c *Coordinator) State(label string) models.HandshakeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.inflight[label]; ok {
		return a.state
	}
	return models.HandshakeIdle
}

// Close asks w to flush, waits for its acknowledgement and then destroys it.
//
// If w is destroyed by someone else first, Close returns ErrWindowGone. If ctx
// ends first, Close returns ctx.Err() and leaves the window alone.
func (c *Coordinator) Close(ctx context.Context, w window.Window) error {
	label := w.Label()

	c.mu.Lock()
	if a, ok := c.inflight[label]; ok {
		c.mu.Unlock()
		c.logger.Debug("joining exit handshake", zap.String("label", label), zap.String("attempt", a.id))
		select {
		case <-a.done:
			return a.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a := &attempt{id: uuid.NewString(), state: models.HandshakeRequested, done: make(chan struct{})}
	c.inflight[label] = a
	c.mu.Unlock()

	err := c.handshake(ctx, w, a)

	c.mu.Lock()
	delete(c.inflight, label)
	c.mu.Unlock()
	a.err = err
	close(a.done)
	return err
}

func (c *Coordinator) handshake(ctx context.Context, w window.Window, a *attempt) error {
	log := c.logger.With(zap.String("label", w.Label()), zap.String("window", w.ID()), zap.String("attempt", a.id))

	// The receiver must exist before the request goes out. Acks carrying
	// another attempt's id are stale and ignored.
	ack, cancel := c.bus.OnceWhere(bus.TopicFrontendDone, w.Label(), func(ev bus.Event) bool {
		id, ok := ev.Payload.(string)
		return ok && id == a.id
	})
	defer cancel()

	log.Debug("exit requested")
	c.bus.EmitTo(w.Label(), bus.TopicExitRequested, a.id)

	var expired <-chan time.Time
	if c.ackTimeout > 0 {
		timer := time.NewTimer(c.ackTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-ack:
		c.setState(w.Label(), models.HandshakeAcknowledged)
		log.Debug("exit acknowledged")
	case <-expired:
		log.Warn("window did not acknowledge exit, closing anyway", zap.Duration("timeout", c.ackTimeout))
	case <-w.Done():
		log.Debug("window destroyed during exit handshake")
		return ErrWindowGone
	case <-ctx.Done():
		log.Debug("exit handshake abandoned", zap.Error(ctx.Err()))
		return ctx.Err()
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("destroy window %q: %w", w.Label(), err)
	}
	log.Info("window closed")
	return nil
}

func (c *Coordinator) setState(label string, state models.HandshakeState) {
	c.mu.Lock()
	if a, ok := c.inflight[label]; ok {
		a.state = state
	}
	c.mu.Unlock()
}
