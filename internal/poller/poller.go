// Package poller runs the background refresh loop against the torrent daemon.
//
// The supervisor owns the loop goroutine and the active configuration. A new
// configuration is validated before it replaces the old one, and each cycle
// copies the configuration exactly once, so a cycle never observes a
// half-applied update.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/models"
	"github.com/trgui-ng/trgui/internal/state"
)

// maxBackoff caps the delay between polls after repeated failures.
const maxBackoff = 30 * time.Second

// ErrInvalidConfig is returned when Configure rejects a configuration.
var ErrInvalidConfig = errors.New("invalid poller configuration")

// Fetcher performs one poll against the daemon.
type Fetcher interface {
	Poll(ctx context.Context, cfg models.PollerConfig) (*models.PollResult, error)
}

// Supervisor controls the polling loop.
type Supervisor struct {
	fetcher Fetcher
	store   *state.Store
	logger  *zap.Logger

	cfgMu      sync.Mutex
	cfg        models.PollerConfig
	configured bool

	wake chan struct{}

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped, unconfigured supervisor. A nil store gets a fresh one.
func New(fetcher Fetcher, store *state.Store, logger *zap.Logger) *Supervisor {
	if store == nil {
		store = &state.Store{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		fetcher: fetcher,
		store:   store,
		logger:  logger.Named("poller"),
		wake:    make(chan struct{}, 1),
	}
}

// Configure validates cfg and makes it the active configuration. On error the
// previous configuration stays in effect. A running loop picks the new
// configuration up on its next cycle, which starts immediately.
func (s *Supervisor) Configure(cfg models.PollerConfig) error {
	if err := cfg.Validate(); err != nil {
		s.logger.Warn("rejected poller configuration", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s.cfgMu.Lock()
	s.cfg = cfg
	s.configured = true
	s.cfgMu.Unlock()

	s.store.SetConfig(cfg)
	s.logger.Info("poller configured",
		zap.String("url", cfg.URL),
		zap.Duration("interval", cfg.Interval))

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Config returns the active configuration and whether one has been applied.
func (s *Supervisor) Config() (models.PollerConfig, bool) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.cfg, s.configured
}

// Start launches the loop. Calling Start on a running supervisor does nothing.
func (s *Supervisor) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.run(runCtx, done)
	s.logger.Debug("poller started")
}

// Stop halts the loop and waits for it to exit. Safe to call repeatedly.
func (s *Supervisor) Stop() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Debug("poller stopped")
}

// Running reports whether the loop is active.
func (s *Supervisor) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.cancel != nil
}

// Snapshot returns the latest poll data.
func (s *Supervisor) Snapshot() state.Snapshot {
	return s.store.Snapshot()
}

func (s *Supervisor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	failures := 0
	for {
		cfg, ok := s.Config()
		wait := time.Duration(-1)
		if ok {
			failures = s.cycle(ctx, cfg, failures)
			if ctx.Err() != nil {
				return
			}
			wait = calculateBackoff(failures, cfg.Interval)
		}
		if !s.sleep(ctx, wait) {
			return
		}
	}
}

func (s *Supervisor) cycle(ctx context.Context, cfg models.PollerConfig, failures int) int {
	result, err := s.fetcher.Poll(ctx, cfg)
	if ctx.Err() != nil {
		return failures
	}
	if err != nil {
		failures++
		s.store.Update(nil, err)
		s.logger.Warn("poll failed", zap.Int("failures", failures), zap.Error(err))
		return failures
	}
	if failures > 0 {
		s.logger.Info("poll recovered", zap.Int("after_failures", failures))
	}
	s.store.Update(result, nil)
	return 0
}

// sleep waits for d, a wake signal or cancellation. A negative d waits for
// a wake signal only. It reports false when ctx is done.
func (s *Supervisor) sleep(ctx context.Context, d time.Duration) bool {
	var timeout <-chan time.Time
	if d >= 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.wake:
		return true
	case <-timeout:
		return true
	}
}

// calculateBackoff returns the delay before the next poll: the base interval
// doubled per consecutive failure, capped at maxBackoff but never below base.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	if d < base {
		d = base
	}
	return d
}
