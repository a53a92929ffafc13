package tray

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/trgui-ng/trgui/internal/models"
)

func TestHandleClicks(t *testing.T) {
	fx := newFixture(t, true)
	var quits atomic.Int32
	fx.ctrl.OnQuit(func() { quits.Add(1) })

	toggle := make(chan struct{})
	quit := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		handleClicks(ctx, fx.ctrl, toggle, quit, zaptest.NewLogger(t))
	}()

	toggle <- struct{}{}
	waitFor(t, func() bool { return fx.ctrl.Label() == models.LabelHide })
	fx.assertLabelMatchesWindow(t)

	quit <- struct{}{}
	waitFor(t, func() bool { return quits.Load() == 1 })

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("click loop kept running after its context ended")
	}
}
