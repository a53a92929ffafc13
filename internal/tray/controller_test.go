package tray

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/trgui-ng/trgui/internal/bus"
	"github.com/trgui-ng/trgui/internal/models"
	"github.com/trgui-ng/trgui/internal/shutdown"
	"github.com/trgui-ng/trgui/internal/window"
	"github.com/trgui-ng/trgui/internal/window/windowtest"
)

type fixture struct {
	ctrl    *Controller
	windows *window.Manager
	factory *windowtest.Factory
	menu    *MemoryMenu
}

func newFixture(t *testing.T, autoAck bool) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	b := bus.New(logger)
	f := &windowtest.Factory{Options: windowtest.Options{Bus: b, AutoAck: autoAck}}
	m := window.NewManager(f, logger)
	ctrl := NewController(m, shutdown.New(b, 0, logger), "Transmission Remote GUI", logger)
	menu := &MemoryMenu{}
	ctrl.SetMenu(menu)
	return &fixture{ctrl: ctrl, windows: m, factory: f, menu: menu}
}

func (fx *fixture) assertLabelMatchesWindow(t *testing.T) {
	t.Helper()
	_, exists := fx.windows.Get(window.MainLabel)
	want := models.LabelShow
	if exists {
		want = models.LabelHide
	}
	if got := fx.ctrl.Label(); got != want {
		t.Fatalf("label = %q with window exists=%v", got, exists)
	}
	if fx.menu.Title() != fx.ctrl.Label() {
		t.Fatalf("menu title %q out of sync with label %q", fx.menu.Title(), fx.ctrl.Label())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestShowSetsHideLabel(t *testing.T) {
	fx := newFixture(t, true)
	if fx.ctrl.Label() != models.LabelShow {
		t.Fatalf("initial label = %q", fx.ctrl.Label())
	}

	if _, err := fx.ctrl.Show(context.Background()); err != nil {
		t.Fatalf("Show: %v", err)
	}
	fx.assertLabelMatchesWindow(t)
	if fx.ctrl.Label() != models.LabelHide {
		t.Fatalf("label after show = %q", fx.ctrl.Label())
	}
	if fx.factory.Last().Title() != "Transmission Remote GUI" {
		t.Fatalf("title = %q", fx.factory.Last().Title())
	}
}

func TestToggleHidesThenRecreates(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()

	if _, err := fx.ctrl.Show(ctx); err != nil {
		t.Fatal(err)
	}
	first := fx.factory.Last()

	if err := fx.ctrl.Toggle(ctx); err != nil {
		t.Fatalf("Toggle (hide): %v", err)
	}
	if !first.Closed() {
		t.Fatal("window not destroyed by hide")
	}
	if got := first.Sequence(); len(got) != 3 || got[2] != "close" {
		t.Fatalf("hide skipped the handshake: %v", got)
	}
	fx.assertLabelMatchesWindow(t)

	if err := fx.ctrl.Toggle(ctx); err != nil {
		t.Fatalf("Toggle (show): %v", err)
	}
	fx.assertLabelMatchesWindow(t)
	if fx.factory.Count() != 2 {
		t.Fatalf("built %d windows, want 2", fx.factory.Count())
	}
	second := fx.factory.Last()
	if second.ID() == first.ID() || second.Title() != "Transmission Remote GUI" || second.FocusCount() != 1 {
		t.Fatal("recreated window not fresh, titled and focused")
	}
}

func TestRepeatedTogglesKeepLabelInSync(t *testing.T) {
	fx := newFixture(t, true)
	for i := 0; i < 10; i++ {
		if err := fx.ctrl.Toggle(context.Background()); err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		fx.assertLabelMatchesWindow(t)
	}
	if fx.factory.Count() != 5 {
		t.Fatalf("built %d windows, want 5", fx.factory.Count())
	}
}

func TestExternalDestroyFlipsLabel(t *testing.T) {
	fx := newFixture(t, true)
	if _, err := fx.ctrl.Show(context.Background()); err != nil {
		t.Fatal(err)
	}
	fx.factory.Last().Destroy()

	waitFor(t, func() bool { return fx.menu.Title() == models.LabelShow })
	fx.assertLabelMatchesWindow(t)
}

func TestToggleIgnoredWhileHiding(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()
	if _, err := fx.ctrl.Show(ctx); err != nil {
		t.Fatal(err)
	}
	w := fx.factory.Last()

	done := make(chan error, 1)
	go func() { done <- fx.ctrl.Toggle(ctx) }()
	waitFor(t, func() bool { return len(w.Events(bus.TopicExitRequested)) == 1 })

	for i := 0; i < 3; i++ {
		if err := fx.ctrl.Toggle(ctx); err != nil {
			t.Fatalf("toggle during hide: %v", err)
		}
	}
	if n := len(w.Events(bus.TopicExitRequested)); n != 1 {
		t.Fatalf("exit-requested emitted %d times, want 1", n)
	}
	if fx.factory.Count() != 1 {
		t.Fatal("toggle during hide built a window")
	}
	if _, err := fx.ctrl.Show(ctx); !errors.Is(err, ErrHiding) {
		t.Fatalf("Show during hide = %v, want ErrHiding", err)
	}

	w.Ack()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("hide: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("hide did not finish")
	}
	fx.assertLabelMatchesWindow(t)
	if fx.ctrl.Label() != models.LabelShow {
		t.Fatalf("label = %q after hide", fx.ctrl.Label())
	}
}

func TestDisabledRefusesShowButQuits(t *testing.T) {
	fx := newFixture(t, true)
	fx.ctrl.SetEnabled(false)
	if fx.menu.Enabled() {
		t.Fatal("menu toggle still enabled")
	}

	if err := fx.ctrl.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if _, err := fx.ctrl.Show(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Show = %v, want ErrDisabled", err)
	}
	if fx.factory.Count() != 0 {
		t.Fatal("disabled tray built a window")
	}
	fx.assertLabelMatchesWindow(t)

	quit := make(chan struct{}, 1)
	fx.ctrl.OnQuit(func() { quit <- struct{}{} })
	fx.ctrl.Quit()
	select {
	case <-quit:
	default:
		t.Fatal("Quit did not reach the handler")
	}
}

func TestHideWithoutWindowIsNoop(t *testing.T) {
	fx := newFixture(t, true)
	if err := fx.ctrl.Hide(context.Background()); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	fx.assertLabelMatchesWindow(t)
}

func TestShowFailureKeepsShowLabel(t *testing.T) {
	fx := newFixture(t, true)
	fx.factory.Err = errors.New("no display")
	if _, err := fx.ctrl.Show(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	fx.assertLabelMatchesWindow(t)
}

func TestPrimaryClickTogglesWindow(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()

	if err := fx.ctrl.PrimaryClick(ctx); err != nil {
		t.Fatalf("first click: %v", err)
	}
	fx.assertLabelMatchesWindow(t)
	first := fx.factory.Last()
	if fx.factory.Count() != 1 || fx.ctrl.Label() != models.LabelHide {
		t.Fatalf("after first click windows=%d label=%q", fx.factory.Count(), fx.ctrl.Label())
	}

	if err := fx.ctrl.PrimaryClick(ctx); err != nil {
		t.Fatalf("second click: %v", err)
	}
	fx.assertLabelMatchesWindow(t)
	if !first.Closed() || fx.ctrl.Label() != models.LabelShow {
		t.Fatalf("after second click closed=%v label=%q", first.Closed(), fx.ctrl.Label())
	}

	if err := fx.ctrl.PrimaryClick(ctx); err != nil {
		t.Fatalf("third click: %v", err)
	}
	fx.assertLabelMatchesWindow(t)
	if fx.factory.Count() != 2 || fx.factory.Last() == first {
		t.Fatalf("third click did not build a new window (count %d)", fx.factory.Count())
	}
}
