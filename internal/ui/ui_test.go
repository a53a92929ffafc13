package ui

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap/zaptest"

	"github.com/trgui-ng/trgui/internal/bus"
	"github.com/trgui-ng/trgui/internal/commands"
	"github.com/trgui-ng/trgui/internal/models"
	"github.com/trgui-ng/trgui/internal/state"
	"github.com/trgui-ng/trgui/internal/window"
)

func newTestEnv(t *testing.T) *env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return &env{
		bus:       bus.New(logger),
		store:     &state.Store{},
		cmds:      commands.New(nil, func(context.Context, string) error { return nil }, logger),
		prefsPath: filepath.Join(t.TempDir(), "prefs.toml"),
		logger:    logger,
	}
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func capture(b *bus.Bus, topic bus.Topic, label string) <-chan bus.Event {
	ch := make(chan bus.Event, 4)
	b.Listen(topic, label, func(ev bus.Event) { ch <- ev })
	return ch
}

func expectEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("expected event")
		return bus.Event{}
	}
}

func TestModelExitRequestedFlushesThenAcks(t *testing.T) {
	e := newTestEnv(t)
	acks := capture(e.bus, bus.TopicFrontendDone, window.MainLabel)
	e.store.Update(&models.PollResult{Torrents: []models.Torrent{{ID: 41}, {ID: 42}}}, nil)

	m := newModel(e, window.MainLabel, "Transmission Remote GUI", defaultPrefs())
	updated, _ := m.Update(tickMsg(time.Now()))
	m = updated.(Model)
	updated, _ = m.Update(keyMsg("j"))
	m = updated.(Model)

	updated, _ = m.Update(exitRequestedMsg{Attempt: "attempt-1"})
	m = updated.(Model)

	ev := expectEvent(t, acks)
	if ev.Payload != "attempt-1" {
		t.Fatalf("ack payload = %v", ev.Payload)
	}
	if m.flushed != 1 {
		t.Fatalf("flushed = %d, want 1", m.flushed)
	}
	prefs, err := LoadPrefs(e.prefsPath)
	if err != nil {
		t.Fatal(err)
	}
	if prefs.SelectedID != 42 {
		t.Fatalf("saved SelectedID = %d, want 42", prefs.SelectedID)
	}
}

func TestModelKeysRaiseWindowEvents(t *testing.T) {
	tests := []struct {
		key   string
		topic bus.Topic
	}{
		{"q", bus.TopicCloseRequested},
		{"h", bus.TopicHideRequested},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			e := newTestEnv(t)
			events := capture(e.bus, tt.topic, window.MainLabel)
			m := newModel(e, window.MainLabel, "t", defaultPrefs())
			m.Update(keyMsg(tt.key))
			expectEvent(t, events)
		})
	}
}

func TestModelOpenTorrents(t *testing.T) {
	e := newTestEnv(t)
	good := filepath.Join(t.TempDir(), "good.torrent")
	if err := os.WriteFile(good, []byte("d4:infode"), 0o600); err != nil {
		t.Fatal(err)
	}
	m := newModel(e, window.MainLabel, "t", defaultPrefs())

	updated, _ := m.Update(openTorrentsMsg{Batch: models.ArgumentBatch{good}})
	m = updated.(Model)
	if m.err != nil || m.notice == "" {
		t.Fatalf("err=%v notice=%q", m.err, m.notice)
	}
	if !reflect.DeepEqual(m.prefs.Recent, []string{good}) {
		t.Fatalf("recent = %v", m.prefs.Recent)
	}

	updated, _ = m.Update(openTorrentsMsg{Batch: models.ArgumentBatch{"/missing.torrent"}})
	m = updated.(Model)
	if m.err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestModelRefreshAndSpeedsToggle(t *testing.T) {
	e := newTestEnv(t)
	e.store.Update(&models.PollResult{Torrents: []models.Torrent{
		{ID: 1, Name: "ubuntu.iso", Status: models.TorrentDownloading, PercentDone: 0.5, RateDownload: 2048},
	}}, nil)
	m := newModel(e, window.MainLabel, "t", defaultPrefs())

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m = updated.(Model)
	updated, _ = m.Update(tickMsg(time.Now()))
	m = updated.(Model)
	if n := len(m.table.Rows()); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
	if got := m.table.Rows()[0][3]; got != "50.0%" {
		t.Fatalf("done column = %q", got)
	}
	if len(m.table.Columns()) != 6 {
		t.Fatalf("columns = %d, want 6", len(m.table.Columns()))
	}

	updated, _ = m.Update(keyMsg("s"))
	m = updated.(Model)
	if len(m.table.Columns()) != 4 || len(m.table.Rows()[0]) != 4 {
		t.Fatal("speed columns not removed")
	}
	if m.View() == "" {
		t.Fatal("empty view")
	}
}

func TestWebURL(t *testing.T) {
	tests := []struct {
		rpc  string
		want string
	}{
		{"http://localhost:9091/transmission/rpc", "http://localhost:9091/transmission/web/"},
		{"https://user:pw@nas.lan/transmission/rpc", "https://nas.lan/transmission/web/"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := webURL(tt.rpc); got != tt.want {
			t.Errorf("webURL(%q) = %q, want %q", tt.rpc, got, tt.want)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B/s"},
		{1023, "1023 B/s"},
		{1024, "1.0 KiB/s"},
		{1536 * 1024, "1.5 MiB/s"},
	}
	for _, tt := range tests {
		if got := formatSpeed(tt.in); got != tt.want {
			t.Errorf("formatSpeed(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrefsRoundTripAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	prefs, err := LoadPrefs(path)
	if err != nil {
		t.Fatal(err)
	}
	if !prefs.ShowSpeeds {
		t.Fatal("defaults not applied for missing file")
	}

	prefs.remember([]string{"a", "b"})
	prefs.remember([]string{"a"})
	if !reflect.DeepEqual(prefs.Recent, []string{"a", "b"}) {
		t.Fatalf("recent = %v", prefs.Recent)
	}
	for i := 0; i < 20; i++ {
		prefs.remember([]string{string(rune('c' + i))})
	}
	if len(prefs.Recent) != maxRecentFiles {
		t.Fatalf("recent not capped: %d", len(prefs.Recent))
	}

	prefs.SelectedID = 7
	if err := SavePrefs(path, prefs); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadPrefs(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded, prefs) {
		t.Fatalf("loaded %+v, want %+v", loaded, prefs)
	}
}

func TestHeadlessWindowHandshake(t *testing.T) {
	e := newTestEnv(t)
	f := &Factory{env: e, headless: true}
	w, err := f.NewWindow(context.Background(), window.Spec{ID: "id", Label: window.MainLabel, Title: "t"})
	if err != nil {
		t.Fatal(err)
	}
	hw, ok := w.(*HeadlessWindow)
	if !ok {
		t.Fatalf("factory built %T", w)
	}
	if err := hw.Show(); err != nil {
		t.Fatal(err)
	}

	good := filepath.Join(t.TempDir(), "x.torrent")
	if err := os.WriteFile(good, []byte("d4:infode"), 0o600); err != nil {
		t.Fatal(err)
	}
	e.bus.EmitTo(window.MainLabel, bus.TopicOpenTorrents, models.ArgumentBatch{good, "/nope"})
	if !reflect.DeepEqual(hw.Recent(), []string{good}) {
		t.Fatalf("recent = %v", hw.Recent())
	}

	acks := capture(e.bus, bus.TopicFrontendDone, window.MainLabel)
	e.bus.EmitTo(window.MainLabel, bus.TopicExitRequested, "a1")
	if ev := expectEvent(t, acks); ev.Payload != "a1" {
		t.Fatalf("ack payload = %v", ev.Payload)
	}
	if _, err := os.Stat(e.prefsPath); err != nil {
		t.Fatalf("prefs not flushed: %v", err)
	}

	if err := hw.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-hw.Done():
	default:
		t.Fatal("Done not closed")
	}
	if err := hw.Show(); err == nil {
		t.Fatal("Show after Close should fail")
	}
}
