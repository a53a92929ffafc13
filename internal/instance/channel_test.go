package instance

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/trgui-ng/trgui/internal/models"
)

func newTestChannel(t *testing.T, dir string) *Channel {
	t.Helper()
	ch := New(Options{Dir: dir, Name: "trgui", SendTimeout: 2 * time.Second, Logger: zaptest.NewLogger(t)})
	t.Cleanup(ch.Stop)
	return ch
}

func listenOrSkip(t *testing.T, ch *Channel, h Handler) {
	t.Helper()
	if err := ch.Listen(context.Background(), h); err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping socket test: %v", err)
		}
		t.Fatalf("Listen: %v", err)
	}
}

type recorder struct {
	mu      sync.Mutex
	batches []models.ArgumentBatch
	ch      chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 64)}
}

func (r *recorder) handle(b models.ArgumentBatch) bool {
	r.mu.Lock()
	r.batches = append(r.batches, b)
	r.mu.Unlock()
	r.ch <- struct{}{}
	return true
}

func (r *recorder) wait(t *testing.T, n int) []models.ArgumentBatch {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.ch:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for batch %d of %d", i+1, n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ArgumentBatch(nil), r.batches...)
}

func TestTryBindElectsOnePrimary(t *testing.T) {
	dir := t.TempDir()
	const n = 6

	channels := make([]*Channel, n)
	for i := range channels {
		channels[i] = newTestChannel(t, dir)
	}

	roles := make([]models.Role, n)
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch *Channel) {
			defer wg.Done()
			roles[i] = ch.TryBind()
		}(i, ch)
	}
	wg.Wait()

	primaries := 0
	var primary *Channel
	for i, role := range roles {
		if role == models.RolePrimary {
			primaries++
			primary = channels[i]
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary, got %d (%v)", primaries, roles)
	}

	rec := newRecorder()
	listenOrSkip(t, primary, rec.handle)

	for i, ch := range channels {
		if ch == primary {
			continue
		}
		if err := ch.Send(context.Background(), models.ArgumentBatch{"file" + string(rune('a'+i)) + ".torrent"}); err != nil {
			t.Fatalf("Send from secondary %d: %v", i, err)
		}
	}
	got := rec.wait(t, n-1)
	if len(got) != n-1 {
		t.Fatalf("expected %d batches, got %d", n-1, len(got))
	}
}

func TestTryBindIsStable(t *testing.T) {
	ch := newTestChannel(t, t.TempDir())
	if ch.Role() != models.RoleSecondary {
		t.Fatalf("unbound channel role = %v, want secondary", ch.Role())
	}
	first := ch.TryBind()
	if second := ch.TryBind(); second != first {
		t.Fatalf("TryBind changed role from %v to %v", first, second)
	}
}

func TestSecondaryForwardsBatchInOrder(t *testing.T) {
	dir := t.TempDir()
	primary := newTestChannel(t, dir)
	if primary.TryBind() != models.RolePrimary {
		t.Fatal("first channel should be primary")
	}
	rec := newRecorder()
	listenOrSkip(t, primary, rec.handle)

	secondary := newTestChannel(t, dir)
	if secondary.TryBind() != models.RoleSecondary {
		t.Fatal("second channel should be secondary")
	}

	tests := []struct {
		name  string
		batch models.ArgumentBatch
	}{
		{"single", models.ArgumentBatch{"movie.torrent"}},
		{"ordered", models.ArgumentBatch{"b.torrent", "a.torrent", "c.torrent"}},
		{"empty", models.ArgumentBatch{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := secondary.Send(context.Background(), tt.batch); err != nil {
				t.Fatalf("Send: %v", err)
			}
			got := rec.wait(t, 1)
			last := got[len(got)-1]
			if len(last) != len(tt.batch) || (len(last) > 0 && !reflect.DeepEqual(last, tt.batch)) {
				t.Fatalf("delivered %v, want %v", last, tt.batch)
			}
		})
	}
}

func TestPrimaryDeliversOwnBatchLocally(t *testing.T) {
	ch := newTestChannel(t, t.TempDir())
	ch.TryBind()
	rec := newRecorder()
	listenOrSkip(t, ch, rec.handle)

	if err := ch.Send(context.Background(), models.ArgumentBatch{"own.torrent"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := rec.wait(t, 1)
	if !reflect.DeepEqual(got[0], models.ArgumentBatch{"own.torrent"}) {
		t.Fatalf("got %v", got[0])
	}
}

func TestSendWithoutPrimaryFails(t *testing.T) {
	dir := t.TempDir()
	holder := newTestChannel(t, dir)
	holder.TryBind()

	// The lock is held but nothing listens yet.
	secondary := newTestChannel(t, dir)
	if secondary.TryBind() != models.RoleSecondary {
		t.Fatal("expected secondary")
	}
	err := secondary.Send(context.Background(), models.ArgumentBatch{"x.torrent"})
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected *SendError, got %v", err)
	}
}

func TestDegradedPrimaryNeverListens(t *testing.T) {
	dir := t.TempDir()
	ch := newTestChannel(t, dir)
	if ch.TryBind() != models.RolePrimary {
		t.Fatal("expected primary")
	}

	// A non-empty directory where the socket should be cannot be removed.
	if err := os.MkdirAll(filepath.Join(ch.SocketPath(), "blocker"), 0o700); err != nil {
		t.Fatal(err)
	}

	err := ch.Listen(context.Background(), func(models.ArgumentBatch) bool { return true })
	var listenErr *ListenError
	if !errors.As(err, &listenErr) {
		t.Fatalf("expected *ListenError, got %v", err)
	}
	if ch.State() != models.ListenerStopped {
		t.Fatalf("state = %v, want stopped", ch.State())
	}
	if ch.Role() != models.RolePrimary {
		t.Fatal("degraded channel must stay primary")
	}

	// The lock is retained, so a later launch is still a secondary.
	other := newTestChannel(t, dir)
	if other.TryBind() != models.RoleSecondary {
		t.Fatal("degraded primary must keep the lock")
	}

	// Own batch is dropped without error.
	if err := ch.Send(context.Background(), models.ArgumentBatch{"a.torrent"}); err != nil {
		t.Fatalf("Send on degraded primary: %v", err)
	}
}

func TestStopReleasesEndpoint(t *testing.T) {
	dir := t.TempDir()
	first := newTestChannel(t, dir)
	first.TryBind()
	listenOrSkip(t, first, func(models.ArgumentBatch) bool { return true })

	first.Stop()
	first.Stop()
	if first.State() != models.ListenerStopped {
		t.Fatalf("state = %v, want stopped", first.State())
	}
	if _, err := os.Stat(first.SocketPath()); !os.IsNotExist(err) {
		t.Fatalf("socket still present: %v", err)
	}

	next := newTestChannel(t, dir)
	if next.TryBind() != models.RolePrimary {
		t.Fatal("stopped endpoint should be claimable")
	}
}

func TestStartRearmsListener(t *testing.T) {
	dir := t.TempDir()
	ch := newTestChannel(t, dir)
	ch.TryBind()
	rec := newRecorder()
	listenOrSkip(t, ch, rec.handle)

	if err := ch.Start(); err != nil {
		t.Fatalf("Start while listening: %v", err)
	}

	ch.Stop()
	if err := ch.Start(); err != nil {
		t.Fatalf("Start after Stop: %v", err)
	}
	if ch.State() != models.ListenerListening {
		t.Fatalf("state = %v, want listening", ch.State())
	}

	secondary := newTestChannel(t, dir)
	secondary.TryBind()
	if err := secondary.Send(context.Background(), models.ArgumentBatch{"again.torrent"}); err != nil {
		t.Fatalf("Send after restart: %v", err)
	}
	rec.wait(t, 1)
}

func TestStartConflictAfterRelease(t *testing.T) {
	dir := t.TempDir()
	ch := newTestChannel(t, dir)
	ch.TryBind()
	listenOrSkip(t, ch, func(models.ArgumentBatch) bool { return true })
	ch.Stop()

	thief := newTestChannel(t, dir)
	if thief.TryBind() != models.RolePrimary {
		t.Fatal("expected the released lock to be taken")
	}
	if err := ch.Start(); !errors.Is(err, ErrBindConflict) {
		t.Fatalf("Start = %v, want ErrBindConflict", err)
	}
	if ch.State() != models.ListenerStopped {
		t.Fatalf("state = %v, want stopped", ch.State())
	}
}

func TestSecondaryCannotListen(t *testing.T) {
	dir := t.TempDir()
	newTestChannel(t, dir).TryBind()
	secondary := newTestChannel(t, dir)
	secondary.TryBind()
	if err := secondary.Listen(context.Background(), func(models.ArgumentBatch) bool { return true }); !errors.Is(err, ErrNotPrimary) {
		t.Fatalf("Listen = %v, want ErrNotPrimary", err)
	}
}

func TestStatusAndPing(t *testing.T) {
	ch := newTestChannel(t, t.TempDir())
	ch.TryBind()
	ch.SetStatusProvider(func() map[string]any {
		return map[string]any{"lifecycle": "active"}
	})
	listenOrSkip(t, ch, func(models.ArgumentBatch) bool { return true })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := Ping(ctx, ch.SocketPath()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	fields, err := QueryStatus(ctx, ch.SocketPath())
	if err != nil {
		t.Fatalf("QueryStatus: %v", err)
	}
	if fields["role"] != "primary" || fields["state"] != "listening" || fields["lifecycle"] != "active" {
		t.Fatalf("unexpected status %v", fields)
	}
	if pid, ok := fields["pid"].(float64); !ok || int(pid) != os.Getpid() {
		t.Fatalf("pid = %v", fields["pid"])
	}
}

func TestRefusedBatchFailsSend(t *testing.T) {
	dir := t.TempDir()
	primary := newTestChannel(t, dir)
	if primary.TryBind() != models.RolePrimary {
		t.Fatal("expected primary")
	}
	listenOrSkip(t, primary, func(models.ArgumentBatch) bool { return false })

	secondary := newTestChannel(t, dir)
	secondary.TryBind()
	err := secondary.Send(context.Background(), models.ArgumentBatch{"late.torrent"})
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected *SendError, got %v", err)
	}
	if code := status.Code(sendErr.Err); code != codes.Unavailable {
		t.Fatalf("code = %v, want Unavailable", code)
	}
}

func TestExplicitEndpointPaths(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "locks", "app.lock")
	socketPath := filepath.Join(dir, "app.sock")
	ch := New(Options{Name: "ignored", LockPath: lockPath, SocketPath: socketPath, Logger: zaptest.NewLogger(t)})
	t.Cleanup(ch.Stop)

	if ch.SocketPath() != socketPath {
		t.Fatalf("SocketPath = %q, want %q", ch.SocketPath(), socketPath)
	}
	if ch.TryBind() != models.RolePrimary {
		t.Fatal("expected primary")
	}
	if _, err := os.Stat(lockPath); err != nil {
		t.Fatalf("lock file not created at %s: %v", lockPath, err)
	}
}
