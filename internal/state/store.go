// Package state holds the latest poll result shared between the poller, the
// presentation layer and the status RPC.
//
// The poller is the single writer. Readers take snapshots, which are copies,
// so rendering never races with the next update. A failed poll keeps the
// previous data and only records the error.
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/trgui-ng/trgui/internal/models"
)

// Snapshot is the latest data available to readers.
type Snapshot struct {
	Torrents            []models.Torrent
	Stats               models.SessionStats
	HasData             bool
	Config              models.PollerConfig
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when the daemon has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Fields flattens the snapshot for the status RPC.
func (s Snapshot) Fields() map[string]any {
	fields := map[string]any{
		"poller_url":      s.Config.URL,
		"poller_interval": s.Config.Interval.String(),
		"torrents":        len(s.Torrents),
		"failures":        s.ConsecutiveFailures,
		"download_speed":  s.Stats.DownloadSpeed,
		"upload_speed":    s.Stats.UploadSpeed,
	}
	if !s.LastUpdated.IsZero() {
		fields["last_updated"] = s.LastUpdated.Format(time.RFC3339)
	}
	if s.LastError != nil {
		fields["last_error"] = s.LastError.Error()
	}
	return fields
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// SetConfig records the configuration the poller is currently using.
func (s *Store) SetConfig(cfg models.PollerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Config = cfg.Redacted()
}

// Update replaces the stored data. When err is non-nil the previous data is
// kept but the error is recorded.
func (s *Store) Update(result *models.PollResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	if result != nil {
		s.snapshot.Torrents = cloneTorrents(result.Torrents)
		s.snapshot.Stats = result.Stats
		s.snapshot.HasData = true
	} else {
		s.snapshot.Torrents = nil
		s.snapshot.Stats = models.SessionStats{}
		s.snapshot.HasData = false
	}
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Torrents = cloneTorrents(s.snapshot.Torrents)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneTorrents(items []models.Torrent) []models.Torrent {
	if len(items) == 0 {
		return nil
	}
	dup := make([]models.Torrent, len(items))
	copy(dup, items)
	return dup
}
