package ui

import (
	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/bus"
	"github.com/trgui-ng/trgui/internal/commands"
	"github.com/trgui-ng/trgui/internal/models"
	"github.com/trgui-ng/trgui/internal/state"
)

// env is what every window shares with the host.
type env struct {
	bus       *bus.Bus
	store     *state.Store
	cmds      *commands.Commands
	prefsPath string
	logger    *zap.Logger
}

// ingest checks each forwarded path and returns the readable ones.
func (e *env) ingest(batch models.ArgumentBatch) (accepted []string, failed []error) {
	for _, path := range batch {
		if e.cmds == nil {
			accepted = append(accepted, path)
			continue
		}
		data, err := e.cmds.ReadFile(path)
		if err != nil {
			failed = append(failed, err)
			e.logger.Warn("forwarded file rejected", zap.String("path", path), zap.Error(err))
			continue
		}
		accepted = append(accepted, path)
		e.logger.Info("forwarded file received", zap.String("path", path), zap.Int("bytes", len(data)))
	}
	return accepted, failed
}
