package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/config"
	"github.com/trgui-ng/trgui/internal/logging"
	"github.com/trgui-ng/trgui/internal/models"
	"github.com/trgui-ng/trgui/internal/ui"
)

func runLaunch(cmd *cobra.Command, args []string) error {
	paths, err := config.ResolvePaths(configDir)
	if err != nil {
		return fmt.Errorf("failed to resolve config directory: %w", err)
	}
	if err := paths.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	settings, err := config.LoadSettings(paths)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	logger, closeLog, err := newLogger(paths, settings, headless)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	h := newHost(paths, settings, logger, hostOptions{headless: headless})
	return h.run(commandContext(cmd), argumentBatch(args), !noTray)
}

// newLogger writes to stderr only when no terminal window can take over the
// screen; the log file is the record either way.
func newLogger(paths config.Paths, settings *models.Settings, headless bool) (*zap.Logger, func() error, error) {
	opts := logging.Options{
		Level:   settings.Log.Level,
		Console: headless || !ui.IsTerminal(),
	}
	if settings.Log.File {
		opts.LogFile = paths.LogFile()
	}
	logger, closeLog, err := logging.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return logger, closeLog, nil
}

// argumentBatch resolves relative file paths against the working directory so
// the primary, which may run elsewhere, can open them. URLs pass through.
func argumentBatch(args []string) models.ArgumentBatch {
	batch := make(models.ArgumentBatch, 0, len(args))
	for _, arg := range args {
		if arg == "" || strings.Contains(arg, "://") || strings.HasPrefix(arg, "magnet:") || filepath.IsAbs(arg) {
			batch = append(batch, arg)
			continue
		}
		abs, err := filepath.Abs(arg)
		if err != nil {
			batch = append(batch, arg)
			continue
		}
		batch = append(batch, abs)
	}
	return batch
}
