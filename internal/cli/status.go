package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/trgui-ng/trgui/internal/config"
	"github.com/trgui-ng/trgui/internal/instance"
)

const statusTimeout = 3 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running instance",
	Long:  `Ask the running trgui instance for its lifecycle, window, and poller state.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	paths, err := config.ResolvePaths(configDir)
	if err != nil {
		return fmt.Errorf("failed to resolve config directory: %w", err)
	}
	socket, err := statusSocket(paths)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), statusTimeout)
	defer cancel()
	fields, err := instance.QueryStatus(ctx, socket)
	out := cmd.OutOrStdout()
	if err != nil {
		fmt.Fprintln(out, styleWarning.Render("trgui is not running."))
		fmt.Fprintln(out, styleHint.Render("  "+err.Error()))
		return nil
	}
	fmt.Fprintln(out, styleSuccess.Render("trgui is running."))
	writeStatus(out, fields)
	return nil
}

// statusSocket prefers the socket recorded by the running primary and falls
// back to the configured endpoint.
func statusSocket(paths config.Paths) (string, error) {
	info, err := config.LoadInstanceInfo(paths)
	if err == nil && info != nil && info.Socket != "" {
		return info.Socket, nil
	}
	settings, err := config.LoadSettings(paths)
	if err != nil {
		return "", fmt.Errorf("failed to load settings: %w", err)
	}
	return paths.SocketFile(settings.Instance.Name), nil
}

func writeStatus(w io.Writer, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, formatField(fields[k])})
	}
	fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func formatField(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
