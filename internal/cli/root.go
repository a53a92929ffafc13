// Package cli implements the trgui commands.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	configDir string
	noTray    bool
	headless  bool
)

var rootCmd = &cobra.Command{
	Use:   "trgui [torrent...]",
	Short: "Remote GUI for the Transmission daemon",
	Long: `trgui is a remote GUI for a Transmission torrent daemon.
Only one instance runs at a time: launching trgui again hands the given
torrent files to the running instance and raises its window.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runLaunch,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.trgui)")
	rootCmd.Flags().BoolVar(&noTray, "no-tray", false, "run without a system tray icon")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "never open a terminal window")

	// Add subcommands (alphabetical)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
