package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/trgui-ng/trgui/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Aliases: []string{"v"},
	Short:   "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout())
	},
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", styleBrand.Render("trgui"), styleVersion.Render(buildinfo.Version))
	fmt.Fprintf(w, "  %s %s\n", styleLabel.Render("Commit: "), styleValue.Render(buildinfo.CommitHash))
	fmt.Fprintf(w, "  %s %s\n", styleLabel.Render("Built:  "), styleValue.Render(buildinfo.BuildDate))
	fmt.Fprintf(w, "  %s %s\n", styleLabel.Render("OS/Arch:"), styleValue.Render(runtime.GOOS+"/"+runtime.GOARCH))
	fmt.Fprintf(w, "  %s %s\n", styleLabel.Render("Go:     "), styleValue.Render(runtime.Version()))
}
