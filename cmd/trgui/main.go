// Package main is the entry point for trgui.
package main

import (
	"os"

	"github.com/trgui-ng/trgui/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
