// Package main is the entry point for the sqlbook CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-andiamo/sqlbook/cmd/sqlbook/commands"
	"github.com/go-andiamo/sqlbook/internal/ui"
)

var (
	// Version information (set by build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := run(); err != nil {
		ui.PrintError(os.Stderr, "%v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := commands.NewRootCommand(fmt.Sprintf("%s (commit: %s)", Version, Commit))
	return rootCmd.ExecuteContext(ctx)
}
