package commands

import (
	"github.com/go-andiamo/sqlbook/internal/ui"
	"github.com/go-andiamo/sqlbook/internal/watch"
	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [path]",
		Short: "Re-run check whenever a sql file changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.sourcePath(args)
			out := cmd.OutOrStdout()
			w, err := watch.NewWatcher(path, func() error {
				// failures are printed - watching continues
				_ = app.runCheck(out, path)
				return nil
			}, app.Logger)
			if err != nil {
				return err
			}
			if err = w.Start(); err != nil {
				_ = w.Stop()
				return err
			}
			ui.PrintInfo(out, "watching %s (ctrl+c to stop)", path)
			<-cmd.Context().Done()
			return w.Stop()
		},
	}
}
