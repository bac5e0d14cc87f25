package commands

import (
	"fmt"
	"io"

	"github.com/go-andiamo/sqlbook/internal/ui"
	"github.com/spf13/cobra"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Load the sql files and check every query is supported by the driver",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runCheck(cmd.OutOrStdout(), app.sourcePath(args))
		},
	}
}

func (app *App) runCheck(w io.Writer, path string) error {
	driver, err := staticDriver(app.Config.Driver)
	if err != nil {
		return err
	}
	r, err := app.loadRegistry(path, driver)
	if err != nil {
		ui.PrintError(w, "%v", err)
		return fmt.Errorf("failed to load %s", path)
	}
	failures := checkErrors(r.Check())
	if len(failures) == 0 {
		ui.PrintSuccess(w, "%d queries in %s supported by %s", r.Root().Len(), path, driver.Name())
		return nil
	}
	for _, e := range failures {
		ui.PrintError(w, "%v", e)
	}
	return fmt.Errorf("%d of %d queries not supported by %s", len(failures), r.Root().Len(), driver.Name())
}

func checkErrors(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
