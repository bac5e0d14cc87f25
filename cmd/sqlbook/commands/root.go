// Package commands implements the sqlbook CLI commands.
package commands

import (
	"log/slog"

	"github.com/go-andiamo/sqlbook/internal/config"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// App is the state shared by the commands
type App struct {
	Fs     afero.Fs
	Config *config.Config
	Logger *slog.Logger
}

// NewRootCommand creates the root command with all sub-commands
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(&App{Fs: config.AppFs}, version)
}

func newRootCommand(app *App, version string) *cobra.Command {
	var (
		path   string
		driver string
		dsn    string
		debug  bool
	)
	cmd := &cobra.Command{
		Use:           "sqlbook",
		Short:         "Named SQL queries from annotated .sql files",
		Long:          "sqlbook loads annotated .sql files into a namespace of callable queries",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFs(app.Fs)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("path") {
				cfg.Path = path
			}
			if flags.Changed("driver") {
				cfg.Driver = driver
			}
			if flags.Changed("dsn") {
				cfg.DSN = dsn
			}
			if flags.Changed("debug") {
				cfg.Debug = debug
			}
			app.Config = cfg
			level := slog.LevelWarn
			if cfg.Debug {
				level = slog.LevelDebug
			}
			app.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&path, "path", "", "sql file or directory (default \"sql\")")
	cmd.PersistentFlags().StringVar(&driver, "driver", "", "driver adapter: postgres, mysql or sqlite (default \"postgres\")")
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "data source name (default $DATABASE_URL)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug output to stderr")

	cmd.AddCommand(NewListCommand(app))
	cmd.AddCommand(NewCheckCommand(app))
	cmd.AddCommand(NewRunCommand(app))
	cmd.AddCommand(NewWatchCommand(app))
	return cmd
}

// sourcePath is the positional [path] argument or the configured path
func (app *App) sourcePath(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return app.Config.Path
}
