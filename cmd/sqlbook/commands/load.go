package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-andiamo/sqlbook"
	"github.com/go-andiamo/sqlbook/drivers/mysql"
	"github.com/go-andiamo/sqlbook/drivers/postgres"
	"github.com/go-andiamo/sqlbook/drivers/sqlite"
	"github.com/spf13/afero"
)

// staticDriver returns the adapter for a driver name with its default capabilities (no connection needed)
func staticDriver(name string) (*sqlbook.StandardDriver, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pg":
		return postgres.New(), nil
	case "mysql", "mariadb":
		return mysql.New(mysql.Options{}), nil
	case "sqlite", "sqlite3":
		return sqlite.New(sqlite.Options{Returning: true}), nil
	}
	return nil, fmt.Errorf("unknown driver %q (expected postgres, mysql or sqlite)", name)
}

// openDatabase opens the database and returns the adapter detected from the server
func openDatabase(ctx context.Context, name string, dsn string) (*sql.DB, *sqlbook.StandardDriver, error) {
	if dsn == "" {
		return nil, nil, errors.New("no dsn (use --dsn, SQLBOOK_DSN or DATABASE_URL)")
	}
	var (
		db     *sql.DB
		driver *sqlbook.StandardDriver
		err    error
	)
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pg":
		if db, err = postgres.Open(dsn); err == nil {
			driver = postgres.New()
			err = db.PingContext(ctx)
		}
	case "mysql", "mariadb":
		if db, err = mysql.Open(dsn); err == nil {
			driver, err = mysql.Detect(ctx, db, dsn)
		}
	case "sqlite", "sqlite3":
		if db, err = sqlite.Open(dsn); err == nil {
			driver, err = sqlite.Detect(ctx, db)
		}
	default:
		_, err = staticDriver(name)
	}
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, nil, err
	}
	return db, driver, nil
}

// loadRegistry loads the sql files at path
//
// every record type named by a query maps to the plain row (the CLI has no record types of its own)
func (app *App) loadRegistry(path string, driver sqlbook.Driver) (*sqlbook.Registry, error) {
	records, err := recordTypes(app.Fs, path)
	if err != nil {
		return nil, err
	}
	return sqlbook.Load(app.Fs, path, driver, records, app.Logger)
}

func recordTypes(fs afero.Fs, path string) (sqlbook.Records, error) {
	records := sqlbook.Records{}
	err := afero.Walk(fs, path, func(name string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(name), ".sql") {
			return nil
		}
		f, err := fs.Open(name)
		if err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
		// parse errors are reported by the load proper
		defs, _ := sqlbook.Parse(f, sqlbook.ParseOptions{Source: name})
		for _, def := range defs {
			if def.RecordType != "" {
				records[def.RecordType] = asRow
			}
		}
		return nil
	})
	return records, err
}

func asRow(row sqlbook.Row) (any, error) {
	return row, nil
}
