package sqlbook

import (
	"context"
	"database/sql"
)

// Capabilities describes what a Driver can do - the dispatcher decides strategies (or refuses) based solely on these
type Capabilities struct {
	// Returning indicates the dialect supports a RETURNING clause on insert
	Returning bool
	// LastInsertID indicates sql.Result.LastInsertId reports generated keys
	LastInsertID bool
	// AffectedRows indicates execute reports an affected row count
	AffectedRows bool
	// BulkAffectedRows indicates execute-many reports an affected row count
	BulkAffectedRows bool
	// MultiStatement indicates raw multi-statement scripts can be executed
	MultiStatement bool
	// Asynchronous indicates every execute and fetch step is an awaited suspension point
	Asynchronous bool
}

// DriverRows is an open result set as seen through a Driver
type DriverRows interface {
	ColumnTypes() ([]*sql.ColumnType, error)
	// Next advances to the next row - for suspending drivers ctx bounds the wait
	Next(ctx context.Context) bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Driver is the adapter between the dispatcher and a database client
//
// the args passed to Query, Exec and ExecMany are already bound into the driver's native placeholder style
type Driver interface {
	// Name is the name of the driver (used in diagnostics)
	Name() string
	// Dialect is the sql dialect (placeholder style and variant name) of the driver
	Dialect() Dialect
	// Capabilities reports what the driver supports
	Capabilities() Capabilities
	// Query executes a statement returning rows
	Query(ctx context.Context, conn SqlInterface, query string, args []any) (DriverRows, error)
	// Exec executes a statement not returning rows
	Exec(ctx context.Context, conn SqlInterface, query string, args []any) (sql.Result, error)
	// ExecMany executes a statement once per argument set and returns the total affected rows
	ExecMany(ctx context.Context, conn SqlInterface, query string, argSets [][]any) (int64, error)
	// ExecScript executes raw (possibly multi-statement) sql without arguments
	ExecScript(ctx context.Context, conn SqlInterface, script string) error
	// ErrorCode returns the database specific code for an error raised by the driver (or "" if unknown)
	ErrorCode(err error) string
}

// StandardDriver is a Driver over database/sql
//
// the per-database adapters (drivers/postgres, drivers/mysql, drivers/sqlite) are configured StandardDriver(s)
type StandardDriver struct {
	DriverName string
	SQLDialect Dialect
	Caps       Capabilities
	// Codes extracts database specific error codes (optional)
	Codes func(err error) string
}

var _ Driver = (*StandardDriver)(nil)

// NewStandardDriver creates a new StandardDriver
func NewStandardDriver(name string, dialect Dialect, caps Capabilities) *StandardDriver {
	return &StandardDriver{
		DriverName: name,
		SQLDialect: dialect,
		Caps:       caps,
	}
}

func (d *StandardDriver) Name() string {
	return d.DriverName
}

func (d *StandardDriver) Dialect() Dialect {
	return d.SQLDialect
}

func (d *StandardDriver) Capabilities() Capabilities {
	return d.Caps
}

func (d *StandardDriver) Query(ctx context.Context, conn SqlInterface, query string, args []any) (DriverRows, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{Rows: rows}, nil
}

func (d *StandardDriver) Exec(ctx context.Context, conn SqlInterface, query string, args []any) (sql.Result, error) {
	return conn.ExecContext(ctx, query, args...)
}

func (d *StandardDriver) ExecMany(ctx context.Context, conn SqlInterface, query string, argSets [][]any) (total int64, err error) {
	if p, ok := conn.(preparer); ok && len(argSets) > 1 {
		var stmt *sql.Stmt
		if stmt, err = p.PrepareContext(ctx, query); err != nil {
			return 0, err
		}
		defer func() {
			_ = stmt.Close()
		}()
		for _, args := range argSets {
			var res sql.Result
			if res, err = stmt.ExecContext(ctx, args...); err != nil {
				return total, err
			}
			total += rowsAffected(res)
		}
		return total, nil
	}
	for _, args := range argSets {
		var res sql.Result
		if res, err = conn.ExecContext(ctx, query, args...); err != nil {
			return total, err
		}
		total += rowsAffected(res)
	}
	return total, nil
}

func (d *StandardDriver) ExecScript(ctx context.Context, conn SqlInterface, script string) error {
	_, err := conn.ExecContext(ctx, script)
	return err
}

func (d *StandardDriver) ErrorCode(err error) string {
	if d.Codes == nil || err == nil {
		return ""
	}
	return d.Codes(err)
}

func rowsAffected(res sql.Result) int64 {
	if res == nil {
		return 0
	}
	if n, err := res.RowsAffected(); err == nil {
		return n
	}
	return 0
}

type sqlRows struct {
	*sql.Rows
}

var _ DriverRows = (*sqlRows)(nil)

func (r *sqlRows) Next(_ context.Context) bool {
	return r.Rows.Next()
}
