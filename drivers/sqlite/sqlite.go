// Package sqlite is the sqlbook driver adapter for SQLite via github.com/mattn/go-sqlite3
//
// go-sqlite3 requires cgo - without cgo the adapter can still bind and check queries but Open fails
package sqlite

import (
	"context"
	"database/sql"

	"github.com/go-andiamo/sqlbook"
	"github.com/hashicorp/go-version"
)

// DriverName is the database/sql driver name registered by go-sqlite3
const DriverName = "sqlite3"

// SQLite added RETURNING in 3.35.0
var sqliteReturning = version.Must(version.NewVersion("3.35.0"))

// Options are the library version dependent capabilities of the adapter
type Options struct {
	// Returning indicates the library supports INSERT ... RETURNING (SQLite >= 3.35.0)
	Returning bool
}

// New returns the driver adapter
//
// placeholders are bound as "?", insert-returning uses RETURNING if Options.Returning (or the last insert id)
func New(opts Options) *sqlbook.StandardDriver {
	d := sqlbook.NewStandardDriver(DriverName, sqlbook.SQLite, sqlbook.Capabilities{
		Returning:        opts.Returning,
		LastInsertID:     true,
		AffectedRows:     true,
		BulkAffectedRows: true,
		MultiStatement:   true,
	})
	d.Codes = ErrorCode
	return d
}

// Detect returns the driver adapter for the library behind conn
func Detect(ctx context.Context, conn sqlbook.SqlInterface) (*sqlbook.StandardDriver, error) {
	var libVersion string
	if err := conn.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&libVersion); err != nil {
		return nil, err
	}
	return New(Options{Returning: SupportsReturning(libVersion)}), nil
}

// SupportsReturning reports whether a library version string (as returned by sqlite_version()) supports RETURNING
func SupportsReturning(libVersion string) bool {
	v, err := version.NewVersion(libVersion)
	if err != nil {
		return false
	}
	return v.GreaterThanOrEqual(sqliteReturning)
}

// ErrorCode returns the extended result code of a sqlite3.Error (or "")
func ErrorCode(err error) string {
	return errorCode(err)
}

// Open opens a database
func Open(dsn string) (*sql.DB, error) {
	return sql.Open(DriverName, dsn)
}
