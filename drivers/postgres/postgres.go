// Package postgres is the sqlbook driver adapter for PostgreSQL via github.com/lib/pq
package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-andiamo/sqlbook"
	"github.com/lib/pq"
)

// DriverName is the database/sql driver name registered by lib/pq
const DriverName = "postgres"

const (
	// UniqueViolation is the SQLSTATE for a unique constraint violation
	UniqueViolation = "23505"
	// ForeignKeyViolation is the SQLSTATE for a foreign key constraint violation
	ForeignKeyViolation = "23503"
	// UndefinedTable is the SQLSTATE for a missing table
	UndefinedTable = "42P01"
)

var capabilities = sqlbook.Capabilities{
	Returning:        true,
	AffectedRows:     true,
	BulkAffectedRows: true,
	MultiStatement:   true,
}

// New returns the driver adapter
//
// placeholders are bound as "$n", insert-returning uses RETURNING (there is no last insert id)
func New() *sqlbook.StandardDriver {
	d := sqlbook.NewStandardDriver(DriverName, sqlbook.Postgres, capabilities)
	d.Codes = ErrorCode
	return d
}

// ErrorCode returns the SQLSTATE of a *pq.Error (or "")
func ErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// ErrorClass returns the SQLSTATE class name of a *pq.Error (e.g. "integrity_constraint_violation")
func ErrorClass(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class().Name()
	}
	return ""
}

// Open opens a database
func Open(dsn string) (*sql.DB, error) {
	return sql.Open(DriverName, dsn)
}

func Dsn(host string, port int, username, password, dbName string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		username, password, host, port, dbName)
}
