// Package mysql is the sqlbook driver adapter for MySQL and MariaDB via github.com/go-sql-driver/mysql
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-andiamo/sqlbook"
	"github.com/go-sql-driver/mysql"
	"github.com/hashicorp/go-version"
)

// DriverName is the database/sql driver name registered by go-sql-driver/mysql
const DriverName = "mysql"

const (
	// DuplicateEntry is the MySQL error number for a unique key violation
	DuplicateEntry = 1062
	// UnknownDatabase is the MySQL error number for a missing database
	UnknownDatabase = 1049
)

// MariaDB added INSERT ... RETURNING in 10.5
var mariaDBReturning = version.Must(version.NewVersion("10.5.0"))

var versionPrefix = regexp.MustCompile(`^\d+(\.\d+)*`)

// Options are the server/connection dependent capabilities of the adapter
type Options struct {
	// MultiStatements indicates the connection was opened with multiStatements=true (required for scripts)
	MultiStatements bool
	// Returning indicates the server supports INSERT ... RETURNING (MariaDB >= 10.5)
	Returning bool
}

// New returns the driver adapter
//
// placeholders are bound as "?", insert-returning uses the last insert id (or RETURNING if Options.Returning)
func New(opts Options) *sqlbook.StandardDriver {
	d := sqlbook.NewStandardDriver(DriverName, sqlbook.MySQL, sqlbook.Capabilities{
		Returning:        opts.Returning,
		LastInsertID:     true,
		AffectedRows:     true,
		BulkAffectedRows: true,
		MultiStatement:   opts.MultiStatements,
	})
	d.Codes = ErrorCode
	return d
}

// OptionsFromDSN reads the connection dependent options from a dsn
func OptionsFromDSN(dsn string) (Options, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return Options{}, err
	}
	return Options{MultiStatements: cfg.MultiStatements}, nil
}

// Detect returns the driver adapter for the server behind conn
//
// the server version is queried to determine RETURNING support and the dsn (may be "") for multi statement support
func Detect(ctx context.Context, conn sqlbook.SqlInterface, dsn string) (*sqlbook.StandardDriver, error) {
	opts := Options{}
	if dsn != "" {
		var err error
		if opts, err = OptionsFromDSN(dsn); err != nil {
			return nil, err
		}
	}
	var serverVersion string
	if err := conn.QueryRowContext(ctx, "SELECT VERSION()").Scan(&serverVersion); err != nil {
		return nil, err
	}
	opts.Returning = SupportsReturning(serverVersion)
	return New(opts), nil
}

// SupportsReturning reports whether a server version string (as returned by VERSION()) supports INSERT ... RETURNING
func SupportsReturning(serverVersion string) bool {
	if !strings.Contains(strings.ToLower(serverVersion), "mariadb") {
		return false
	}
	v, err := version.NewVersion(versionPrefix.FindString(serverVersion))
	if err != nil {
		return false
	}
	return v.GreaterThanOrEqual(mariaDBReturning)
}

// ErrorCode returns the error number of a *mysql.MySQLError (or "")
func ErrorCode(err error) string {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return strconv.Itoa(int(myErr.Number))
	}
	return ""
}

// Open opens a database
func Open(dsn string) (*sql.DB, error) {
	return sql.Open(DriverName, dsn)
}

func Dsn(host string, port int, username, password, dbName string) string {
	cfg := mysql.NewConfig()
	cfg.User = username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = dbName
	cfg.ParseTime = true
	return cfg.FormatDSN()
}
