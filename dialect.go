package sqlbook

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// PlaceholderStyle is the native parameter placeholder syntax of a driver
type PlaceholderStyle int

const (
	// Question is "?" - one value per placeholder occurrence (mysql, sqlite)
	Question PlaceholderStyle = iota
	// Dollar is "$1", "$2" - one value per distinct name (postgres)
	Dollar
	// At is "@p1", "@p2" - one value per distinct name (sqlserver)
	At
	// NamedStyle keeps ":name" placeholders and passes values as sql.NamedArg
	NamedStyle
)

func (s PlaceholderStyle) String() string {
	switch s {
	case Question:
		return "question"
	case Dollar:
		return "dollar"
	case At:
		return "at"
	case NamedStyle:
		return "named"
	}
	return "unknown"
}

const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

// Dialect describes the sql flavour a driver speaks
type Dialect struct {
	// Name is the dialect name (matched against query dialect tags and Variants)
	Name string
	// Placeholder is the native placeholder style
	Placeholder PlaceholderStyle
}

var (
	Postgres = Dialect{Name: DialectPostgres, Placeholder: Dollar}
	MySQL    = Dialect{Name: DialectMySQL, Placeholder: Question}
	SQLite   = Dialect{Name: DialectSQLite, Placeholder: Question}
)

var driverDialectNames = map[string]string{
	"postgres":         DialectPostgres,
	"pgx":              DialectPostgres,
	"nrpostgres":       DialectPostgres,
	"cloudsqlpostgres": DialectPostgres,
	"mysql":            DialectMySQL,
	"nrmysql":          DialectMySQL,
	"sqlite3":          DialectSQLite,
	"sqlite":           DialectSQLite,
	"nrsqlite3":        DialectSQLite,
}

// DialectForDriver derives a Dialect from a database/sql driver name (as passed to sql.Open)
//
// the placeholder style follows sqlx's bind type for the driver, unknown drivers default to Question
func DialectForDriver(driverName string) Dialect {
	name, ok := driverDialectNames[driverName]
	if !ok {
		name = strings.ToLower(driverName)
	}
	result := Dialect{Name: name, Placeholder: Question}
	switch sqlx.BindType(driverName) {
	case sqlx.DOLLAR:
		result.Placeholder = Dollar
	case sqlx.AT:
		result.Placeholder = At
	case sqlx.NAMED:
		result.Placeholder = NamedStyle
	}
	return result
}
