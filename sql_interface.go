package sqlbook

import (
	"context"
	"database/sql"
)

// SqlInterface is the borrowed connection a query is called with
//
// it is satisfied by *sql.DB, *sql.Conn and *sql.Tx - the connection is never closed, committed or rolled back by sqlbook
type SqlInterface interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

var (
	_ SqlInterface = (*sql.DB)(nil)
	_ SqlInterface = (*sql.Conn)(nil)
	_ SqlInterface = (*sql.Tx)(nil)
)
