package sqlbook

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"time"
)

var returningClause = regexp.MustCompile(`(?i)\breturning\b`)

// Query is a callable named statement of a Registry
//
// a Query is immutable once built and safe for concurrent use - the connection is supplied per call
type Query struct {
	def        QueryDefinition
	path       string
	compiled   *compiledSQL
	returning  bool
	driver     Driver
	mapper     *rowMapper
	unused     UnusedParameters
	translator ErrorTranslator
	logger     *slog.Logger
	processors []RowPostProcessor
	limiter    Limiter
}

func (q *Query) Definition() QueryDefinition {
	return q.def
}

func (q *Query) Name() string {
	return q.def.Name
}

// Path is the dotted path of the query within its registry
func (q *Query) Path() string {
	return q.path
}

func (q *Query) Kind() OperationKind {
	return q.def.Kind
}

// SQL is the statement text as written (":name" placeholders)
func (q *Query) SQL() string {
	return q.def.SQL
}

func (q *Query) Doc() string {
	return q.def.Doc
}

// Bind renders the statement and arguments as they would be sent to the bound driver
func (q *Query) Bind(args any) (string, []any, error) {
	if q.def.Kind == ExecuteScript {
		return q.def.SQL, nil, nil
	}
	return q.bind(args)
}

// Call executes the query according to its kind
//
// the result is []any (select-many), a record or nil (select-one), a value or nil (select-value),
// *Cursor (select-cursor, the caller must close it), int64 or nil (insert-update-delete, bulk-execute),
// key/record or nil (insert-returning) or nil (execute-script)
func (q *Query) Call(ctx context.Context, conn SqlInterface, args any) (any, error) {
	switch q.def.Kind {
	case SelectMany:
		return q.Many(ctx, conn, args)
	case SelectOne:
		return q.One(ctx, conn, args)
	case SelectValue:
		return q.Value(ctx, conn, args)
	case SelectCursor:
		c, err := q.Cursor(ctx, conn, args)
		if err != nil {
			return nil, err
		}
		return c, nil
	case InsertUpdateDelete:
		n, err := q.Exec(ctx, conn, args)
		return nullable(n), err
	case InsertReturning:
		return q.InsertReturning(ctx, conn, args)
	case BulkExecute:
		n, err := q.ExecMany(ctx, conn, args)
		return nullable(n), err
	case ExecuteScript:
		return nil, q.Script(ctx, conn)
	}
	return nil, fmt.Errorf("query %q: unknown kind %s", q.path, q.def.Kind)
}

// Many executes a select-many query and returns all rows
func (q *Query) Many(ctx context.Context, conn SqlInterface, args any) (result []any, err error) {
	defer func(start time.Time) { q.trace(ctx, start, err) }(time.Now())
	if err = q.expect(conn, SelectMany); err != nil {
		return nil, err
	}
	var rows []Row
	if rows, err = q.fetchRows(ctx, conn, args, -1); err != nil {
		return nil, err
	}
	result = make([]any, 0, len(rows))
	for _, row := range rows {
		var item any
		if item, err = q.build(row); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, nil
}

// One executes a select-one query and returns the first row (or nil if there are no rows)
func (q *Query) One(ctx context.Context, conn SqlInterface, args any) (result any, err error) {
	defer func(start time.Time) { q.trace(ctx, start, err) }(time.Now())
	if err = q.expect(conn, SelectOne); err != nil {
		return nil, err
	}
	var rows []Row
	if rows, err = q.fetchRows(ctx, conn, args, 1); err != nil || len(rows) == 0 {
		return nil, err
	}
	return q.build(rows[0])
}

// Value executes a select-value query and returns the first column of the first row (or nil if there are no rows)
func (q *Query) Value(ctx context.Context, conn SqlInterface, args any) (result any, err error) {
	defer func(start time.Time) { q.trace(ctx, start, err) }(time.Now())
	if err = q.expect(conn, SelectValue); err != nil {
		return nil, err
	}
	var rows []Row
	if rows, err = q.fetchRows(ctx, conn, args, 1); err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0].At(0), nil
}

// Exec executes an insert-update-delete query
//
// the affected row count is only valid when the driver reports counts
func (q *Query) Exec(ctx context.Context, conn SqlInterface, args any) (result sql.NullInt64, err error) {
	defer func(start time.Time) { q.trace(ctx, start, err) }(time.Now())
	if err = q.expect(conn, InsertUpdateDelete); err != nil {
		return result, err
	}
	var res sql.Result
	if res, err = q.exec(ctx, conn, args); err != nil {
		return result, err
	}
	if q.driver.Capabilities().AffectedRows {
		if n, rerr := res.RowsAffected(); rerr == nil {
			result = sql.NullInt64{Int64: n, Valid: true}
		}
	}
	return result, nil
}

// InsertReturning executes an insert-returning query
//
// with a RETURNING clause (the driver must support RETURNING) the result is the single returned value, the
// returned row (when more than one column) or nil (no row returned) - otherwise it is the last insert id
func (q *Query) InsertReturning(ctx context.Context, conn SqlInterface, args any) (result any, err error) {
	defer func(start time.Time) { q.trace(ctx, start, err) }(time.Now())
	if err = q.expect(conn, InsertReturning); err != nil {
		return nil, err
	}
	if err = q.supported(); err != nil {
		return nil, err
	}
	if q.returning {
		var rows []Row
		if rows, err = q.fetchRows(ctx, conn, args, 1); err != nil || len(rows) == 0 {
			return nil, err
		}
		if rows[0].Len() == 1 && q.mapper.record == nil {
			return rows[0].At(0), nil
		}
		return q.build(rows[0])
	}
	var res sql.Result
	if res, err = q.exec(ctx, conn, args); err != nil {
		return nil, err
	}
	var id int64
	if id, err = res.LastInsertId(); err != nil {
		return nil, q.driverError("last-insert-id", err)
	}
	return id, nil
}

// ExecMany executes a bulk-execute query once per argument set
//
// argSets may be []Named, []map[string]any, []Positional, [][]any or []any (of those)
func (q *Query) ExecMany(ctx context.Context, conn SqlInterface, argSets any) (result sql.NullInt64, err error) {
	defer func(start time.Time) { q.trace(ctx, start, err) }(time.Now())
	if err = q.expect(conn, BulkExecute); err != nil {
		return result, err
	}
	var sets []boundArgs
	if sets, err = normalizeBulk(argSets); err != nil {
		return result, err
	}
	counts := q.driver.Capabilities().BulkAffectedRows
	if len(sets) == 0 {
		return sql.NullInt64{Valid: counts}, nil
	}
	text := q.def.SQL
	values := make([][]any, len(sets))
	for i, set := range sets {
		if text, values[i], err = q.compiled.bind(q.path, q.driver.Dialect().Placeholder, set, q.unused); err != nil {
			return result, err
		}
	}
	var n int64
	if n, err = q.driver.ExecMany(ctx, conn, text, values); err != nil {
		return result, q.driverError("exec-many", err)
	}
	return sql.NullInt64{Int64: n, Valid: counts}, nil
}

// Script executes an execute-script query - the text is sent as is, without binding
func (q *Query) Script(ctx context.Context, conn SqlInterface) (err error) {
	defer func(start time.Time) { q.trace(ctx, start, err) }(time.Now())
	if err = q.expect(conn, ExecuteScript); err != nil {
		return err
	}
	if err = q.supported(); err != nil {
		return err
	}
	if err = q.driver.ExecScript(ctx, conn, q.def.SQL); err != nil {
		return q.driverError("script", err)
	}
	return nil
}

// Many calls a select-many query and asserts every row as a `T`
func Many[T any](ctx context.Context, q *Query, conn SqlInterface, args any) ([]T, error) {
	items, err := q.Many(ctx, conn, args)
	if err != nil {
		return nil, err
	}
	result := make([]T, 0, len(items))
	for i, item := range items {
		v, ok := item.(T)
		if !ok {
			return nil, fmt.Errorf("query %q: row %d is %T, not %T", q.path, i, item, *new(T))
		}
		result = append(result, v)
	}
	return result, nil
}

// One calls a select-one query and asserts the row as a `T`
//
// if there are no rows, returns nil
func One[T any](ctx context.Context, q *Query, conn SqlInterface, args any) (*T, error) {
	item, err := q.One(ctx, conn, args)
	if err != nil || item == nil {
		return nil, err
	}
	v, ok := item.(T)
	if !ok {
		return nil, fmt.Errorf("query %q: row is %T, not %T", q.path, item, *new(T))
	}
	return &v, nil
}

// Value calls a select-value query and asserts the value as a `T`
//
// ok is false when there was no row (or the value was null)
func Value[T any](ctx context.Context, q *Query, conn SqlInterface, args any) (result T, ok bool, err error) {
	var item any
	if item, err = q.Value(ctx, conn, args); err != nil || item == nil {
		return result, false, err
	}
	if result, ok = item.(T); !ok {
		return result, false, fmt.Errorf("query %q: value is %T, not %T", q.path, item, result)
	}
	return result, true, nil
}

func (q *Query) expect(conn SqlInterface, kind OperationKind) error {
	if q.def.Kind != kind {
		return fmt.Errorf("%w: query %q is %s, not %s", ErrKindMismatch, q.path, q.def.Kind, kind)
	}
	if conn == nil {
		return fmt.Errorf("%w: query %q", ErrNoConnection, q.path)
	}
	return nil
}

// supported reports whether the bound driver has the capabilities the query kind needs
func (q *Query) supported() error {
	caps := q.driver.Capabilities()
	capability := ""
	switch q.def.Kind {
	case InsertReturning:
		// a RETURNING statement can only be queried - never executed for the last insert id
		switch {
		case q.returning && !caps.Returning:
			capability = "returning"
		case !q.returning && !caps.LastInsertID:
			capability = "last-insert-id"
		}
	case ExecuteScript:
		if !caps.MultiStatement {
			capability = "multi-statement"
		}
	}
	if capability == "" {
		return nil
	}
	return &UnsupportedOperationError{
		Query:      q.path,
		Kind:       q.def.Kind,
		Driver:     q.driver.Name(),
		Capability: capability,
	}
}

func (q *Query) bind(args any) (string, []any, error) {
	ba, err := normalizeArgs(args)
	if err != nil {
		return "", nil, err
	}
	return q.compiled.bind(q.path, q.driver.Dialect().Placeholder, ba, q.unused)
}

func (q *Query) open(ctx context.Context, conn SqlInterface, args any) (DriverRows, error) {
	text, values, err := q.bind(args)
	if err != nil {
		return nil, err
	}
	rows, err := q.driver.Query(ctx, conn, text, values)
	if err != nil {
		return nil, q.driverError("query", err)
	}
	return rows, nil
}

func (q *Query) exec(ctx context.Context, conn SqlInterface, args any) (sql.Result, error) {
	text, values, err := q.bind(args)
	if err != nil {
		return nil, err
	}
	res, err := q.driver.Exec(ctx, conn, text, values)
	if err != nil {
		return nil, q.driverError("exec", err)
	}
	return res, nil
}

// fetchRows executes and reads up to limit rows (all rows when limit < 0) - the rows are always closed
func (q *Query) fetchRows(ctx context.Context, conn SqlInterface, args any, limit int) (result []Row, err error) {
	var rows DriverRows
	if rows, err = q.open(ctx, conn, args); err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = q.driverError("close", cerr)
		}
	}()
	var cr *columnsReader
	if cr, err = q.mapper.mapColumns(rows); err != nil {
		return nil, q.driverError("fetch", err)
	}
	rowCount := 0
	for (limit < 0 || len(result) < limit) && rows.Next(ctx) {
		rowCount++
		if limit < 0 && q.limiter.LimitReached(rowCount) {
			break
		}
		var row Row
		if row, err = q.mapper.scan(rows, cr); err != nil {
			return nil, q.driverError("fetch", err)
		}
		if err = q.postProcess(ctx, conn, &row); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err = rows.Err(); err != nil {
		return nil, q.driverError("fetch", err)
	}
	return result, nil
}

func (q *Query) postProcess(ctx context.Context, conn SqlInterface, row *Row) error {
	if len(q.processors) == 0 {
		return nil
	}
	// processors may append columns - never into the shared column names
	row.Columns = slices.Clip(row.Columns)
	for _, pp := range q.processors {
		if err := pp.PostProcess(ctx, conn, row); err != nil {
			return fmt.Errorf("query %q: post-process: %w", q.path, err)
		}
	}
	return nil
}

func (q *Query) build(row Row) (any, error) {
	v, err := q.mapper.build(row)
	if err != nil {
		return nil, fmt.Errorf("query %q: record %q: %w", q.path, q.def.RecordType, err)
	}
	return v, nil
}

func (q *Query) driverError(op string, err error) error {
	return translateError(&DriverError{
		Query: q.path,
		Kind:  q.def.Kind,
		Op:    op,
		Code:  q.driver.ErrorCode(err),
		Err:   err,
	}, q.translator)
}

func (q *Query) trace(ctx context.Context, start time.Time, err error) {
	if !q.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	attrs := []any{
		slog.String("query", q.path),
		slog.String("kind", q.def.Kind.String()),
		slog.String("driver", q.driver.Name()),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	q.logger.DebugContext(ctx, "query call", attrs...)
}

func nullable(n sql.NullInt64) any {
	if !n.Valid {
		return nil
	}
	return n.Int64
}
