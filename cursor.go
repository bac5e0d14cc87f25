package sqlbook

import (
	"context"
	"iter"
	"time"
)

// Cursor is an open result set of a select-cursor query, read lazily row by row
//
// a Cursor closes itself when exhausted or on error - callers must still Close it when stopping early
// (or use Query.WithCursor / Query.Iterator, which always close)
type Cursor struct {
	q       *Query
	ctx     context.Context
	conn    SqlInterface
	rows    DriverRows
	reader  *columnsReader
	count   int
	current any
	err     error
	closed  bool
}

// Cursor executes a select-cursor query and returns the open cursor
func (q *Query) Cursor(ctx context.Context, conn SqlInterface, args any) (result *Cursor, err error) {
	defer func(start time.Time) { q.trace(ctx, start, err) }(time.Now())
	if err = q.expect(conn, SelectCursor); err != nil {
		return nil, err
	}
	var rows DriverRows
	if rows, err = q.open(ctx, conn, args); err != nil {
		return nil, err
	}
	var cr *columnsReader
	if cr, err = q.mapper.mapColumns(rows); err != nil {
		_ = rows.Close()
		return nil, q.driverError("fetch", err)
	}
	return &Cursor{
		q:      q,
		ctx:    ctx,
		conn:   conn,
		rows:   rows,
		reader: cr,
	}, nil
}

// WithCursor executes a select-cursor query and calls fn with the open cursor
//
// the cursor is closed when fn returns (or panics)
func (q *Query) WithCursor(ctx context.Context, conn SqlInterface, args any, fn func(c *Cursor) error) (err error) {
	var c *Cursor
	if c, err = q.Cursor(ctx, conn, args); err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(c)
}

// Iterator returns an iterator over the rows of a select-cursor query that can be ranged over
//
// the query is executed when iteration starts - errors are yielded as the final element and the
// cursor is closed however iteration ends
func (q *Query) Iterator(ctx context.Context, conn SqlInterface, args any) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		c, err := q.Cursor(ctx, conn, args)
		if err != nil {
			yield(nil, err)
			return
		}
		defer func() {
			_ = c.Close()
		}()
		for c.Next() {
			if !yield(c.Row(), nil) {
				return
			}
		}
		if err = c.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Next advances the cursor to the next row
//
// returns false when there are no more rows or an error occurred (see Err) - the cursor is then closed
// (as it is when a Limiter stops reading)
func (c *Cursor) Next() bool {
	if c.closed || c.err != nil {
		return false
	}
	if !c.rows.Next(c.ctx) {
		if err := c.rows.Err(); err != nil {
			c.err = c.q.driverError("fetch", err)
		}
		c.finish()
		return false
	}
	c.count++
	if c.q.limiter.LimitReached(c.count) {
		c.finish()
		return false
	}
	row, err := c.q.mapper.scan(c.rows, c.reader)
	if err != nil {
		c.err = c.q.driverError("fetch", err)
		c.finish()
		return false
	}
	if err = c.q.postProcess(c.ctx, c.conn, &row); err != nil {
		c.err = err
		c.finish()
		return false
	}
	if c.current, err = c.q.build(row); err != nil {
		c.err = err
		c.finish()
		return false
	}
	return true
}

// Row returns the current row (Row or record)
func (c *Cursor) Row() any {
	return c.current
}

// Err returns the error, if any, that was encountered during iteration
func (c *Cursor) Err() error {
	return c.err
}

// Columns returns the column names of the result set
func (c *Cursor) Columns() []string {
	return append([]string{}, c.reader.names...)
}

// FetchOne advances the cursor and returns the row (or nil when exhausted)
func (c *Cursor) FetchOne() (any, error) {
	if c.Next() {
		return c.current, nil
	}
	return nil, c.err
}

// FetchAll reads all remaining rows
func (c *Cursor) FetchAll() ([]any, error) {
	result := make([]any, 0)
	for c.Next() {
		result = append(result, c.current)
	}
	return result, c.err
}

func (c *Cursor) Closed() bool {
	return c.closed
}

// Close closes the cursor - closing an already closed cursor is a no-op
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.current = nil
	if err := c.rows.Close(); err != nil {
		return c.q.driverError("close", err)
	}
	return nil
}

func (c *Cursor) finish() {
	if err := c.Close(); err != nil && c.err == nil {
		c.err = err
	}
}
