package sqlbook

import (
	"context"
	"database/sql"
)

// SuspendingOptions configures a driver wrapped by Suspending
type SuspendingOptions struct {
	// SuppressAffected makes the driver report no affected row counts (for clients that cannot report them)
	SuppressAffected bool
}

// Suspending wraps a driver so that every execute and fetch step is an awaited suspension point
//
// each primitive runs on its own goroutine and the caller waits for either its outcome or ctx.Done() - a
// result set produced after the caller stopped waiting is closed, never leaked
func Suspending(d Driver, options ...SuspendingOptions) Driver {
	result := &suspendingDriver{inner: d}
	for _, o := range options {
		result.opts.SuppressAffected = result.opts.SuppressAffected || o.SuppressAffected
	}
	return result
}

type suspendingDriver struct {
	inner Driver
	opts  SuspendingOptions
}

var _ Driver = (*suspendingDriver)(nil)

func (d *suspendingDriver) Name() string {
	return d.inner.Name()
}

func (d *suspendingDriver) Dialect() Dialect {
	return d.inner.Dialect()
}

func (d *suspendingDriver) Capabilities() Capabilities {
	caps := d.inner.Capabilities()
	caps.Asynchronous = true
	if d.opts.SuppressAffected {
		caps.AffectedRows = false
		caps.BulkAffectedRows = false
	}
	return caps
}

func (d *suspendingDriver) Query(ctx context.Context, conn SqlInterface, query string, args []any) (DriverRows, error) {
	rows, err := await(ctx, func() (DriverRows, error) {
		return d.inner.Query(ctx, conn, query, args)
	}, func(rows DriverRows) {
		_ = rows.Close()
	})
	if err != nil {
		return nil, err
	}
	return &suspendingRows{inner: rows}, nil
}

func (d *suspendingDriver) Exec(ctx context.Context, conn SqlInterface, query string, args []any) (sql.Result, error) {
	return await(ctx, func() (sql.Result, error) {
		return d.inner.Exec(ctx, conn, query, args)
	}, nil)
}

func (d *suspendingDriver) ExecMany(ctx context.Context, conn SqlInterface, query string, argSets [][]any) (int64, error) {
	return await(ctx, func() (int64, error) {
		return d.inner.ExecMany(ctx, conn, query, argSets)
	}, nil)
}

func (d *suspendingDriver) ExecScript(ctx context.Context, conn SqlInterface, script string) error {
	_, err := await(ctx, func() (struct{}, error) {
		return struct{}{}, d.inner.ExecScript(ctx, conn, script)
	}, nil)
	return err
}

func (d *suspendingDriver) ErrorCode(err error) string {
	return d.inner.ErrorCode(err)
}

type outcome[T any] struct {
	value T
	err   error
}

// await runs fn on a goroutine and waits for it or for ctx to be done
//
// if ctx wins, release (when non-nil) is called with the late value once fn finishes
func await[T any](ctx context.Context, fn func() (T, error), release func(T)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	done := make(chan outcome[T], 1)
	go func() {
		v, err := fn()
		done <- outcome[T]{value: v, err: err}
	}()
	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		if release != nil {
			go func() {
				if o := <-done; o.err == nil {
					release(o.value)
				}
			}()
		}
		return zero, ctx.Err()
	}
}

type suspendingRows struct {
	inner DriverRows
	err   error

	// pending is closed when an abandoned (cancelled) fetch returns
	pending chan struct{}
}

var _ DriverRows = (*suspendingRows)(nil)

func (r *suspendingRows) ColumnTypes() ([]*sql.ColumnType, error) {
	return r.inner.ColumnTypes()
}

func (r *suspendingRows) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}
	finished := make(chan struct{})
	ok, err := await(ctx, func() (bool, error) {
		defer close(finished)
		return r.inner.Next(ctx), nil
	}, nil)
	if err != nil {
		r.err = err
		r.pending = finished
		return false
	}
	return ok
}

func (r *suspendingRows) Scan(dest ...any) error {
	return r.inner.Scan(dest...)
}

func (r *suspendingRows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.inner.Err()
}

// Close always closes the underlying rows, even when the last fetch was cancelled
//
// a cancelled fetch still running is waited for first - the underlying rows are never closed during a fetch
func (r *suspendingRows) Close() error {
	if r.pending != nil {
		<-r.pending
	}
	return r.inner.Close()
}
