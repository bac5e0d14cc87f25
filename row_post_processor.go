package sqlbook

import (
	"context"
)

// RowPostProcessor is an interface that can be passed as an option to FromString or Load
//
// Any RowPostProcessor(s) are executed, in order, on every result row after it is scanned and before
// the record (if any) is built
type RowPostProcessor interface {
	PostProcess(ctx context.Context, conn SqlInterface, row *Row) error
}

// RowPostProcessorFunc is a func that implements RowPostProcessor
type RowPostProcessorFunc func(ctx context.Context, conn SqlInterface, row *Row) error

func (f RowPostProcessorFunc) PostProcess(ctx context.Context, conn SqlInterface, row *Row) error {
	return f(ctx, conn, row)
}
