package sqlbook

// Limiter is an interface that can be passed as an option to FromString or Load
//
// and is used to limit the number of rows read by select-many queries and cursors
type Limiter interface {
	// LimitReached should return true if the rowCount arg exceeds the maximum
	LimitReached(rowCount int) bool
}

// MaxRows is a Limiter that stops reading after the given number of rows
type MaxRows int

var _ Limiter = MaxRows(0)

func (m MaxRows) LimitReached(rowCount int) bool {
	return rowCount > int(m)
}

type nullLimiter struct{}

var _ Limiter = (*nullLimiter)(nil)

func (n *nullLimiter) LimitReached(rowCount int) bool {
	return false
}

var defaultLimiter Limiter = &nullLimiter{}
