package sqlbook

import "fmt"

// OperationKind determines how a query is executed and how its result is shaped
//
// the kind of a query is decided by the suffix of its name annotation and never changes
type OperationKind int

const (
	// SelectMany executes and fetches all rows (no suffix)
	SelectMany OperationKind = iota
	// SelectOne executes and fetches the first row, or nil if there are no rows (suffix "^")
	SelectOne
	// SelectValue executes and fetches the first column of the first row, or nil (suffix "$")
	SelectValue
	// SelectCursor executes and leaves the cursor open for lazy iteration (suffix "&")
	SelectCursor
	// InsertUpdateDelete executes and returns the affected row count (suffix "!")
	InsertUpdateDelete
	// InsertReturning executes and returns the generated key or the returned row (suffix "<!")
	InsertReturning
	// BulkExecute executes once per parameter set (suffix "*!")
	BulkExecute
	// ExecuteScript executes raw multi-statement text without parameter binding (suffix "#")
	ExecuteScript
)

var kindSuffixes = map[OperationKind]string{
	SelectMany:         "",
	SelectOne:          "^",
	SelectValue:        "$",
	SelectCursor:       "&",
	InsertUpdateDelete: "!",
	InsertReturning:    "<!",
	BulkExecute:        "*!",
	ExecuteScript:      "#",
}

var kindNames = map[OperationKind]string{
	SelectMany:         "select-many",
	SelectOne:          "select-one",
	SelectValue:        "select-value",
	SelectCursor:       "select-cursor",
	InsertUpdateDelete: "insert-update-delete",
	InsertReturning:    "insert-returning",
	BulkExecute:        "bulk-execute",
	ExecuteScript:      "execute-script",
}

func (k OperationKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("OperationKind(%d)", int(k))
}

// Suffix returns the annotation suffix token for the kind
func (k OperationKind) Suffix() string {
	return kindSuffixes[k]
}

// IsSelect reports whether the kind fetches rows
func (k OperationKind) IsSelect() bool {
	return k == SelectMany || k == SelectOne || k == SelectValue || k == SelectCursor
}

// KindForSuffix returns the kind for an annotation suffix token
func KindForSuffix(suffix string) (OperationKind, bool) {
	for k, s := range kindSuffixes {
		if s == suffix {
			return k, true
		}
	}
	return 0, false
}
