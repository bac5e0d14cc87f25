package sqlbook

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrKindMismatch is returned when a typed call method does not match the kind of the query
	ErrKindMismatch = errors.New("operation does not match query kind")
	// ErrNoQuery is returned by lookups for a name that does not exist
	ErrNoQuery = errors.New("no such query")
	// ErrNoConnection is returned when a query is called with a nil connection
	ErrNoConnection = errors.New("no connection")
	// ErrInvalidArgs is returned when call arguments are not one of the supported shapes
	ErrInvalidArgs = errors.New("invalid query arguments")
)

// MalformedAnnotationError is returned when an annotation in sql source cannot be understood
type MalformedAnnotationError struct {
	Source string
	Line   int
	Text   string
	Reason string
}

func (e *MalformedAnnotationError) Error() string {
	return fmt.Sprintf("%s:%d: malformed annotation %q: %s", sourceName(e.Source), e.Line, e.Text, e.Reason)
}

// DuplicateNameError is returned when a name occurs twice in the same namespace
type DuplicateNameError struct {
	Name   string
	Source string
	Line   int
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s:%d: duplicate name %q", sourceName(e.Source), e.Line, e.Name)
}

// UnknownRecordTypeError is returned at build time when a query declares a record type that has no registered factory
type UnknownRecordTypeError struct {
	Query      string
	RecordType string
}

func (e *UnknownRecordTypeError) Error() string {
	return fmt.Sprintf("query %q: no record factory registered for %q", e.Query, e.RecordType)
}

// MissingParameterError is returned when a placeholder referenced by a query has no supplied value
type MissingParameterError struct {
	Query string
	Name  string
}

func (e *MissingParameterError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("missing parameter %q", e.Name)
	}
	return fmt.Sprintf("query %q: missing parameter %q", e.Query, e.Name)
}

// UnusedParameterError is returned (when ErrorOnUnused is in effect) for supplied values that bind to no placeholder
type UnusedParameterError struct {
	Query string
	Names []string
}

func (e *UnusedParameterError) Error() string {
	list := `"` + strings.Join(e.Names, `","`) + `"`
	if e.Query == "" {
		return "unused parameter(s): " + list
	}
	return fmt.Sprintf("query %q: unused parameter(s): %s", e.Query, list)
}

// UnsupportedOperationError is returned when a query kind requires a capability the bound driver lacks
type UnsupportedOperationError struct {
	Query      string
	Kind       OperationKind
	Driver     string
	Capability string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("query %q (%s): driver %q does not support %s", e.Query, e.Kind, e.Driver, e.Capability)
}

// DriverError wraps any error raised by the underlying database client
//
// it is tagged with the query name, kind and the driver operation that raised it
type DriverError struct {
	Query string
	Kind  OperationKind
	// Op is the driver operation that failed (query, exec, exec-many, script, fetch, close)
	Op string
	// Code is the database specific error code (SQLSTATE, MySQL error number etc.) if the driver could determine one
	Code string
	Err  error
}

func (e *DriverError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("query %q (%s) %s failed [%s]: %v", e.Query, e.Kind, e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("query %q (%s) %s failed: %v", e.Query, e.Kind, e.Op, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

func sourceName(s string) string {
	if s == "" {
		return "<string>"
	}
	return s
}
