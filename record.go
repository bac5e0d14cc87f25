package sqlbook

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// RecordFactory constructs a record from a result row
//
// a RecordFactory is registered by record type name (see Records) and is used for queries
// that declare "-- record_class: <name>"
type RecordFactory func(row Row) (any, error)

// Records is a map of RecordFactory by record type name
//
// can be passed as an option to FromString or Load - a query declaring a record type with no
// registered factory fails the build with *UnknownRecordTypeError
type Records map[string]RecordFactory

const sqlTag = "sql"

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// UseTagName is an option that can be passed to NewStructRecord
// and determines the field tag name used for field column mappings
//
// If this option is not passed, the default "sql" tag is used
type UseTagName string

// FieldColumnNamer is an interface that can be passed as an option to NewStructRecord
// and is used to derive the column name to use for a given field
//
// If no namer is satisfied, the name is deduced from the "sql" tag for the field - and then from the field name
type FieldColumnNamer interface {
	// ColumnName returns the column name to use for the given struct field
	//
	// The returned name is only used if second return arg is true
	ColumnName(structType reflect.Type, fld reflect.StructField) (string, bool)
}

// ErrorOnUnMappedColumns is an option that can be passed to NewStructRecord
// and determines whether an error is raised when there are columns that are not mapped to fields
type ErrorOnUnMappedColumns bool

// NewStructRecord creates a RecordFactory that fills a new `T` from each row
//
// columns are matched to exported fields by tag (default "sql"), or by field name ignoring case and underscores
func NewStructRecord[T any](options ...any) (RecordFactory, error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() != reflect.Struct {
		return nil, errors.New("struct record can only be used with struct types")
	}
	sr := &structRecord{
		rt:    rt,
		cache: map[string][]fieldTarget{},
	}
	tagName := sqlTag
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case UseTagName:
				if option != "" {
					tagName = string(option)
				}
			case FieldColumnNamer:
				sr.namers = append(sr.namers, option)
			case ErrorOnUnMappedColumns:
				sr.errorOnUnMapped = bool(option)
			default:
				return nil, fmt.Errorf("unknown option type: %T", o)
			}
		}
	}
	sr.namers = append(sr.namers, &defaultFieldColumnNamer{tagName: tagName})
	fields := map[string][]int{}
	if err := buildFieldMapRecursive(sr.namers, rt, nil, fields); err != nil {
		return nil, err
	}
	sr.fields = fields
	return func(row Row) (any, error) {
		return sr.build(row)
	}, nil
}

// StructRecord is the same as NewStructRecord except that it panics on error
func StructRecord[T any](options ...any) RecordFactory {
	result, err := NewStructRecord[T](options...)
	if err != nil {
		panic(err)
	}
	return result
}

type fieldTarget struct {
	column string
	index  []int
}

type structRecord struct {
	rt              reflect.Type
	namers          []FieldColumnNamer
	errorOnUnMapped bool
	fields          map[string][]int
	mu              sync.RWMutex
	cache           map[string][]fieldTarget
}

func (sr *structRecord) build(row Row) (any, error) {
	targets, err := sr.targets(row.Columns)
	if err != nil {
		return nil, err
	}
	rv := reflect.New(sr.rt).Elem()
	for i, t := range targets {
		if t.index == nil || i >= len(row.Values) {
			continue
		}
		fv := fieldByIndexAlloc(rv, t.index)
		if err = assignValue(fv, row.Values[i]); err != nil {
			return nil, fmt.Errorf("column %q: %w", t.column, err)
		}
	}
	return rv.Interface(), nil
}

func (sr *structRecord) targets(columns []string) ([]fieldTarget, error) {
	key := strings.Join(columns, "\x00")
	sr.mu.RLock()
	result, ok := sr.cache[key]
	sr.mu.RUnlock()
	if ok {
		return result, nil
	}
	result = make([]fieldTarget, len(columns))
	var unmapped []string
	for i, col := range columns {
		result[i].column = col
		if index, ok := sr.fields[col]; ok {
			result[i].index = index
		} else if index, ok = sr.fields[looseName(col)]; ok {
			result[i].index = index
		} else {
			unmapped = append(unmapped, col)
		}
	}
	if sr.errorOnUnMapped && len(unmapped) > 0 {
		return nil, fmt.Errorf("%s: unmapped column(s): %s", sr.rt.Name(), `"`+strings.Join(unmapped, `","`)+`"`)
	}
	sr.mu.Lock()
	sr.cache[key] = result
	sr.mu.Unlock()
	return result, nil
}

// looseName is the key under which fields are also registered - lower case without underscores
func looseName(name string) string {
	return "~" + strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

func buildFieldMapRecursive(namers []FieldColumnNamer, rt reflect.Type, parentIndex []int, result map[string][]int) (err error) {
	for i := 0; err == nil && i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		index := append([]int{}, parentIndex...)
		index = append(index, f.Index...)
		ft := f.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && !isScannable(ft) {
			err = buildFieldMapRecursive(namers, ft, index, result)
			continue
		}
		if tag, ok := f.Tag.Lookup(sqlTag); ok && tag == "-" {
			continue
		}
		useColName := ""
		named := false
		for _, namer := range namers {
			if useColName, named = namer.ColumnName(rt, f); named {
				break
			}
		}
		if named && useColName != "" && useColName != "-" {
			if _, exists := result[useColName]; exists {
				return fmt.Errorf("duplicate column mapping %q", useColName)
			}
			result[useColName] = index
		}
		if loose := looseName(f.Name); result[loose] == nil {
			result[loose] = index
		}
	}
	return err
}

// fieldByIndexAlloc is reflect.Value.FieldByIndex allocating nil embedded pointers along the way
func fieldByIndexAlloc(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

func assignValue(dst reflect.Value, value any) error {
	if value == nil {
		dst.SetZero()
		return nil
	}
	if dst.CanAddr() && dst.Addr().Type().Implements(scannerType) {
		return dst.Addr().Interface().(sql.Scanner).Scan(value)
	}
	if dst.Kind() == reflect.Ptr {
		p := reflect.New(dst.Type().Elem())
		if err := assignValue(p.Elem(), value); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}
	src := reflect.ValueOf(value)
	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case dst.Kind() == reflect.String:
		switch v := value.(type) {
		case []byte:
			dst.SetString(string(v))
		case fmt.Stringer:
			dst.SetString(v.String())
		default:
			if src.Kind() != reflect.String {
				return fmt.Errorf("cannot assign %T to %s", value, dst.Type())
			}
			dst.SetString(src.String())
		}
	case dst.Kind() == reflect.Bool && src.Kind() != reflect.Bool:
		b, err := BoolColumn(value)
		if err != nil {
			return err
		}
		dst.SetBool(b.(bool))
	case src.Kind() == reflect.String && dst.Kind() != reflect.String:
		return fmt.Errorf("cannot assign %T to %s", value, dst.Type())
	case src.Type().ConvertibleTo(dst.Type()):
		dst.Set(src.Convert(dst.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", value, dst.Type())
	}
	return nil
}

func isScannable(t reflect.Type) bool {
	if t == nil {
		return false
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return true
	}
	// time.Time isn't a sql.Scanner but drivers scan it
	if t.PkgPath() == "time" && t.Name() == "Time" {
		return true
	}
	return t.Implements(scannerType) || reflect.PointerTo(t).Implements(scannerType)
}

type defaultFieldColumnNamer struct {
	tagName string
}

var _ FieldColumnNamer = &defaultFieldColumnNamer{}

func (d *defaultFieldColumnNamer) ColumnName(_ reflect.Type, fld reflect.StructField) (string, bool) {
	tag, ok := fld.Tag.Lookup(d.tagName)
	if !ok || tag == "-" || tag == "" {
		return "", false
	}
	return tag, true
}
