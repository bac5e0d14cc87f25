package sqlbook

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ColumnScanner converts the raw driver value of a column into the value placed in a Row
type ColumnScanner func(src any) (value any, err error)

// ColumnScanners maps column names to the ColumnScanner used for that column
//
// can be passed as an option to FromString or Load
type ColumnScanners map[string]ColumnScanner

// UseDecimals is an option that can be passed to FromString or Load to read
// DECIMAL, NUMERIC and FLOAT columns as decimal.Decimal values (default is false)
type UseDecimals bool

// BoolColumn is a ColumnScanner that reads a column as a bool
//
// MySql stores BOOL columns as TINYINT, so this is mostly needed there
func BoolColumn(src any) (any, error) {
	switch v := src.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		return strconv.ParseBool(v)
	case []byte:
		return strconv.ParseBool(string(v))
	}
	return nil, fmt.Errorf("type %T is not a bool", src)
}

// columnsInfo holds the per-column converters of a result set, resolved once from its column types
type columnsInfo struct {
	names      []string
	converters []ColumnScanner
}

// columnsReader is the per-scan destination for one result set
type columnsReader struct {
	count    int
	names    []string
	values   []any
	scanArgs []any
}

func newColumnsInfo(rows DriverRows, useDecimals bool, scanners ColumnScanners) (*columnsInfo, error) {
	cts, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	ci := &columnsInfo{
		names:      make([]string, len(cts)),
		converters: make([]ColumnScanner, len(cts)),
	}
	for i, ct := range cts {
		ci.names[i] = ct.Name()
		if s := scanners[ct.Name()]; s != nil {
			ci.converters[i] = s
		} else {
			ci.converters[i] = converterFor(strings.ToUpper(ct.DatabaseTypeName()), ct.ScanType(), useDecimals)
		}
	}
	return ci, nil
}

// converterFor picks the conversion for a column from its database type name, falling back to its scan type
func converterFor(dbType string, scanType reflect.Type, useDecimals bool) ColumnScanner {
	switch dbType {
	case "JSON", "JSONB":
		return jsonValue
	case "DECIMAL", "NUMERIC", "DOUBLE":
		if useDecimals {
			return decimalValue
		}
	default:
		if useDecimals && strings.HasPrefix(dbType, "FLOAT") {
			return decimalValue
		}
	}
	if useDecimals {
		switch scanType {
		case reflect.TypeFor[float32](), reflect.TypeFor[float64](), reflect.TypeFor[sql.NullFloat64]():
			return decimalValue
		}
	}
	return rawValue
}

func (ci *columnsInfo) reader() *columnsReader {
	count := len(ci.names)
	r := &columnsReader{
		count:    count,
		names:    ci.names,
		values:   make([]any, count),
		scanArgs: make([]any, count),
	}
	for i, convert := range ci.converters {
		r.scanArgs[i] = &columnValue{reader: r, index: i, convert: convert}
	}
	return r
}

// columnValue is the sql.Scanner handed to rows.Scan for a single column
type columnValue struct {
	reader  *columnsReader
	index   int
	convert ColumnScanner
}

func (c *columnValue) Scan(src any) error {
	v, err := c.convert(src)
	if err == nil {
		c.reader.values[c.index] = v
	}
	return err
}

// rawValue keeps the driver value, except []byte (which the driver may reuse) becomes a string
func rawValue(src any) (any, error) {
	if b, ok := src.([]byte); ok {
		return string(b), nil
	}
	return src, nil
}

func decimalValue(src any) (any, error) {
	switch v := src.(type) {
	case int64:
		return decimal.New(v, 0), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		return decimal.NewFromString(unquote(v))
	case []byte:
		return decimal.NewFromString(unquote(string(v)))
	}
	return src, nil
}

// unquote strips the quotes some drivers put around numeric text
func unquote(s string) string {
	if len(s) > 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func jsonValue(src any) (any, error) {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return src, nil
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}
