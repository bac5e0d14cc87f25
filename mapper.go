package sqlbook

import (
	"encoding/json"
	"reflect"
	"sync"
)

// Row is a single result row, the generic record produced when a query has no record type
//
// column order is preserved - Values[i] is the value of Columns[i]
type Row struct {
	Columns []string
	Values  []any
}

// Map returns the row as a map of value by column name
func (r Row) Map() map[string]any {
	result := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		if i < len(r.Values) {
			result[c] = r.Values[i]
		}
	}
	return result
}

// Get returns the value of the named column
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// At returns the value at the column index (or nil if out of range)
func (r Row) At(index int) any {
	if index < 0 || index >= len(r.Values) {
		return nil
	}
	return r.Values[index]
}

func (r Row) Len() int {
	return len(r.Values)
}

// Equal reports whether the row values equal the given values, positionally
func (r Row) Equal(values ...any) bool {
	if len(values) != len(r.Values) {
		return false
	}
	for i, v := range values {
		if !reflect.DeepEqual(v, r.Values[i]) {
			return false
		}
	}
	return true
}

func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// rowMapper turns driver rows into records
//
// column info is read once per query (the first time it is executed) and a fresh reader is used per result set
type rowMapper struct {
	useDecimals bool
	scanners    ColumnScanners
	record      RecordFactory
	mutex       sync.RWMutex
	columnsInfo *columnsInfo
}

func (m *rowMapper) mapColumns(rows DriverRows) (cr *columnsReader, err error) {
	m.mutex.RLock()
	if m.columnsInfo != nil {
		m.mutex.RUnlock()
		return m.columnsInfo.reader(), nil
	}
	m.mutex.RUnlock()
	var ci *columnsInfo
	if ci, err = newColumnsInfo(rows, m.useDecimals, m.scanners); err != nil {
		return nil, err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.columnsInfo == nil {
		m.columnsInfo = ci
	}
	return m.columnsInfo.reader(), nil
}

// scan reads the current row into the reader (driver side)
func (m *rowMapper) scan(rows DriverRows, cr *columnsReader) (Row, error) {
	if err := rows.Scan(cr.scanArgs...); err != nil {
		return Row{}, err
	}
	values := make([]any, cr.count)
	copy(values, cr.values)
	return Row{Columns: cr.names, Values: values}, nil
}

// build constructs the record for a scanned row
func (m *rowMapper) build(row Row) (any, error) {
	if m.record == nil {
		return row, nil
	}
	return m.record(row)
}
