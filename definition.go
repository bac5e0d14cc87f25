package sqlbook

import (
	"cmp"
	"maps"
	"slices"
	"strings"
)

// QueryDefinition is a single named statement parsed from annotated sql source
type QueryDefinition struct {
	// Name is the query name, unique within its namespace
	Name string
	// Kind is the operation kind decided by the name annotation suffix
	Kind OperationKind
	// SQL is the statement text (placeholders still in dialect-neutral ":name" form)
	SQL string
	// Doc is the documentation comment that followed the name annotation
	Doc string
	// Dialect is the dialect tag ("postgres", "mysql", "sqlite") - empty if the query is dialect neutral
	Dialect string
	// RecordType is the record type name declared by a "record_class" annotation
	RecordType string
	// Source is the name of the source the query was parsed from
	Source string
	// Line is the line number of the name annotation within the source
	Line int
}

// DefaultVariants is the default mapping of dialect name to query name prefix
var DefaultVariants = Variants{
	DialectPostgres: "pg_",
	DialectMySQL:    "my_",
	DialectSQLite:   "sqlite_",
}

// Variants is a map of dialect name to the query name prefix used for dialect specific variants of a query
//
// can be passed as an option to FromString or Load
type Variants map[string]string

// dialectOf returns the dialect whose variant prefix the name carries (the longest prefix wins)
func (v Variants) dialectOf(name string) string {
	for _, dialect := range v.ordered() {
		if prefix := v[dialect]; prefix != "" && strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			return dialect
		}
	}
	return ""
}

// ordered returns the dialect names by descending prefix length, then by name
func (v Variants) ordered() []string {
	result := slices.Collect(maps.Keys(v))
	slices.SortFunc(result, func(a, b string) int {
		if c := cmp.Compare(len(v[b]), len(v[a])); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return result
}
