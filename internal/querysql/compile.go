// Package querysql compiles record filters to parameterized SQLite queries
// over JSON documents.
package querysql

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// validIdentifier matches SQL identifiers and JSON path segments that can
// be used without quoting.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Select reads the documents of one item type.
type Select struct {
	// Table holds the records. It needs item_type and rowid columns.
	Table string
	// Column holds the JSON document.
	Column string
	// ItemType restricts the rows.
	ItemType string
	// Filter maps dotted document paths to the value they must hold.
	Filter map[string]any
}

// Compile converts s to SQL and its parameters. Filter entries with a
// plain path and a scalar value become json_extract predicates; the others
// are left out, so the rows are a superset of the matching records and
// callers must still check the filter on every row.
//
// Every query is ordered by rowid. All values are parameterized.
func Compile(s Select) (string, []any, error) {
	if !validIdentifier.MatchString(s.Table) {
		return "", nil, fmt.Errorf("invalid table name %q", s.Table)
	}
	if !validIdentifier.MatchString(s.Column) {
		return "", nil, fmt.Errorf("invalid column name %q", s.Column)
	}

	where := []string{"item_type = ?"}
	params := []any{s.ItemType}

	// Sorted for a stable statement text.
	paths := make([]string, 0, len(s.Filter))
	for path := range s.Filter {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		jsonPath, ok := compilePath(path)
		if !ok {
			continue
		}
		param, ok := scalarParam(s.Filter[path])
		if !ok {
			continue
		}
		where = append(where, fmt.Sprintf("json_extract(%s, ?) = ?", s.Column))
		params = append(params, jsonPath, param)
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY rowid",
		s.Column, s.Table, strings.Join(where, " AND "))
	return sql, params, nil
}

// compilePath turns a dotted path into a JSON path ("a.b" -> "$.a.b").
func compilePath(path string) (string, bool) {
	for _, seg := range strings.Split(path, ".") {
		if !validIdentifier.MatchString(seg) {
			return "", false
		}
	}
	return "$." + path, true
}

// scalarParam returns the SQL value json_extract yields for v. JSON
// booleans come back as the integers 1 and 0.
func scalarParam(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return t, true
	}
	return nil, false
}
