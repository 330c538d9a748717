package view

import "strings"

// Table is a header row plus one rendered row per data item.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable renders data with renderRow.
func NewTable[T any](headers []string, data []T, renderRow func(T) []string) Table {
	rows := make([][]string, 0, len(data))
	for _, item := range data {
		rows = append(rows, renderRow(item))
	}
	return Table{Headers: headers, Rows: rows}
}

// Empty reports whether the table has no rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// Filter keeps the items for which keep returns true.
func Filter[T any](data []T, keep func(T) bool) []T {
	out := make([]T, 0, len(data))
	for _, item := range data {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Contains is a case-insensitive substring match usable as a search filter.
// An empty needle matches everything.
func Contains(needle string, haystack ...string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return true
	}
	for _, h := range haystack {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}
