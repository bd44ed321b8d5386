// Package ingest reads tabular lead files for bulk import. CSV and
// XLSX files are parsed into a Table whose header row names the
// columns, so callers address fields by name regardless of column
// order.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a parsed tabular file. The header row is lowercased and
// kept as a column index; Rows holds the data rows in file order.
type Table struct {
	columns map[string]int
	Rows    [][]string
}

func newTable(header []string, rows [][]string) *Table {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return &Table{columns: columns, Rows: rows}
}

// Field returns the trimmed value of the named column in row, or ""
// when the column is absent or the row is short.
func (t *Table) Field(row []string, name string) string {
	i, ok := t.columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// HasColumn reports whether the header named the column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Open parses the file at path, dispatching on its extension.
func Open(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return OpenCSV(path)
	case ".xlsx":
		return OpenXLSX(path)
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}
