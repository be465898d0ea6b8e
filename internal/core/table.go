package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateColumn = errors.New("duplicate column name")
	ErrEmptyColumnName = errors.New("empty column name")
	ErrEmptyTable      = errors.New("table has no columns")
	ErrRowWidth        = errors.New("row width does not match column count")
)

type (
	// Column is a named, ordered sequence of raw cell values.
	Column struct {
		Name   string
		Values []string
	}

	// Table is the unit of exchange with a worksheet: ordered named
	// columns with equal-length value slices. Row 0 of the table is the
	// first data row; the header row only exists in the remote sheet.
	Table struct {
		columns []Column
		index   map[string]int
	}
)

// NewTable builds a table from ordered columns. Column names must be
// non-empty and unique; all columns must have the same length.
func NewTable(columns ...Column) (Table, error) {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		if strings.TrimSpace(col.Name) == "" {
			return Table{}, ErrEmptyColumnName
		}
		if _, ok := index[col.Name]; ok {
			return Table{}, fmt.Errorf("%w: %q", ErrDuplicateColumn, col.Name)
		}
		if len(col.Values) != len(columns[0].Values) {
			return Table{}, fmt.Errorf("column %q has %d values, want %d", col.Name, len(col.Values), len(columns[0].Values))
		}
		index[col.Name] = i
	}
	return Table{columns: columns, index: index}, nil
}

// NewEmptyTable builds a table with the given headers and no rows.
func NewEmptyTable(headers ...string) (Table, error) {
	columns := make([]Column, len(headers))
	for i, h := range headers {
		columns[i] = Column{Name: h}
	}
	return NewTable(columns...)
}

// Rows returns the number of data rows (the header row is not counted).
func (t Table) Rows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return len(t.columns[0].Values)
}

// Cols returns the number of columns.
func (t Table) Cols() int {
	return len(t.columns)
}

// Headers returns the column names in order.
func (t Table) Headers() []string {
	out := make([]string, len(t.columns))
	for i, col := range t.columns {
		out[i] = col.Name
	}
	return out
}

// Cell returns the value at data row r, column c (both 0-based).
func (t Table) Cell(r, c int) string {
	return t.columns[c].Values[r]
}

// Row returns data row r as an ordered slice of values.
func (t Table) Row(r int) []string {
	out := make([]string, len(t.columns))
	for c := range t.columns {
		out[c] = t.columns[c].Values[r]
	}
	return out
}

// Column returns the named column and whether it exists.
func (t Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// AppendRow adds one data row. The row must have exactly one value per
// column.
func (t *Table) AppendRow(values ...string) error {
	if len(t.columns) == 0 {
		return ErrEmptyTable
	}
	if len(values) != len(t.columns) {
		return fmt.Errorf("%w: got %d, want %d", ErrRowWidth, len(values), len(t.columns))
	}
	for c := range t.columns {
		t.columns[c].Values = append(t.columns[c].Values, values[c])
	}
	return nil
}

// Equal reports whether two tables have identical headers, order and
// values.
func (t Table) Equal(other Table) bool {
	if t.Cols() != other.Cols() || t.Rows() != other.Rows() {
		return false
	}
	for c := range t.columns {
		if t.columns[c].Name != other.columns[c].Name {
			return false
		}
		for r := range t.columns[c].Values {
			if t.columns[c].Values[r] != other.columns[c].Values[r] {
				return false
			}
		}
	}
	return true
}
