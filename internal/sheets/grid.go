package sheets

import (
	"fmt"
	"strings"

	"sheetlink/internal/core"
)

// Grid arithmetic between tables and 1-based sheet coordinates. The
// remote API numbers rows and columns from 1 and the sheet's row 1 is
// the header row, so table data row r lives in sheet row r+2. All the
// index shifting in the module is concentrated here.

// GridSize returns the rectangle a table occupies in a worksheet,
// including the header row. A zero-row table still occupies one row.
func GridSize(t core.Table) (rows, cols int) {
	return t.Rows() + 1, t.Cols()
}

// CellAt returns the value for the 1-based sheet coordinate (row, col):
// the column name for row 1, the table cell (row-2, col-1) otherwise.
func CellAt(t core.Table, row, col int) string {
	if row == 1 {
		return t.Headers()[col-1]
	}
	return t.Cell(row-2, col-1)
}

// WorksheetIndex converts a caller-facing 1-based worksheet number to
// the 0-based index the remote API expects.
func WorksheetIndex(n int) (int, error) {
	if n < 1 {
		return 0, &WorksheetError{Worksheet: n}
	}
	return n - 1, nil
}

// ColumnLetter returns the A1 column label for a 1-based column number
// (1 → A, 26 → Z, 27 → AA).
func ColumnLetter(col int) string {
	var b strings.Builder
	for col > 0 {
		col--
		b.WriteByte(byte('A' + col%26))
		col /= 26
	}
	out := []byte(b.String())
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// A1 returns the A1-notation range for a rectangle in 1-based
// coordinates, quoted with the worksheet title.
func A1(title string, startRow, startCol, endRow, endCol int) string {
	return fmt.Sprintf("'%s'!%s%d:%s%d",
		strings.ReplaceAll(title, "'", "''"),
		ColumnLetter(startCol), startRow,
		ColumnLetter(endCol), endRow)
}

// TableRange returns the A1 range a table's write covers, header row
// included.
func TableRange(title string, t core.Table) string {
	rows, cols := GridSize(t)
	return A1(title, 1, 1, rows, cols)
}

// ValuesMatrix renders a table as the row-major matrix the batch update
// submits: header row first, then data rows in table order.
func ValuesMatrix(t core.Table) [][]interface{} {
	rows, cols := GridSize(t)
	out := make([][]interface{}, rows)
	for r := 1; r <= rows; r++ {
		row := make([]interface{}, cols)
		for c := 1; c <= cols; c++ {
			row[c-1] = CellAt(t, r, c)
		}
		out[r-1] = row
	}
	return out
}

// TableFromValues builds a table from a values matrix as returned by
// the remote API: row 0 is the header row, empty-string headers are
// dropped and the remaining ones keep their order and source column.
// Short rows are padded with empty strings; rows wider than the header
// row are truncated.
func TableFromValues(values [][]interface{}) (core.Table, error) {
	if len(values) == 0 {
		return core.NewTable()
	}

	type headerCol struct {
		name string
		col  int
	}
	var headers []headerCol
	for i, v := range values[0] {
		name := cellString(v)
		if name == "" {
			continue
		}
		headers = append(headers, headerCol{name: name, col: i})
	}

	columns := make([]core.Column, len(headers))
	for i, h := range headers {
		columns[i] = core.Column{Name: h.name, Values: make([]string, 0, len(values)-1)}
	}
	for _, row := range values[1:] {
		for i, h := range headers {
			var v string
			if h.col < len(row) {
				v = cellString(row[h.col])
			}
			columns[i].Values = append(columns[i].Values, v)
		}
	}
	return core.NewTable(columns...)
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
