package core

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	String Kind = "string"
	Int    Kind = "int"
	Float  Kind = "float"
	Bool   Kind = "bool"
)

type (
	// Kind is a declared target type for a column's values.
	Kind string

	// ColumnNotFoundError reports a type-map key that is not a column of
	// the table.
	ColumnNotFoundError struct {
		Column string
	}

	// CastError reports a column value that is not representable in the
	// requested kind.
	CastError struct {
		Column string
		Kind   Kind
		Value  string
		Row    int
	}
)

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q was not found in sheet", e.Column)
}

func (e *CastError) Error() string {
	return fmt.Sprintf("column %q could not be typecast as %s: value %q at row %d", e.Column, e.Kind, e.Value, e.Row)
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case String, Int, Float, Bool:
		return true
	}
	return false
}

// Cast verifies that every value of each named column is representable
// in the declared kind. Columns are checked in any order; the first
// failure is returned. A missing column fails before any value check.
func (t Table) Cast(types map[string]Kind) error {
	for name, kind := range types {
		col, ok := t.Column(name)
		if !ok {
			return &ColumnNotFoundError{Column: name}
		}
		if !kind.Valid() {
			return fmt.Errorf("unknown kind %q for column %q", kind, name)
		}
		for r, v := range col.Values {
			if err := castValue(v, kind); err != nil {
				return &CastError{Column: name, Kind: kind, Value: v, Row: r}
			}
		}
	}
	return nil
}

func castValue(v string, kind Kind) error {
	v = strings.TrimSpace(v)
	switch kind {
	case String:
		return nil
	case Int:
		_, err := strconv.ParseInt(v, 10, 64)
		return err
	case Float:
		_, err := strconv.ParseFloat(v, 64)
		return err
	case Bool:
		_, err := strconv.ParseBool(v)
		return err
	}
	return fmt.Errorf("unknown kind %q", kind)
}

// AsInt returns the column's values parsed as int64. Cast must have
// succeeded for the column first; parse errors are returned anyway.
func (c Column) AsInt() ([]int64, error) {
	out := make([]int64, len(c.Values))
	for i, v := range c.Values {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, &CastError{Column: c.Name, Kind: Int, Value: v, Row: i}
		}
		out[i] = n
	}
	return out, nil
}

// AsFloat returns the column's values parsed as float64.
func (c Column) AsFloat() ([]float64, error) {
	out := make([]float64, len(c.Values))
	for i, v := range c.Values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, &CastError{Column: c.Name, Kind: Float, Value: v, Row: i}
		}
		out[i] = f
	}
	return out, nil
}

// AsBool returns the column's values parsed as bool.
func (c Column) AsBool() ([]bool, error) {
	out := make([]bool, len(c.Values))
	for i, v := range c.Values {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, &CastError{Column: c.Name, Kind: Bool, Value: v, Row: i}
		}
		out[i] = b
	}
	return out, nil
}
