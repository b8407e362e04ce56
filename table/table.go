package table

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrShape is returned when columns have different lengths.
	ErrShape = errors.New("table: columns have different lengths")
	// ErrDuplicateColumn is returned when two columns share a name.
	ErrDuplicateColumn = errors.New("table: duplicate column name")
	// ErrColumnNotFound is returned when a referenced column does not exist.
	ErrColumnNotFound = errors.New("table: column not found")
	// ErrValidation is the class of all data-quality errors (nulls, non-numeric data).
	ErrValidation = errors.New("table: validation failed")
)

// NullValuesError reports null values in a column where none are allowed.
type NullValuesError struct {
	Column string
	Count  int
}

func (e *NullValuesError) Error() string {
	return fmt.Sprintf("there are %d null(s) in %q when no nulls are allowed", e.Count, e.Column)
}

// Is makes NullValuesError match ErrValidation.
func (e *NullValuesError) Is(target error) bool { return target == ErrValidation }

// Table is an immutable collection of equally sized, uniquely named columns.
type Table struct {
	cols  []Column
	index map[string]int
	rows  int
}

// New creates a table. All columns must have the same length and unique,
// non-empty names.
func New(cols ...Column) (*Table, error) {
	t := &Table{
		cols:  make([]Column, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if c.Name() == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrShape, i)
		}
		if _, dup := t.index[c.Name()]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name())
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("%w: %q has %d rows, expected %d", ErrShape, c.Name(), c.Len(), t.rows)
		}
		t.index[c.Name()] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustNew is like New but panics on error. Intended for tests and fixtures.
func MustNew(cols ...Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// Names returns the column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name()
	}
	return names
}

// Columns returns the columns in table order.
func (t *Table) Columns() []Column { return slices.Clone(t.cols) }

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

// Select returns a table holding only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, n)
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// Drop returns a table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	cols := make([]Column, 0, len(t.cols))
	for _, c := range t.cols {
		if !slices.Contains(names, c.Name()) {
			cols = append(cols, c)
		}
	}
	return MustNew(cols...)
}

// With returns a table where c replaces the column of the same name, or is
// appended when no such column exists.
func (t *Table) With(c Column) (*Table, error) {
	cols := t.Columns()
	if i, ok := t.index[c.Name()]; ok {
		cols[i] = c
	} else {
		cols = append(cols, c)
	}
	return New(cols...)
}

// Take returns a table with the rows at the given indexes, in that order.
func (t *Table) Take(rows []int) (*Table, error) {
	for _, r := range rows {
		if r < 0 || r >= t.rows {
			return nil, fmt.Errorf("table: row %d out of range [0, %d)", r, t.rows)
		}
	}
	cols := make([]Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.take(rows)
	}
	return New(cols...)
}

// CheckNoNulls returns a *NullValuesError for the first named column that
// contains nulls.
func (t *Table) CheckNoNulls(names ...string) error {
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return fmt.Errorf("%w: %q", ErrColumnNotFound, n)
		}
		if cnt := c.NullCount(); cnt > 0 {
			return &NullValuesError{Column: n, Count: cnt}
		}
	}
	return nil
}

// FloatRows gathers the named numeric columns into row vectors.
// All rows share one backing array. Null or non-numeric cells yield an error.
func (t *Table) FloatRows(names ...string) ([][]float64, error) {
	cols := make([]Column, len(names))
	for k, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, n)
		}
		if !c.Kind().IsNumeric() {
			return nil, fmt.Errorf("%w: %q is %s", ErrValidation, n, c.Kind())
		}
		cols[k] = c
	}

	dim := len(cols)
	data := make([]float64, t.rows*dim)
	rows := make([][]float64, t.rows)
	for i := range t.rows {
		row := data[i*dim : (i+1)*dim : (i+1)*dim]
		for k, c := range cols {
			v, ok := c.Float64(i)
			if !ok {
				return nil, &NullValuesError{Column: c.Name(), Count: c.NullCount()}
			}
			row[k] = v
		}
		rows[i] = row
	}
	return rows, nil
}
