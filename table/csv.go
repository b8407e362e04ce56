package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

type csvOptions struct {
	comma      rune
	asString   []string
	allStrings bool
}

// CSVOption configures ReadCSV.
type CSVOption func(*csvOptions)

// WithComma sets the field delimiter (default ',').
func WithComma(r rune) CSVOption {
	return func(o *csvOptions) { o.comma = r }
}

// WithStringColumns keeps the named columns as strings regardless of content.
// Use it for identifier columns that happen to look numeric.
func WithStringColumns(names ...string) CSVOption {
	return func(o *csvOptions) { o.asString = append(o.asString, names...) }
}

// WithAllStrings disables type inference entirely.
func WithAllStrings() CSVOption {
	return func(o *csvOptions) { o.allStrings = true }
}

// ReadCSV reads a table from CSV with a header row.
//
// Column kinds are inferred from the non-empty cells, trying int, float and
// bool in turn before falling back to string. Empty cells become nulls.
func ReadCSV(r io.Reader, optFns ...CSVOption) (*Table, error) {
	o := csvOptions{comma: ','}
	for _, fn := range optFns {
		fn(&o)
	}

	cr := csv.NewReader(r)
	cr.Comma = o.comma
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("table: csv has no header")
		}
		return nil, fmt.Errorf("table: read csv header: %w", err)
	}

	cells := make([][]string, len(header))
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("table: read csv: %w", err)
		}
		for i := range header {
			cells[i] = append(cells[i], strings.TrimSpace(rec[i]))
		}
	}

	cols := make([]Column, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if o.allStrings || slices.Contains(o.asString, name) {
			cols[i] = stringColumn(name, cells[i])
			continue
		}
		cols[i] = inferColumn(name, cells[i])
	}
	return New(cols...)
}

func stringColumn(name string, cells []string) Column {
	var nulls []uint32
	for i, v := range cells {
		if v == "" {
			nulls = append(nulls, uint32(i))
		}
	}
	c := String(name, cells...)
	if len(nulls) > 0 {
		c = c.WithNulls(nulls...)
	}
	return c
}

func inferColumn(name string, cells []string) Column {
	var nulls []uint32
	for i, v := range cells {
		if v == "" {
			nulls = append(nulls, uint32(i))
		}
	}
	withNulls := func(c Column) Column {
		if len(nulls) > 0 {
			return c.WithNulls(nulls...)
		}
		return c
	}

	if ints, ok := parseAll(cells, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }); ok {
		return withNulls(Int(name, ints...))
	}
	if floats, ok := parseAll(cells, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }); ok {
		return withNulls(Float(name, floats...))
	}
	if bools, ok := parseAll(cells, strconv.ParseBool); ok {
		return withNulls(Bool(name, bools...))
	}
	return withNulls(String(name, cells...))
}

// parseAll parses every non-empty cell. An all-empty column is reported as
// not parseable so it falls through to string.
func parseAll[T any](cells []string, parse func(string) (T, error)) ([]T, bool) {
	out := make([]T, len(cells))
	seen := false
	for i, v := range cells {
		if v == "" {
			continue
		}
		p, err := parse(v)
		if err != nil {
			return nil, false
		}
		out[i] = p
		seen = true
	}
	return out, seen
}

// WriteCSV writes t as CSV with a header row. Nulls are written as empty cells.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return err
	}
	cols := t.Columns()
	rec := make([]string, len(cols))
	for i := range t.NumRows() {
		for k, c := range cols {
			rec[k] = c.Text(i)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
