package table

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
)

// Kind is the physical type of a column.
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// IsNumeric reports whether values of this kind can be used as vector components.
func (k Kind) IsNumeric() bool {
	return k == KindInt || k == KindFloat
}

// Column is an immutable, typed column with an optional null mask.
//
// Only the slice matching Kind is populated. Null rows keep a zero value in
// the backing slice and are marked in the mask.
type Column struct {
	name   string
	kind   Kind
	ints   []int64
	floats []float64
	strs   []string
	bools  []bool
	nulls  *roaring.Bitmap
}

// Int creates an integer column.
func Int(name string, values ...int64) Column {
	return Column{name: name, kind: KindInt, ints: slices.Clone(values)}
}

// Float creates a floating-point column.
func Float(name string, values ...float64) Column {
	return Column{name: name, kind: KindFloat, floats: slices.Clone(values)}
}

// String creates a string column.
func String(name string, values ...string) Column {
	return Column{name: name, kind: KindString, strs: slices.Clone(values)}
}

// Bool creates a boolean column.
func Bool(name string, values ...bool) Column {
	return Column{name: name, kind: KindBool, bools: slices.Clone(values)}
}

// WithNulls returns a copy of c with the given rows marked as null.
// Rows outside [0, Len()) are ignored.
func (c Column) WithNulls(rows ...uint32) Column {
	mask := roaring.New()
	if c.nulls != nil {
		mask = c.nulls.Clone()
	}
	n := uint32(c.Len())
	for _, r := range rows {
		if r < n {
			mask.Add(r)
		}
	}
	c.nulls = mask
	return c
}

// WithName returns a copy of c under a new name.
func (c Column) WithName(name string) Column {
	c.name = name
	return c
}

// Name returns the column name.
func (c Column) Name() string { return c.name }

// Kind returns the column kind.
func (c Column) Kind() Kind { return c.kind }

// Len returns the number of rows.
func (c Column) Len() int {
	switch c.kind {
	case KindInt:
		return len(c.ints)
	case KindFloat:
		return len(c.floats)
	case KindString:
		return len(c.strs)
	case KindBool:
		return len(c.bools)
	default:
		return 0
	}
}

// IsNull reports whether row i is null.
func (c Column) IsNull(i int) bool {
	return c.nulls != nil && c.nulls.Contains(uint32(i))
}

// NullCount returns the number of null rows.
func (c Column) NullCount() int {
	if c.nulls == nil {
		return 0
	}
	return int(c.nulls.GetCardinality())
}

// Nulls returns a copy of the null mask. The result is never nil.
func (c Column) Nulls() *roaring.Bitmap {
	if c.nulls == nil {
		return roaring.New()
	}
	return c.nulls.Clone()
}

// Float64 returns row i as float64. ok is false for null rows and
// non-numeric kinds.
func (c Column) Float64(i int) (v float64, ok bool) {
	if c.IsNull(i) {
		return 0, false
	}
	switch c.kind {
	case KindInt:
		return float64(c.ints[i]), true
	case KindFloat:
		return c.floats[i], true
	default:
		return 0, false
	}
}

// Text renders row i as a string. Null rows render as "".
func (c Column) Text(i int) string {
	if c.IsNull(i) {
		return ""
	}
	switch c.kind {
	case KindInt:
		return strconv.FormatInt(c.ints[i], 10)
	case KindFloat:
		return strconv.FormatFloat(c.floats[i], 'g', -1, 64)
	case KindString:
		return c.strs[i]
	case KindBool:
		return strconv.FormatBool(c.bools[i])
	default:
		return ""
	}
}

// Ints returns a copy of the integer values.
func (c Column) Ints() []int64 { return slices.Clone(c.ints) }

// Floats returns a copy of the float values.
func (c Column) Floats() []float64 { return slices.Clone(c.floats) }

// Strings returns a copy of the string values.
func (c Column) Strings() []string { return slices.Clone(c.strs) }

// Bools returns a copy of the boolean values.
func (c Column) Bools() []bool { return slices.Clone(c.bools) }

// AsString converts c into a string column, keeping its null mask.
func (c Column) AsString() Column {
	if c.kind == KindString {
		return c
	}
	n := c.Len()
	out := make([]string, n)
	for i := range n {
		out[i] = c.Text(i)
	}
	s := Column{name: c.name, kind: KindString, strs: out}
	if c.nulls != nil {
		s.nulls = c.nulls.Clone()
	}
	return s
}

// MapStrings applies fn to every non-null value of a string column.
// Non-string columns are converted with AsString first.
func (c Column) MapStrings(fn func(string) string) Column {
	s := c.AsString()
	out := make([]string, len(s.strs))
	for i, v := range s.strs {
		if s.IsNull(i) {
			continue
		}
		out[i] = fn(v)
	}
	s.strs = out
	return s
}

// take returns the rows at the given indexes.
func (c Column) take(rows []int) Column {
	out := Column{name: c.name, kind: c.kind}
	switch c.kind {
	case KindInt:
		out.ints = make([]int64, len(rows))
		for i, r := range rows {
			out.ints[i] = c.ints[r]
		}
	case KindFloat:
		out.floats = make([]float64, len(rows))
		for i, r := range rows {
			out.floats[i] = c.floats[r]
		}
	case KindString:
		out.strs = make([]string, len(rows))
		for i, r := range rows {
			out.strs[i] = c.strs[r]
		}
	case KindBool:
		out.bools = make([]bool, len(rows))
		for i, r := range rows {
			out.bools[i] = c.bools[r]
		}
	}
	if c.nulls != nil && !c.nulls.IsEmpty() {
		mask := roaring.New()
		for i, r := range rows {
			if c.nulls.Contains(uint32(r)) {
				mask.Add(uint32(i))
			}
		}
		out.nulls = mask
	}
	return out
}
