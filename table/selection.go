package table

import (
	"fmt"
	"slices"
)

// Selection picks the attribute columns of a table. It is either an explicit
// list or "every column except" a set of names (usually the id column).
type Selection struct {
	explicit  []string
	allExcept []string
	all       bool
}

// Explicit selects exactly the named columns, in order.
func Explicit(names ...string) Selection {
	return Selection{explicit: slices.Clone(names)}
}

// AllExcept selects every column not named, in table order.
func AllExcept(names ...string) Selection {
	return Selection{allExcept: slices.Clone(names), all: true}
}

// IsAll reports whether the selection is of the AllExcept form.
func (s Selection) IsAll() bool { return s.all }

// Resolve turns the selection into a concrete column list for t.
func (s Selection) Resolve(t *Table) ([]string, error) {
	if s.all {
		var out []string
		for _, n := range t.Names() {
			if !slices.Contains(s.allExcept, n) {
				out = append(out, n)
			}
		}
		return out, nil
	}
	if len(s.explicit) == 0 {
		return nil, fmt.Errorf("table: empty column selection")
	}
	for _, n := range s.explicit {
		if _, ok := t.Column(n); !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, n)
		}
	}
	return slices.Clone(s.explicit), nil
}
