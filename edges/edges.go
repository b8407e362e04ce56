// Package edges converts labeled similarity matrices into edge lists
// ("long format") and back.
package edges

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/vecsim/similarity"
)

// ScoreColumn is the name of the score field in the long format.
const ScoreColumn = "similarity"

var (
	// ErrInvalidMatrix is returned for a nil or malformed input matrix.
	ErrInvalidMatrix = errors.New("edges: invalid matrix")
	// ErrIncompleteEdgeList is returned by Pivot when some cells are missing.
	ErrIncompleteEdgeList = errors.New("edges: edge list does not cover every cell")
	// ErrDuplicateEdge is returned by Pivot when a (source, target) pair repeats.
	ErrDuplicateEdge = errors.New("edges: duplicate edge")
)

// Edge is a single (source, target, score) record.
type Edge struct {
	Source string
	Target string
	Score  float64
}

// Table is an immutable edge list.
type Table struct {
	idColumn string
	edges    []Edge
}

// NewTable creates an edge table. idColumn names the entity identifier and
// drives the column names (<id>_1, <id>_2).
func NewTable(idColumn string, edges []Edge) *Table {
	return &Table{idColumn: idColumn, edges: slices.Clone(edges)}
}

// IDColumn returns the identifier column name.
func (t *Table) IDColumn() string { return t.idColumn }

// SourceColumn returns the source column name, "<id>_1".
func (t *Table) SourceColumn() string { return t.idColumn + "_1" }

// TargetColumn returns the target column name, "<id>_2".
func (t *Table) TargetColumn() string { return t.idColumn + "_2" }

// Columns returns the column names in record order.
func (t *Table) Columns() []string {
	return []string{t.SourceColumn(), t.TargetColumn(), ScoreColumn}
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.edges) }

// At returns record i.
func (t *Table) At(i int) Edge { return t.edges[i] }

// Edges returns a copy of all records.
func (t *Table) Edges() []Edge { return slices.Clone(t.edges) }

// Convert flattens m into one record per cell, row-major. Values are copied
// unchanged and the diagonal is kept, so an n×n matrix yields n² records.
func Convert(m *similarity.LabeledMatrix, idColumn string) (*Table, error) {
	if m == nil || m.Matrix() == nil {
		return nil, fmt.Errorf("%w: nil matrix", ErrInvalidMatrix)
	}
	rows, cols := m.Matrix().Dims()
	if rows != cols || rows != m.Len() {
		return nil, fmt.Errorf("%w: %d labels for %d×%d matrix", ErrInvalidMatrix, m.Len(), rows, cols)
	}

	out := make([]Edge, 0, rows*cols)
	for i := range rows {
		src := m.Label(i)
		for j, v := range m.Matrix().Row(i) {
			out = append(out, Edge{Source: src, Target: m.Label(j), Score: v})
		}
	}
	return &Table{idColumn: idColumn, edges: out}, nil
}

// Pivot rebuilds the square labeled matrix from an edge list. Axis order
// follows the first appearance of each source. Every (source, target) pair
// over the source set must occur exactly once.
func Pivot(t *Table) (*similarity.LabeledMatrix, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil table", ErrIncompleteEdgeList)
	}

	var ids []string
	index := make(map[string]int)
	for _, e := range t.edges {
		if _, ok := index[e.Source]; !ok {
			index[e.Source] = len(ids)
			ids = append(ids, e.Source)
		}
	}

	n := len(ids)
	if len(t.edges) != n*n {
		return nil, fmt.Errorf("%w: %d records for %d entities", ErrIncompleteEdgeList, len(t.edges), n)
	}

	m := similarity.NewMatrix(n)
	seen := make([]bool, n*n)
	for _, e := range t.edges {
		i := index[e.Source]
		j, ok := index[e.Target]
		if !ok {
			return nil, fmt.Errorf("%w: target %q is never a source", ErrIncompleteEdgeList, e.Target)
		}
		if seen[i*n+j] {
			return nil, fmt.Errorf("%w: (%q, %q)", ErrDuplicateEdge, e.Source, e.Target)
		}
		seen[i*n+j] = true
		m.Set(i, j, e.Score)
	}
	return similarity.NewLabeledMatrix(ids, m)
}
