package similarity

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense, row-major n×n float64 matrix backed by a gonum
// mat.Dense. It satisfies mat.Matrix, so gonum routines accept it directly.
type Matrix struct {
	n     int
	dense *mat.Dense // nil when n == 0
}

var _ mat.Matrix = (*Matrix)(nil)

// NewMatrix allocates a zeroed n×n matrix.
func NewMatrix(n int) *Matrix {
	if n <= 0 {
		return &Matrix{}
	}
	return &Matrix{n: n, dense: mat.NewDense(n, n, nil)}
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (rows, cols int) { return m.n, m.n }

// At returns the value at row i, column j.
func (m *Matrix) At(i, j int) float64 { return m.dense.At(i, j) }

// T returns the transpose view of m.
func (m *Matrix) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// Set stores v at row i, column j.
func (m *Matrix) Set(i, j int, v float64) { m.dense.Set(i, j, v) }

// Row returns a view of row i. The slice must not be modified.
func (m *Matrix) Row(i int) []float64 {
	row := m.dense.RawRowView(i)
	return row[:len(row):len(row)]
}

// Dense returns the backing gonum matrix, or nil for an empty matrix.
func (m *Matrix) Dense() *mat.Dense { return m.dense }

// Equal reports whether both matrices have identical dimensions and equal
// cells.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.n != o.n {
		return false
	}
	if m.n == 0 {
		return true
	}
	return mat.Equal(m.dense, o.dense)
}

// LabeledMatrix is a square matrix whose rows and columns are both labeled
// by entity id, in the same order.
type LabeledMatrix struct {
	ids    []string
	index  map[string]int
	matrix *Matrix
}

// NewLabeledMatrix attaches labels to m. Labels must be unique and match
// the matrix dimension.
func NewLabeledMatrix(ids []string, m *Matrix) (*LabeledMatrix, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil matrix", ErrMatrixShape)
	}
	if len(ids) != m.n {
		return nil, fmt.Errorf("%w: %d labels for %d×%d matrix", ErrMatrixShape, len(ids), m.n, m.n)
	}
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrMatrixShape, id)
		}
		index[id] = i
	}
	return &LabeledMatrix{ids: slices.Clone(ids), index: index, matrix: m}, nil
}

// Labels returns the entity ids in axis order.
func (l *LabeledMatrix) Labels() []string { return slices.Clone(l.ids) }

// Label returns the entity id at axis position i.
func (l *LabeledMatrix) Label(i int) string { return l.ids[i] }

// Len returns the number of entities.
func (l *LabeledMatrix) Len() int { return len(l.ids) }

// Matrix returns the underlying numeric matrix.
func (l *LabeledMatrix) Matrix() *Matrix { return l.matrix }

// Index returns the axis position of id.
func (l *LabeledMatrix) Index(id string) (int, bool) {
	i, ok := l.index[id]
	return i, ok
}

// Lookup returns the score stored at [source][target].
func (l *LabeledMatrix) Lookup(source, target string) (float64, bool) {
	i, ok := l.index[source]
	if !ok {
		return 0, false
	}
	j, ok := l.index[target]
	if !ok {
		return 0, false
	}
	return l.matrix.At(i, j), true
}
