package testutil

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/hupe1980/vecsim/table"
)

// RNG wraps a seeded PCG generator. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed uint64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() uint64 {
	return r.seed
}

// Rand returns a new, independent *rand.Rand derived from r. Use it where
// an API takes a generator for reproducible runs.
func (r *RNG) Rand() *rand.Rand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return rand.New(rand.NewPCG(r.rand.Uint64(), r.rand.Uint64()))
}

// IntN returns a non-negative pseudo-random number in [0,n).
func (r *RNG) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.IntN(n)
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num, dimensions int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dimensions)
	vectors := make([][]float64, num)
	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float64()
		}
		vectors[i] = vec
	}
	return vectors
}

// OneHotVectors generates binary vectors with values in {0, 1}, the shape
// produced by one-hot encoding.
func (r *RNG) OneHotVectors(num, dimensions int) [][]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	vectors := make([][]int64, num)
	for i := range vectors {
		vec := make([]int64, dimensions)
		for j := range vec {
			vec[j] = int64(r.rand.IntN(2))
		}
		vectors[i] = vec
	}
	return vectors
}

// FloatTable builds a feature table with a string id column ("e0", "e1",
// ...) and float feature columns "f0".."f{dim-1}" filled with uniform values.
func (r *RNG) FloatTable(idColumn string, rows, dim int) *table.Table {
	vectors := r.UniformVectors(rows, dim)
	cols := []table.Column{table.String(idColumn, IDs(rows)...)}
	for k := range dim {
		vals := make([]float64, rows)
		for i := range rows {
			vals[i] = vectors[i][k]
		}
		cols = append(cols, table.Float(fmt.Sprintf("f%d", k), vals...))
	}
	return table.MustNew(cols...)
}

// OneHotTable is like FloatTable but with 0/1 integer features.
func (r *RNG) OneHotTable(idColumn string, rows, dim int) *table.Table {
	vectors := r.OneHotVectors(rows, dim)
	cols := []table.Column{table.String(idColumn, IDs(rows)...)}
	for k := range dim {
		vals := make([]int64, rows)
		for i := range rows {
			vals[i] = vectors[i][k]
		}
		cols = append(cols, table.Int(fmt.Sprintf("f%d", k), vals...))
	}
	return table.MustNew(cols...)
}

// IDs returns n entity ids "e0".."e{n-1}".
func IDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("e%d", i)
	}
	return ids
}
