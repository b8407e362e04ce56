// Package rank assigns per-source neighbor ranks to an edge list.
//
// Records are grouped by source and ordered by score. Records with identical
// scores are ordered by a fresh uniform-random permutation on every call, so
// "the" top neighbor among equals is never an artifact of input order.
package rank

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/edges"
)

// RankColumn is the name of the rank field.
const RankColumn = "rank"

// ErrNonOrderableScore is the class of errors for scores that cannot be
// ordered (NaN).
var ErrNonOrderableScore = errors.New("rank: score cannot be ordered")

// ErrNilTable is returned when AddRankColumn is given no edge table.
var ErrNilTable = errors.New("rank: nil edge table")

// NonOrderableScoreError names the first record with a non-orderable score.
type NonOrderableScoreError struct {
	Source string
	Target string
}

func (e *NonOrderableScoreError) Error() string {
	return fmt.Sprintf("rank: score of (%q, %q) is NaN and cannot be ordered", e.Source, e.Target)
}

// Is makes NonOrderableScoreError match ErrNonOrderableScore.
func (e *NonOrderableScoreError) Is(target error) bool { return target == ErrNonOrderableScore }

// Order is the score direction used for ranking.
type Order int

const (
	// Descending ranks the highest score first.
	Descending Order = iota
	// Ascending ranks the lowest score first.
	Ascending
)

func (o Order) String() string {
	switch o {
	case Descending:
		return "descending"
	case Ascending:
		return "ascending"
	default:
		return fmt.Sprintf("Unknown(%d)", int(o))
	}
}

// OrderFor returns the order that puts the most similar neighbor first:
// Ascending for distance metrics, Descending otherwise.
func OrderFor(m distance.Metric) Order {
	if m.IsDistance() {
		return Ascending
	}
	return Descending
}

type options struct {
	order   Order
	rand    *rand.Rand
	workers int
}

// Option configures AddRankColumn.
type Option func(*options)

// WithOrder sets the score direction (default Descending).
func WithOrder(o Order) Option {
	return func(opts *options) { opts.order = o }
}

// WithRand makes tie-breaking reproducible by drawing from r. Without it
// each call seeds a new generator.
func WithRand(r *rand.Rand) Option {
	return func(opts *options) { opts.rand = r }
}

// WithWorkers ranks groups on up to n goroutines (default 1).
func WithWorkers(n int) Option {
	return func(opts *options) { opts.workers = n }
}

// RankedEdge is an edge with its 1-based rank within its source group.
type RankedEdge struct {
	edges.Edge
	Rank int
}

type span struct{ start, end int }

// Table is an immutable ranked edge list. Records are grouped by source,
// in order of first appearance, and sorted by rank within a group.
type Table struct {
	idColumn string
	rows     []RankedEdge
	sources  []string
	groups   map[string]span
}

// AddRankColumn groups t by source, orders each group by score and assigns
// ranks 1..len(group). Ties get a uniform-random order, drawn independently
// on each call.
//
// A NaN score fails with a *NonOrderableScoreError.
func AddRankColumn(t *edges.Table, optFns ...Option) (*Table, error) {
	if t == nil {
		return nil, ErrNilTable
	}
	o := options{order: Descending, workers: 1}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.workers <= 0 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	r := o.rand
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	all := t.Edges()
	for _, e := range all {
		if math.IsNaN(e.Score) {
			return nil, &NonOrderableScoreError{Source: e.Source, Target: e.Target}
		}
	}

	var sources []string
	members := make(map[string][]int)
	for i, e := range all {
		if _, ok := members[e.Source]; !ok {
			sources = append(sources, e.Source)
		}
		members[e.Source] = append(members[e.Source], i)
	}

	// Seeds are drawn up front so the result does not depend on scheduling.
	seeds := make([][2]uint64, len(sources))
	for i := range seeds {
		seeds[i] = [2]uint64{r.Uint64(), r.Uint64()}
	}

	ranked := make([][]RankedEdge, len(sources))
	var g errgroup.Group
	g.SetLimit(o.workers)
	for gi, src := range sources {
		g.Go(func() error {
			gr := rand.New(rand.NewPCG(seeds[gi][0], seeds[gi][1]))
			ranked[gi] = rankGroup(all, members[src], o.order, gr)
			return nil
		})
	}
	_ = g.Wait()

	out := &Table{
		idColumn: t.IDColumn(),
		rows:     make([]RankedEdge, 0, len(all)),
		sources:  sources,
		groups:   make(map[string]span, len(sources)),
	}
	for gi, src := range sources {
		start := len(out.rows)
		out.rows = append(out.rows, ranked[gi]...)
		out.groups[src] = span{start: start, end: len(out.rows)}
	}
	return out, nil
}

func rankGroup(all []edges.Edge, idx []int, order Order, r *rand.Rand) []RankedEdge {
	type keyed struct {
		edge edges.Edge
		key  uint64
	}
	items := make([]keyed, len(idx))
	for k, i := range idx {
		items[k] = keyed{edge: all[i], key: r.Uint64()}
	}

	slices.SortFunc(items, func(a, b keyed) int {
		c := cmp.Compare(a.edge.Score, b.edge.Score)
		if order == Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})

	out := make([]RankedEdge, len(items))
	for k, it := range items {
		out[k] = RankedEdge{Edge: it.edge, Rank: k + 1}
	}
	return out
}

// NewTable rebuilds a ranked table from records, e.g. after decoding.
// Records are regrouped by source and sorted by rank.
func NewTable(idColumn string, rows []RankedEdge) (*Table, error) {
	var sources []string
	members := make(map[string][]RankedEdge)
	for _, r := range rows {
		if _, ok := members[r.Source]; !ok {
			sources = append(sources, r.Source)
		}
		members[r.Source] = append(members[r.Source], r)
	}

	out := &Table{
		idColumn: idColumn,
		rows:     make([]RankedEdge, 0, len(rows)),
		sources:  sources,
		groups:   make(map[string]span, len(sources)),
	}
	for _, src := range sources {
		group := members[src]
		slices.SortFunc(group, func(a, b RankedEdge) int { return cmp.Compare(a.Rank, b.Rank) })
		for k, r := range group {
			if r.Rank != k+1 {
				return nil, fmt.Errorf("rank: source %q has rank %d at position %d, ranks must be dense from 1", src, r.Rank, k+1)
			}
		}
		start := len(out.rows)
		out.rows = append(out.rows, group...)
		out.groups[src] = span{start: start, end: len(out.rows)}
	}
	return out, nil
}

// IDColumn returns the identifier column name.
func (t *Table) IDColumn() string { return t.idColumn }

// Columns returns the column names in record order.
func (t *Table) Columns() []string {
	return []string{t.idColumn + "_1", t.idColumn + "_2", edges.ScoreColumn, RankColumn}
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.rows) }

// At returns record i.
func (t *Table) At(i int) RankedEdge { return t.rows[i] }

// Rows returns a copy of all records.
func (t *Table) Rows() []RankedEdge { return slices.Clone(t.rows) }

// Sources returns the source ids in order of first appearance.
func (t *Table) Sources() []string { return slices.Clone(t.sources) }

// Group returns the ranked records of one source, best first.
func (t *Table) Group(source string) []RankedEdge {
	s, ok := t.groups[source]
	if !ok {
		return nil
	}
	return slices.Clone(t.rows[s.start:s.end])
}

// Neighbors returns the top-k records of source, best first. When
// excludeSelf is set the (source, source) record is skipped. k <= 0 returns
// the whole group.
func (t *Table) Neighbors(source string, k int, excludeSelf bool) []RankedEdge {
	group := t.Group(source)
	out := make([]RankedEdge, 0, len(group))
	for _, r := range group {
		if excludeSelf && r.Target == source {
			continue
		}
		out = append(out, r)
		if k > 0 && len(out) == k {
			break
		}
	}
	return out
}
