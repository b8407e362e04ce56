package similarity

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/table"
)

// Engine computes the full pairwise metric matrix of a feature table.
//
// The engine validates its input once, at construction. It keeps only the
// extracted feature vectors and its configuration, so Generate can be called
// repeatedly and concurrently.
type Engine struct {
	opts     options
	ids      []string
	features []string
	vectors  [][]float64
}

// Metadata describes a Generate run. It is informational only.
type Metadata struct {
	Metric         distance.Metric
	IDColumn       string
	FeatureColumns []string
	Rows           int
	Dimension      int
	// ZeroNormRows holds the rows whose feature vector is all zeros.
	// Their cosine score against every row is 0.
	ZeroNormRows *roaring.Bitmap
	Elapsed      time.Duration
}

// Result holds the artifacts of a Generate run.
type Result struct {
	// Labeled is the matrix labeled by entity id on both axes.
	Labeled *LabeledMatrix
	// Matrix is the raw numeric matrix (same backing data as Labeled).
	Matrix   *Matrix
	Metadata Metadata
}

// New validates tbl and creates an Engine.
//
// Construction fails with ErrInvalidTable when tbl is nil, lacks the id
// column or feature columns, or has null or duplicate ids. It fails with a
// *NullValuesError or *NonNumericColumnError (both matching ErrValidation)
// when a feature column holds nulls or non-numeric data.
func New(tbl *table.Table, optFns ...Option) (*Engine, error) {
	o := applyOptions(optFns)

	if tbl == nil {
		return nil, fmt.Errorf("%w: table is nil", ErrInvalidTable)
	}
	idCol, ok := tbl.Column(o.idColumn)
	if !ok {
		return nil, fmt.Errorf("%w: id column %q not found", ErrInvalidTable, o.idColumn)
	}

	sel := table.AllExcept(o.idColumn)
	if o.features != nil {
		sel = *o.features
	}
	features, err := sel.Resolve(tbl)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: no feature columns", ErrInvalidTable)
	}

	if err := tbl.CheckNoNulls(features...); err != nil {
		return nil, err
	}
	for _, name := range features {
		c, _ := tbl.Column(name)
		if !c.Kind().IsNumeric() {
			return nil, &NonNumericColumnError{Column: name, Kind: c.Kind()}
		}
	}

	ids, err := entityIDs(idCol)
	if err != nil {
		return nil, err
	}

	vectors, err := tbl.FloatRows(features...)
	if err != nil {
		return nil, err
	}

	return &Engine{
		opts:     o,
		ids:      ids,
		features: features,
		vectors:  vectors,
	}, nil
}

func entityIDs(c table.Column) ([]string, error) {
	if n := c.NullCount(); n > 0 {
		return nil, fmt.Errorf("%w: %d null(s) in id column %q", ErrInvalidTable, n, c.Name())
	}
	ids := make([]string, c.Len())
	seen := make(map[string]struct{}, c.Len())
	for i := range ids {
		id := c.Text(i)
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q in column %q", ErrInvalidTable, id, c.Name())
		}
		seen[id] = struct{}{}
		ids[i] = id
	}
	return ids, nil
}

// IDs returns the entity ids in row order.
func (e *Engine) IDs() []string { return append([]string(nil), e.ids...) }

// IDColumn returns the configured identifier column.
func (e *Engine) IDColumn() string { return e.opts.idColumn }

// Metric returns the configured metric selector.
func (e *Engine) Metric() distance.Metric { return e.opts.metric }

// FeatureColumns returns the resolved feature columns.
func (e *Engine) FeatureColumns() []string { return append([]string(nil), e.features...) }

// Generate computes the N×N matrix of the configured metric over every
// ordered pair of rows, including each row with itself.
//
// An unsupported metric fails here with a *distance.UnsupportedMetricError.
// Only the upper triangle is computed; the lower triangle mirrors it, so the
// result is exactly symmetric.
func (e *Engine) Generate(ctx context.Context) (*Result, error) {
	start := time.Now()

	fn, err := distance.Provider(e.opts.metric)
	if err != nil {
		return nil, err
	}

	n := len(e.vectors)
	release, err := e.opts.controller.ReserveMatrix(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("reserve matrix memory: %w", err)
	}
	defer release()

	m := NewMatrix(n)
	workers := min(e.opts.workers, max(n, 1))

	g, gctx := errgroup.WithContext(ctx)
	// Strided rows keep the triangular workload balanced.
	for w := range workers {
		g.Go(func() error {
			for i := w; i < n; i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				vi := e.vectors[i]
				for j := i; j < n; j++ {
					v := fn(vi, e.vectors[j])
					m.Set(i, j, v)
					m.Set(j, i, v)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	labeled, err := NewLabeledMatrix(e.ids, m)
	if err != nil {
		return nil, err
	}

	zero := roaring.New()
	for i, v := range e.vectors {
		if !slices.ContainsFunc(v, func(x float64) bool { return x != 0 }) {
			zero.Add(uint32(i))
		}
	}

	elapsed := time.Since(start)
	e.opts.logger.DebugContext(ctx, "generate completed",
		"metric", e.opts.metric,
		"rows", n,
		"dimension", len(e.features),
		"zero_norm_rows", zero.GetCardinality(),
		"elapsed", elapsed,
	)

	return &Result{
		Labeled: labeled,
		Matrix:  m,
		Metadata: Metadata{
			Metric:         e.opts.metric,
			IDColumn:       e.opts.idColumn,
			FeatureColumns: e.FeatureColumns(),
			Rows:           n,
			Dimension:      len(e.features),
			ZeroNormRows:   zero,
			Elapsed:        elapsed,
		},
	}, nil
}
