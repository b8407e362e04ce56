package similarity

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/resource"
	"github.com/hupe1980/vecsim/table"
	"github.com/hupe1980/vecsim/testutil"
)

func fourRowTable() *table.Table {
	return table.MustNew(
		table.Int("id", 1, 2, 3, 4),
		table.Int("a", 1, 0, 3, 5),
		table.Int("b", 0, 1, 4, 2),
	)
}

func TestNew_Validation(t *testing.T) {
	t.Run("NilTable", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrInvalidTable)
	})

	t.Run("MissingIDColumn", func(t *testing.T) {
		_, err := New(fourRowTable())
		assert.ErrorIs(t, err, ErrInvalidTable)
	})

	t.Run("NoFeatures", func(t *testing.T) {
		_, err := New(table.MustNew(table.String("recipe_id", "a")))
		assert.ErrorIs(t, err, ErrInvalidTable)
	})

	t.Run("NullsInFeatures", func(t *testing.T) {
		tbl := table.MustNew(
			table.String("recipe_id", "a", "b", "c"),
			table.Int("x", 1, 2, 3),
			table.Float("y", 1, 2, 3).WithNulls(0, 2),
		)
		_, err := New(tbl)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)

		var nv *NullValuesError
		require.True(t, errors.As(err, &nv))
		assert.Equal(t, "y", nv.Column)
		assert.Equal(t, 2, nv.Count)
	})

	t.Run("NoNulls", func(t *testing.T) {
		tbl := table.MustNew(
			table.String("recipe_id", "a", "b"),
			table.Int("x", 1, 2),
		)
		_, err := New(tbl)
		assert.NoError(t, err)
	})

	t.Run("TextualNumbersRejected", func(t *testing.T) {
		tbl := table.MustNew(
			table.String("recipe_id", "a", "b"),
			table.String("x", "1", "2.5"),
		)
		_, err := New(tbl)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)

		var nn *NonNumericColumnError
		require.True(t, errors.As(err, &nn))
		assert.Equal(t, "x", nn.Column)
		assert.Equal(t, table.KindString, nn.Kind)
	})

	t.Run("BoolRejected", func(t *testing.T) {
		tbl := table.MustNew(
			table.String("recipe_id", "a", "b"),
			table.Bool("x", true, false),
		)
		_, err := New(tbl)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("IntAndFloatAccepted", func(t *testing.T) {
		ints := table.MustNew(table.String("recipe_id", "a", "b"), table.Int("x", 1, 2))
		floats := table.MustNew(table.String("recipe_id", "a", "b"), table.Float("x", 1, 2))
		_, err := New(ints)
		assert.NoError(t, err)
		_, err = New(floats)
		assert.NoError(t, err)
	})

	t.Run("NullID", func(t *testing.T) {
		tbl := table.MustNew(
			table.String("recipe_id", "a", "b").WithNulls(1),
			table.Int("x", 1, 2),
		)
		_, err := New(tbl)
		assert.ErrorIs(t, err, ErrInvalidTable)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		tbl := table.MustNew(
			table.String("recipe_id", "a", "a"),
			table.Int("x", 1, 2),
		)
		_, err := New(tbl)
		assert.ErrorIs(t, err, ErrInvalidTable)
	})

	t.Run("UnknownMetricDeferred", func(t *testing.T) {
		eng, err := New(fourRowTable(), WithIDColumn("id"), WithMetric("test"))
		require.NoError(t, err)

		_, err = eng.Generate(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, distance.ErrUnsupportedMetric)

		var um *distance.UnsupportedMetricError
		require.True(t, errors.As(err, &um))
		assert.Equal(t, distance.Metric("test"), um.Metric)
	})

	t.Run("ExplicitFeatures", func(t *testing.T) {
		tbl := table.MustNew(
			table.String("recipe_id", "a", "b"),
			table.Int("x", 1, 2),
			table.String("label", "u", "v"),
		)
		eng, err := New(tbl, WithFeatures(table.Explicit("x")))
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, eng.FeatureColumns())
	})
}

func TestGenerate_FourRows(t *testing.T) {
	for _, metric := range []distance.Metric{distance.MetricCosine, distance.MetricEuclidean} {
		t.Run(metric.String(), func(t *testing.T) {
			eng, err := New(fourRowTable(), WithIDColumn("id"), WithMetric(metric))
			require.NoError(t, err)

			res, err := eng.Generate(context.Background())
			require.NoError(t, err)

			rows, cols := res.Matrix.Dims()
			assert.Equal(t, 4, rows)
			assert.Equal(t, 4, cols)
			assert.Equal(t, 4, res.Labeled.Len())
			assert.Equal(t, []string{"1", "2", "3", "4"}, res.Labeled.Labels())
			assert.Same(t, res.Matrix, res.Labeled.Matrix())

			assert.Equal(t, metric, res.Metadata.Metric)
			assert.Equal(t, 4, res.Metadata.Rows)
			assert.Equal(t, 2, res.Metadata.Dimension)
			assert.Equal(t, []string{"a", "b"}, res.Metadata.FeatureColumns)
		})
	}
}

func TestGenerate_KnownValues(t *testing.T) {
	tbl := table.MustNew(
		table.String("recipe_id", "x", "y", "z"),
		table.Float("a", 1, 0, 3),
		table.Float("b", 0, 1, 4),
	)

	t.Run("Cosine", func(t *testing.T) {
		eng, err := New(tbl)
		require.NoError(t, err)
		res, err := eng.Generate(context.Background())
		require.NoError(t, err)

		v, ok := res.Labeled.Lookup("x", "y")
		require.True(t, ok)
		assert.InDelta(t, 0.0, v, 1e-12)

		v, _ = res.Labeled.Lookup("x", "z")
		assert.InDelta(t, 0.6, v, 1e-12)
	})

	t.Run("Euclidean", func(t *testing.T) {
		eng, err := New(tbl, WithMetric(distance.MetricEuclidean))
		require.NoError(t, err)
		res, err := eng.Generate(context.Background())
		require.NoError(t, err)

		v, _ := res.Labeled.Lookup("x", "y")
		assert.InDelta(t, math.Sqrt2, v, 1e-12)

		v, _ = res.Labeled.Lookup("y", "z")
		assert.InDelta(t, math.Sqrt(9+9), v, 1e-12)
	})
}

func TestGenerate_Properties(t *testing.T) {
	rng := testutil.NewRNG(4711)

	for _, n := range []int{1, 2, 7, 33} {
		tbl := rng.FloatTable("recipe_id", n, 5)

		for _, metric := range []distance.Metric{distance.MetricCosine, distance.MetricEuclidean} {
			eng, err := New(tbl, WithMetric(metric), WithWorkers(3))
			require.NoError(t, err)

			res, err := eng.Generate(context.Background())
			require.NoError(t, err)

			rows, cols := res.Matrix.Dims()
			require.Equal(t, n, rows)
			require.Equal(t, n, cols)

			for i := range n {
				for j := range n {
					assert.Equal(t, res.Matrix.At(i, j), res.Matrix.At(j, i), "symmetry %s [%d][%d]", metric, i, j)
				}
				if metric == distance.MetricCosine {
					assert.InDelta(t, 1.0, res.Matrix.At(i, i), 1e-9)
				} else {
					assert.Equal(t, 0.0, res.Matrix.At(i, i))
				}
			}
		}
	}
}

func TestGenerate_ParallelMatchesSerial(t *testing.T) {
	tbl := testutil.NewRNG(99).FloatTable("recipe_id", 50, 8)

	serial, err := New(tbl, WithWorkers(1))
	require.NoError(t, err)
	parallel, err := New(tbl, WithWorkers(8))
	require.NoError(t, err)

	a, err := serial.Generate(context.Background())
	require.NoError(t, err)
	b, err := parallel.Generate(context.Background())
	require.NoError(t, err)

	assert.True(t, a.Matrix.Equal(b.Matrix))
}

func TestGenerate_ZeroNormRows(t *testing.T) {
	tbl := table.MustNew(
		table.String("recipe_id", "a", "b", "c"),
		table.Int("x", 1, 0, 2),
		table.Int("y", 1, 0, 0),
	)
	eng, err := New(tbl)
	require.NoError(t, err)

	res, err := eng.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []uint32{1}, res.Metadata.ZeroNormRows.ToArray())
	assert.Equal(t, 0.0, res.Matrix.At(1, 1))
	assert.Equal(t, 0.0, res.Matrix.At(0, 1))
}

func TestGenerate_ExtremeMagnitudes(t *testing.T) {
	tbl := table.MustNew(
		table.String("recipe_id", "a", "b", "c"),
		table.Float("x", 1e200, 1e200, 1e-200),
		table.Float("y", 3e200, 1e200, 2e-200),
	)
	eng, err := New(tbl)
	require.NoError(t, err)

	res, err := eng.Generate(context.Background())
	require.NoError(t, err)

	for i := range 3 {
		assert.InDelta(t, 1.0, res.Matrix.At(i, i), 1e-12, "self-similarity of row %d", i)
	}
	assert.InDelta(t, 4/math.Sqrt(20), res.Matrix.At(0, 1), 1e-12)
	assert.InDelta(t, 7/math.Sqrt(50), res.Matrix.At(0, 2), 1e-12)
	assert.True(t, mat.Equal(res.Matrix, res.Matrix.T()))
	assert.True(t, res.Metadata.ZeroNormRows.IsEmpty())
}

func TestGenerate_Canceled(t *testing.T) {
	eng, err := New(testutil.NewRNG(1).FloatTable("recipe_id", 20, 4))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = eng.Generate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerate_ResourceController(t *testing.T) {
	tbl := testutil.NewRNG(1).FloatTable("recipe_id", 10, 4)

	t.Run("WithinLimit", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MemoryLimitBytes: resource.MatrixBytes(10)})
		eng, err := New(tbl, WithResourceController(rc))
		require.NoError(t, err)

		_, err = eng.Generate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(0), rc.MemoryUsage())
	})

	t.Run("OverLimit", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MemoryLimitBytes: resource.MatrixBytes(9)})
		eng, err := New(tbl, WithResourceController(rc))
		require.NoError(t, err)

		_, err = eng.Generate(context.Background())
		assert.ErrorIs(t, err, resource.ErrExceedsLimit)
	})
}

func TestGenerate_Repeatable(t *testing.T) {
	eng, err := New(fourRowTable(), WithIDColumn("id"))
	require.NoError(t, err)

	a, err := eng.Generate(context.Background())
	require.NoError(t, err)
	b, err := eng.Generate(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, a.Matrix, b.Matrix)
	assert.True(t, a.Matrix.Equal(b.Matrix))
}
