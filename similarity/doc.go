// Package similarity computes dense pairwise similarity (or distance)
// matrices over feature tables.
//
// An Engine is built from a *table.Table holding one identifier column and
// numeric feature columns. Construction validates the table; Generate
// applies the configured metric to every ordered pair of rows and returns
// the matrix both raw and labeled by entity id.
//
//	eng, err := similarity.New(tbl,
//	    similarity.WithIDColumn("recipe_id"),
//	    similarity.WithMetric(distance.MetricCosine),
//	)
//	if err != nil {
//	    return err // ErrInvalidTable, *NullValuesError, *NonNumericColumnError
//	}
//	res, err := eng.Generate(ctx)
//	score, _ := res.Labeled.Lookup("r1", "r2")
//
// The matrix is O(N²) in memory and compute. Callers bound N; an optional
// resource.Controller turns the memory bound into backpressure.
package similarity
