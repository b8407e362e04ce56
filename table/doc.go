// Package table provides the immutable, columnar tables that feed the
// similarity engine.
//
// A Table is a set of equally sized, typed columns (int, float, string, bool)
// with per-column null masks backed by roaring bitmaps. Tables are values:
// every transformation (Select, Drop, With, Take) returns a new Table and
// leaves the receiver untouched.
//
// # Usage
//
//	tbl, err := table.New(
//	    table.String("recipe_id", "a", "b", "c"),
//	    table.Int("spicy", 1, 0, 1),
//	    table.Float("rating", 4.5, 3.0, 5.0),
//	)
//	cols, _ := table.AllExcept("recipe_id").Resolve(tbl)
//	vectors, _ := tbl.FloatRows(cols...)
package table
