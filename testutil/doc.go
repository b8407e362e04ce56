// Package testutil provides testing utilities for vecsim.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe RNG and generators for random feature
// vectors and feature tables.
//
//	rng := testutil.NewRNG(4711)
//	tbl := rng.FloatTable("recipe_id", 100, 16)
package testutil
