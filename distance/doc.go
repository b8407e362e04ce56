// Package distance provides vector metric kernels over float64 feature rows.
//
// # Supported Metrics
//
//   - MetricCosine: cosine similarity, in [-1, 1]
//   - MetricEuclidean: Euclidean distance, in [0, +Inf)
//
// Metric is a plain string so configuration can carry any value; Provider
// rejects unknown selectors with an *UnsupportedMetricError.
//
// # Usage
//
//	fn, err := distance.Provider(distance.MetricCosine)
//	score := fn(a, b)
package distance
