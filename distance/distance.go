package distance

import (
	"errors"
	"fmt"
	"math"

	"github.com/viterin/vek"
)

// ErrUnsupportedMetric is the class of errors for unknown metric selectors.
var ErrUnsupportedMetric = errors.New("unsupported metric")

// UnsupportedMetricError names the rejected selector.
type UnsupportedMetricError struct {
	Metric Metric
}

func (e *UnsupportedMetricError) Error() string {
	return fmt.Sprintf("unsupported metric %q: supported metrics are %q and %q", string(e.Metric), MetricCosine, MetricEuclidean)
}

// Is makes UnsupportedMetricError match ErrUnsupportedMetric.
func (e *UnsupportedMetricError) Is(target error) bool { return target == ErrUnsupportedMetric }

// Metric selects the pairwise scoring function.
//
// It is a free-form string: any value can be configured, and unsupported
// values are only rejected when a kernel is requested via Provider.
type Metric string

const (
	// MetricCosine is cosine similarity. Higher means more similar.
	MetricCosine Metric = "cosine"
	// MetricEuclidean is Euclidean distance. Higher means less similar.
	MetricEuclidean Metric = "euclidean"
)

func (m Metric) String() string { return string(m) }

// IsDistance reports whether larger scores mean less similar.
func (m Metric) IsDistance() bool { return m == MetricEuclidean }

// Func scores a pair of vectors.
type Func func(a, b []float64) float64

// Provider returns the kernel for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine:
		return Cosine, nil
	case MetricEuclidean:
		return Euclidean, nil
	default:
		return nil, &UnsupportedMetricError{Metric: m}
	}
}

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return vek.Dot(a, b)
}

// Norm calculates the L2 norm of v.
func Norm(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return vek.Norm(v)
}

// Cosine calculates (a·b) / (‖a‖·‖b‖).
// Returns 0 when either vector has zero norm. Vectors whose norms or dot
// product leave the float64 range are rescaled by their largest component
// first, so finite inputs always produce a finite score.
func Cosine(a, b []float64) float64 {
	na, nb := Norm(a), Norm(b)
	if inRange(na) && inRange(nb) {
		if s := Dot(a, b) / (na * nb); !math.IsNaN(s) && !math.IsInf(s, 0) {
			return clamp(s)
		}
	}
	return scaledCosine(a, b)
}

// Norms in [minNorm, maxNorm] cannot overflow or lose precision when
// multiplied together.
const (
	minNorm = 1e-150
	maxNorm = 1e150
)

func inRange(n float64) bool { return n >= minNorm && n <= maxNorm }

func scaledCosine(a, b []float64) float64 {
	ma, mb := maxAbs(a), maxAbs(b)
	if ma == 0 || mb == 0 {
		return 0
	}
	if math.IsInf(ma, 0) || math.IsInf(mb, 0) || math.IsNaN(ma) || math.IsNaN(mb) {
		return math.NaN()
	}
	sa, sb := vek.DivNumber(a, ma), vek.DivNumber(b, mb)
	return clamp(vek.Dot(sa, sb) / (vek.Norm(sa) * vek.Norm(sb)))
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if math.IsNaN(x) {
			return x
		}
		m = max(m, math.Abs(x))
	}
	return m
}

// clamp removes rounding excursions outside [-1, 1].
func clamp(s float64) float64 {
	return max(-1, min(1, s))
}

// Euclidean calculates sqrt(Σ (a_k - b_k)²).
// Assumes vectors are the same length (caller's responsibility).
func Euclidean(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return vek.Distance(a, b)
}
