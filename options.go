package vecsim

import (
	"log/slog"
	"math/rand/v2"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/resource"
	"github.com/hupe1980/vecsim/similarity"
	"github.com/hupe1980/vecsim/table"
)

type options struct {
	idColumn          string
	metric            distance.Metric
	features          *table.Selection
	workers           int
	logger            *Logger
	metricsCollector  MetricsCollector
	controller        *resource.Controller
	distanceAwareRank bool
	rand              *rand.Rand
}

// Option configures a Pipeline.
type Option func(*options)

// WithIDColumn sets the entity identifier column (default "recipe_id").
func WithIDColumn(name string) Option {
	return func(o *options) {
		o.idColumn = name
	}
}

// WithMetric sets the metric (default cosine).
//
// The value is not validated here. An unsupported metric fails when the
// pipeline runs.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithFeatures restricts the feature columns. By default every column but
// the id column is a feature.
func WithFeatures(sel table.Selection) Option {
	return func(o *options) {
		o.features = &sel
	}
}

// WithWorkers sets the parallelism of matrix generation and ranking.
// Values <= 0 use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLogger sets a custom structured logger.
//
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel is a shorthand for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector sets a custom metrics collector.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithResourceController bounds matrix memory and concurrent runs.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithDistanceAwareOrder ranks ascending for distance metrics (Euclidean),
// so the nearest neighbor gets rank 1. Without it ranking is always
// descending by score.
func WithDistanceAwareOrder() Option {
	return func(o *options) {
		o.distanceAwareRank = true
	}
}

// WithRand makes tie-breaking reproducible. The generator is shared by all
// runs of the pipeline and must not be used elsewhere concurrently.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		o.rand = r
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		idColumn:         similarity.DefaultIDColumn,
		metric:           distance.MetricCosine,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
