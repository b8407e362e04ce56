package similarity

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/resource"
	"github.com/hupe1980/vecsim/table"
)

// DefaultIDColumn is the identifier column used when none is configured.
const DefaultIDColumn = "recipe_id"

type options struct {
	idColumn   string
	metric     distance.Metric
	features   *table.Selection
	workers    int
	controller *resource.Controller
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*options)

// WithIDColumn sets the entity identifier column (default "recipe_id").
func WithIDColumn(name string) Option {
	return func(o *options) { o.idColumn = name }
}

// WithMetric sets the metric selector (default cosine).
//
// The selector is not validated here; an unsupported value fails on Generate.
func WithMetric(m distance.Metric) Option {
	return func(o *options) { o.metric = m }
}

// WithFeatures restricts the feature columns. By default every column
// except the identifier is a feature.
func WithFeatures(sel table.Selection) Option {
	return func(o *options) { o.features = &sel }
}

// WithWorkers sets the number of goroutines used to fill the matrix.
// Values <= 0 fall back to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithResourceController reserves matrix memory through rc before
// computing. Pass nil to disable.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.controller = rc }
}

// WithLogger sets the logger. Pass nil to disable logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func applyOptions(optFns []Option) options {
	o := options{
		idColumn: DefaultIDColumn,
		metric:   distance.MetricCosine,
		workers:  runtime.GOMAXPROCS(0),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.workers <= 0 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}
