// Package prommetrics exports pipeline metrics to Prometheus.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/vecsim"
)

// Metrics names as constants for consistency.
const (
	MetricStageRuns     = "vecsim_stage_runs_total"
	MetricStageErrors   = "vecsim_stage_errors_total"
	MetricStageDuration = "vecsim_stage_duration_seconds"
	MetricMatrixRows    = "vecsim_matrix_rows"
	MetricEdges         = "vecsim_edges_total"
	MetricExportBytes   = "vecsim_export_bytes_total"
)

// Stage label values.
const (
	StageGenerate = "generate"
	StageConvert  = "convert"
	StageRank     = "rank"
	StageExport   = "export"
)

// Collector implements vecsim.MetricsCollector on Prometheus collectors.
// All operations are thread-safe.
type Collector struct {
	stageRuns     *prometheus.CounterVec
	stageErrors   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	matrixRows    prometheus.Gauge
	edges         *prometheus.CounterVec
	exportBytes   prometheus.Counter
}

var _ vecsim.MetricsCollector = (*Collector)(nil)

// NewCollector creates a Collector. The metrics are not registered; call
// Register to register them with a registry.
func NewCollector() *Collector {
	return &Collector{
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricStageRuns,
			Help: "Total number of pipeline stage executions",
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricStageErrors,
			Help: "Total number of failed pipeline stage executions",
		}, []string{"stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricStageDuration,
			Help:    "Histogram of pipeline stage latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		matrixRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricMatrixRows,
			Help: "Number of entities in the most recently generated matrix",
		}),
		edges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricEdges,
			Help: "Total number of edge records produced",
		}, []string{"stage"}),
		exportBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricExportBytes,
			Help: "Total number of bytes written by exports",
		}),
	}
}

// Register registers all metrics with the given registry.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range c.Collectors() {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (c *Collector) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.stageRuns,
		c.stageErrors,
		c.stageDuration,
		c.matrixRows,
		c.edges,
		c.exportBytes,
	}
}

func (c *Collector) observe(stage string, d time.Duration, err error) {
	c.stageRuns.WithLabelValues(stage).Inc()
	if err != nil {
		c.stageErrors.WithLabelValues(stage).Inc()
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordGenerate implements vecsim.MetricsCollector.
func (c *Collector) RecordGenerate(rows int, d time.Duration, err error) {
	c.observe(StageGenerate, d, err)
	if err == nil {
		c.matrixRows.Set(float64(rows))
	}
}

// RecordConvert implements vecsim.MetricsCollector.
func (c *Collector) RecordConvert(edges int, d time.Duration, err error) {
	c.observe(StageConvert, d, err)
	c.edges.WithLabelValues(StageConvert).Add(float64(edges))
}

// RecordRank implements vecsim.MetricsCollector.
func (c *Collector) RecordRank(edges int, d time.Duration, err error) {
	c.observe(StageRank, d, err)
	if err == nil {
		c.edges.WithLabelValues(StageRank).Add(float64(edges))
	}
}

// RecordExport implements vecsim.MetricsCollector.
func (c *Collector) RecordExport(bytes int64, d time.Duration, err error) {
	c.observe(StageExport, d, err)
	c.exportBytes.Add(float64(bytes))
}
