package vecsim

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package
// prommetrics provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordGenerate is called after each matrix generation.
	// rows is the number of entities.
	RecordGenerate(rows int, duration time.Duration, err error)

	// RecordConvert is called after each wide-to-long conversion.
	RecordConvert(edges int, duration time.Duration, err error)

	// RecordRank is called after each ranking pass.
	RecordRank(edges int, duration time.Duration, err error)

	// RecordExport is called after each artifact export.
	RecordExport(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordGenerate(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordConvert(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordRank(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordExport(int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	GenerateCount      atomic.Int64
	GenerateErrors     atomic.Int64
	GenerateRows       atomic.Int64
	GenerateTotalNanos atomic.Int64
	ConvertCount       atomic.Int64
	ConvertErrors      atomic.Int64
	ConvertEdges       atomic.Int64
	RankCount          atomic.Int64
	RankErrors         atomic.Int64
	RankTotalNanos     atomic.Int64
	ExportCount        atomic.Int64
	ExportErrors       atomic.Int64
	ExportBytes        atomic.Int64
}

// RecordGenerate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGenerate(rows int, duration time.Duration, err error) {
	b.GenerateCount.Add(1)
	b.GenerateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.GenerateErrors.Add(1)
		return
	}
	b.GenerateRows.Add(int64(rows))
}

// RecordConvert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordConvert(edges int, _ time.Duration, err error) {
	b.ConvertCount.Add(1)
	if err != nil {
		b.ConvertErrors.Add(1)
		return
	}
	b.ConvertEdges.Add(int64(edges))
}

// RecordRank implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRank(_ int, duration time.Duration, err error) {
	b.RankCount.Add(1)
	b.RankTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RankErrors.Add(1)
	}
}

// RecordExport implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExport(bytes int64, _ time.Duration, err error) {
	b.ExportCount.Add(1)
	if err != nil {
		b.ExportErrors.Add(1)
		return
	}
	b.ExportBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		GenerateCount:    b.GenerateCount.Load(),
		GenerateErrors:   b.GenerateErrors.Load(),
		GenerateRows:     b.GenerateRows.Load(),
		GenerateAvgNanos: avg(b.GenerateTotalNanos.Load(), b.GenerateCount.Load()),
		ConvertCount:     b.ConvertCount.Load(),
		ConvertErrors:    b.ConvertErrors.Load(),
		ConvertEdges:     b.ConvertEdges.Load(),
		RankCount:        b.RankCount.Load(),
		RankErrors:       b.RankErrors.Load(),
		RankAvgNanos:     avg(b.RankTotalNanos.Load(), b.RankCount.Load()),
		ExportCount:      b.ExportCount.Load(),
		ExportErrors:     b.ExportErrors.Load(),
		ExportBytes:      b.ExportBytes.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	GenerateCount    int64
	GenerateErrors   int64
	GenerateRows     int64
	GenerateAvgNanos int64
	ConvertCount     int64
	ConvertErrors    int64
	ConvertEdges     int64
	RankCount        int64
	RankErrors       int64
	RankAvgNanos     int64
	ExportCount      int64
	ExportErrors     int64
	ExportBytes      int64
}
