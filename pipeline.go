package vecsim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/vecsim/edges"
	"github.com/hupe1980/vecsim/export"
	"github.com/hupe1980/vecsim/manifest"
	"github.com/hupe1980/vecsim/rank"
	"github.com/hupe1980/vecsim/similarity"
	"github.com/hupe1980/vecsim/table"
)

// Output holds the artifacts of a pipeline run.
type Output struct {
	Result *similarity.Result
	Edges  *edges.Table
	Ranked *rank.Table
}

// Pipeline runs generate, convert and rank over feature tables.
// It is safe for concurrent use.
type Pipeline struct {
	opts options
	// randMu guards opts.rand, which is not safe for concurrent use.
	randMu sync.Mutex
}

// New creates a pipeline.
func New(optFns ...Option) *Pipeline {
	return &Pipeline{opts: applyOptions(optFns)}
}

// Run computes the similarity matrix of tbl, flattens it and ranks every
// entity's neighbors.
//
// Errors are wrapped in a *StageError naming the failing stage; errors.Is
// still matches the underlying sentinels (ErrValidation,
// ErrUnsupportedMetric, ErrNonOrderableScore).
func (p *Pipeline) Run(ctx context.Context, tbl *table.Table) (*Output, error) {
	if err := p.opts.controller.AcquireJob(ctx); err != nil {
		return nil, err
	}
	defer p.opts.controller.ReleaseJob()

	log := p.opts.logger.WithMetric(p.opts.metric.String())
	mc := p.opts.metricsCollector

	engineOpts := []similarity.Option{
		similarity.WithIDColumn(p.opts.idColumn),
		similarity.WithMetric(p.opts.metric),
		similarity.WithWorkers(p.opts.workers),
		similarity.WithResourceController(p.opts.controller),
		similarity.WithLogger(log.Logger),
	}
	if p.opts.features != nil {
		engineOpts = append(engineOpts, similarity.WithFeatures(*p.opts.features))
	}

	start := time.Now()
	eng, err := similarity.New(tbl, engineOpts...)
	if err != nil {
		mc.RecordGenerate(0, time.Since(start), err)
		log.LogGenerate(ctx, 0, 0, time.Since(start), err)
		return nil, stageError("generate", err)
	}
	res, err := eng.Generate(ctx)
	rows := len(eng.IDs())
	mc.RecordGenerate(rows, time.Since(start), err)
	log.LogGenerate(ctx, rows, len(eng.FeatureColumns()), time.Since(start), err)
	if err != nil {
		return nil, stageError("generate", err)
	}

	start = time.Now()
	long, err := edges.Convert(res.Labeled, p.opts.idColumn)
	n := 0
	if long != nil {
		n = long.Len()
	}
	mc.RecordConvert(n, time.Since(start), err)
	log.LogConvert(ctx, n, err)
	if err != nil {
		return nil, stageError("convert", err)
	}

	start = time.Now()
	ranked, err := p.rank(long)
	groups := 0
	if ranked != nil {
		groups = len(ranked.Sources())
	}
	mc.RecordRank(long.Len(), time.Since(start), err)
	log.LogRank(ctx, long.Len(), groups, err)
	if err != nil {
		return nil, stageError("rank", err)
	}

	return &Output{Result: res, Edges: long, Ranked: ranked}, nil
}

func (p *Pipeline) order() rank.Order {
	if p.opts.distanceAwareRank {
		return rank.OrderFor(p.opts.metric)
	}
	return rank.Descending
}

func (p *Pipeline) rank(long *edges.Table) (*rank.Table, error) {
	rankOpts := []rank.Option{rank.WithOrder(p.order()), rank.WithWorkers(p.opts.workers)}

	if p.opts.rand != nil {
		// AddRankColumn draws its per-group seeds before ranking, so the lock
		// only needs to cover the call.
		p.randMu.Lock()
		defer p.randMu.Unlock()
		rankOpts = append(rankOpts, rank.WithRand(p.opts.rand))
	}
	return rank.AddRankColumn(long, rankOpts...)
}

// Neighbors runs the pipeline and returns the top-k neighbors of id, best
// first, excluding id itself.
func (p *Pipeline) Neighbors(ctx context.Context, tbl *table.Table, id string, k int) ([]rank.RankedEdge, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	out, err := p.Run(ctx, tbl)
	if err != nil {
		return nil, err
	}
	if out.Ranked.Group(id) == nil {
		return nil, fmt.Errorf("%w: entity %q", ErrNotFound, id)
	}
	return out.Ranked.Neighbors(id, k, true), nil
}

// Export stores the ranked table of out as a new run through w and returns
// the committed manifest.
func (p *Pipeline) Export(ctx context.Context, out *Output, w *export.Writer) (*manifest.Manifest, error) {
	if out == nil || out.Ranked == nil {
		return nil, stageError("export", fmt.Errorf("%w: nothing to export", ErrValidation))
	}
	log := p.opts.logger.WithMetric(p.opts.metric.String())

	start := time.Now()
	m, err := w.Write(ctx, out.Ranked, export.RunInfo{
		Metric: p.opts.metric.String(),
		Order:  p.order().String(),
	})
	var (
		blob  string
		bytes int64
	)
	if m != nil {
		blob, bytes = m.Blob, m.Bytes
		log = log.WithRun(m.RunID)
	}
	p.opts.metricsCollector.RecordExport(bytes, time.Since(start), err)
	log.LogExport(ctx, blob, bytes, err)
	if err != nil {
		return nil, stageError("export", err)
	}
	return m, nil
}
