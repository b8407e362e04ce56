package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/hupe1980/vecsim"
	"github.com/hupe1980/vecsim/blobstore"
	"github.com/hupe1980/vecsim/blobstore/minio"
	"github.com/hupe1980/vecsim/blobstore/s3"
	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/internal/config"
	"github.com/hupe1980/vecsim/preprocess"
	"github.com/hupe1980/vecsim/resource"
	"github.com/hupe1980/vecsim/table"
)

func loadJob(path string) (*config.Job, error) {
	job, errs := config.Load(path)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid job: %w", errors.Join(errs...))
	}
	return job, nil
}

func newLogger(job *config.Job, w io.Writer) (*vecsim.Logger, error) {
	lvl, err := job.LogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if job.Log.Format == "json" {
		return vecsim.NewLogger(slog.NewJSONHandler(w, opts)), nil
	}
	return vecsim.NewLogger(slog.NewTextHandler(w, opts)), nil
}

// rngs returns the dedupe and ranking random sources. A zero seed leaves
// both nil so each run draws fresh randomness.
func rngs(seed uint64) (dedupe, ranking *rand.Rand) {
	if seed == 0 {
		return nil, nil
	}
	return rand.New(rand.NewPCG(seed, 1)), rand.New(rand.NewPCG(seed, 2))
}

// readFeatures reads the job input. With preprocessing on, every cell is
// read as a label and the cleaning stages produce the one-hot table.
func readFeatures(job *config.Job, log *vecsim.Logger, dedupe *rand.Rand) (*table.Table, error) {
	f, err := os.Open(job.Input)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !job.Preprocess.Enabled {
		return table.ReadCSV(f, table.WithStringColumns(job.IDColumn))
	}

	raw, err := table.ReadCSV(f, table.WithAllStrings())
	if err != nil {
		return nil, err
	}
	sel := table.AllExcept(job.IDColumn)
	if len(job.Preprocess.Columns) > 0 {
		sel = table.Explicit(job.Preprocess.Columns...)
	}
	opts := []preprocess.Option{preprocess.WithLogger(log.Logger)}
	if dedupe != nil {
		opts = append(opts, preprocess.WithRand(dedupe))
	}
	p, err := preprocess.New(raw, sel, job.IDColumn, opts...)
	if err != nil {
		return nil, err
	}
	return p.Run()
}

func newController(job *config.Job) *resource.Controller {
	return resource.NewController(resource.Config{
		MemoryLimitBytes:   job.Limits.MemoryBytes,
		MaxConcurrentJobs:  job.Limits.MaxConcurrentJobs,
		IOLimitBytesPerSec: job.Limits.IOBytesPerSec,
	})
}

func pipelineOptions(job *config.Job, log *vecsim.Logger, rc *resource.Controller, ranking *rand.Rand) []vecsim.Option {
	opts := []vecsim.Option{
		vecsim.WithIDColumn(job.IDColumn),
		vecsim.WithMetric(distance.Metric(job.Metric)),
		vecsim.WithWorkers(job.Workers),
		vecsim.WithLogger(log),
		vecsim.WithResourceController(rc),
	}
	if len(job.Features) > 0 && !job.Preprocess.Enabled {
		opts = append(opts, vecsim.WithFeatures(table.Explicit(job.Features...)))
	}
	if job.DistanceAwareOrder {
		opts = append(opts, vecsim.WithDistanceAwareOrder())
	}
	if ranking != nil {
		opts = append(opts, vecsim.WithRand(ranking))
	}
	return opts
}

// openStore connects the configured blob store.
func openStore(ctx context.Context, job *config.Job) (blobstore.BlobStore, error) {
	out := job.Output
	switch out.Store {
	case config.StoreLocal:
		return blobstore.NewLocalStore(out.Path), nil
	case config.StoreMinio:
		return minio.Dial(ctx, minio.Config{
			Endpoint:     out.Minio.Endpoint,
			AccessKey:    out.Minio.AccessKey,
			SecretKey:    out.Minio.SecretKey,
			Bucket:       out.Minio.Bucket,
			Prefix:       out.Minio.Prefix,
			Secure:       out.Minio.Secure,
			Region:       out.Minio.Region,
			CreateBucket: out.Minio.CreateBucket,
		})
	case config.StoreS3:
		opts := []s3.Option{s3.WithPrefix(out.S3.Prefix), s3.WithRegion(out.S3.Region)}
		if out.S3.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(out.S3.Endpoint))
		}
		store, err := s3.New(ctx, out.S3.Bucket, opts...)
		if err != nil {
			return nil, err
		}
		if out.S3.CommitTable == "" {
			return store, nil
		}
		ddb, err := s3.NewDynamoDBClient(ctx, out.S3.Region)
		if err != nil {
			return nil, err
		}
		baseURI := "s3://" + out.S3.Bucket + "/" + out.S3.Prefix
		return s3.NewCommitStore(store, ddb, out.S3.CommitTable, baseURI), nil
	default:
		return nil, fmt.Errorf("unsupported store %q", out.Store)
	}
}
