package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hupe1980/vecsim"
	"github.com/hupe1980/vecsim/export"
	"github.com/hupe1980/vecsim/prommetrics"
)

func newRunCmd(flags *cliFlags) *cobra.Command {
	var metricsFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a similarity job and export the ranked neighbors",
		Long: `Run reads the job input, computes the similarity matrix, ranks the
neighbors of every entity and stores the result as a new run. CURRENT is
moved to the new run once it is fully written.

The run id is printed on success.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			job, err := loadJob(flags.configPath)
			if err != nil {
				return err
			}
			log, err := newLogger(job, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			compression, err := job.Compression()
			if err != nil {
				return err
			}
			dedupe, ranking := rngs(job.Seed)

			features, err := readFeatures(job, log, dedupe)
			if err != nil {
				return fmt.Errorf("read %s: %w", job.Input, err)
			}

			rc := newController(job)
			collector := prommetrics.NewCollector()
			opts := append(pipelineOptions(job, log, rc, ranking), vecsim.WithMetricsCollector(collector))
			p := vecsim.New(opts...)

			out, err := p.Run(ctx, features)
			if err != nil {
				return err
			}

			store, err := openStore(ctx, job)
			if err != nil {
				return fmt.Errorf("open %s store: %w", job.Output.Store, err)
			}
			w := export.NewWriter(store,
				export.WithCompression(compression),
				export.WithResourceController(rc),
				export.WithLogger(log.Logger),
			)
			m, err := p.Export(ctx, out, w)
			if err != nil {
				return err
			}

			if job.Output.CSV != "" {
				if err := writeCSV(job.Output.CSV, out); err != nil {
					return err
				}
			}
			if metricsFile != "" {
				reg := prometheus.NewRegistry()
				if err := collector.Register(reg); err != nil {
					return err
				}
				if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}

			if flags.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), m)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), m.RunID)
			return err
		},
	}

	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics of the run to this file")
	return cmd
}

func writeCSV(path string, out *vecsim.Output) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.CSV(f, out.Ranked); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
