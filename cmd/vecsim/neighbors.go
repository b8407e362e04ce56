package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecsim/export"
	"github.com/hupe1980/vecsim/rank"
)

type neighbor struct {
	Target     string  `json:"target"`
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

type neighborsResult struct {
	RunID     string     `json:"run_id"`
	ID        string     `json:"id"`
	Neighbors []neighbor `json:"neighbors"`
}

func newNeighborsCmd(flags *cliFlags) *cobra.Command {
	var (
		id          string
		k           int
		runID       string
		includeSelf bool
	)

	cmd := &cobra.Command{
		Use:   "neighbors",
		Short: "Print the top-k neighbors of an entity",
		Long: `Neighbors loads the latest exported run (or --run) and prints the
best-ranked neighbors of --id. The entity itself is skipped unless
--include-self is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return errors.New("--id is required")
			}
			if k <= 0 {
				return fmt.Errorf("-k must be positive, got %d", k)
			}
			ctx := cmd.Context()
			job, err := loadJob(flags.configPath)
			if err != nil {
				return err
			}
			store, err := openStore(ctx, job)
			if err != nil {
				return fmt.Errorf("open %s store: %w", job.Output.Store, err)
			}

			r := export.NewReader(store)
			var (
				tbl   *rank.Table
				runOf string
			)
			if runID != "" {
				m, t, err := r.Read(ctx, runID)
				if err != nil {
					return err
				}
				tbl, runOf = t, m.RunID
			} else {
				m, t, err := r.Latest(ctx)
				if err != nil {
					return err
				}
				tbl, runOf = t, m.RunID
			}

			if tbl.Group(id) == nil {
				return fmt.Errorf("entity %q not found in run %s", id, runOf)
			}
			res := neighborsResult{RunID: runOf, ID: id, Neighbors: []neighbor{}}
			for _, e := range tbl.Neighbors(id, k, !includeSelf) {
				res.Neighbors = append(res.Neighbors, neighbor{Target: e.Target, Similarity: e.Score, Rank: e.Rank})
			}

			if flags.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), res)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tTARGET\tSIMILARITY")
			for _, n := range res.Neighbors {
				fmt.Fprintf(tw, "%d\t%s\t%g\n", n.Rank, n.Target, n.Similarity)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Entity id")
	cmd.Flags().IntVarP(&k, "top", "k", 10, "Number of neighbors")
	cmd.Flags().StringVar(&runID, "run", "", "Run id (default: latest)")
	cmd.Flags().BoolVar(&includeSelf, "include-self", false, "Keep the entity itself in the list")
	return cmd
}
