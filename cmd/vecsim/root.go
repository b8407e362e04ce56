package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// cliFlags are the flags shared by every subcommand.
type cliFlags struct {
	configPath string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:   "vecsim",
		Short: "Pairwise similarity and neighbor ranking for feature tables",
		Long: `vecsim turns a table of entities and their features into a ranked
neighbor list.

A job reads a feature CSV, optionally cleans and one-hot encodes it, computes
the N×N similarity matrix, flattens it to (source, target, similarity)
records, ranks the neighbors of every entity and stores the result as a run
in a local directory, MinIO or S3.

Jobs are described by a YAML file (--config) with VECSIM_* environment
overrides.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to the job YAML file")
	root.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "Output in JSON format")

	root.AddCommand(newRunCmd(flags), newNeighborsCmd(flags))
	return root
}

// outputJSON writes data as indented JSON.
func outputJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
