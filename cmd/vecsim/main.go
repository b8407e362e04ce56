// Command vecsim computes pairwise entity similarity from a feature CSV,
// ranks every entity's neighbors and exports the result as a run.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
