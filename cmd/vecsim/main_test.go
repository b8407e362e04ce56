package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recipesCSV = `recipe_id,country,course,prep_time
1,Great Britain,Main Course,10-20
2,Great Britain,Main Course,10-20
3,United States of America (USA),Dessert,5-10
4,Israel and the Occupied Territories,#N/A,30
`

const numericCSV = `recipe_id,a,b
1,1,0
2,0,1
3,3,4
4,5,2
`

func unsetEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "VECSIM_") {
			t.Setenv(key, "")
		}
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestRunAndNeighbors_Preprocessed(t *testing.T) {
	unsetEnv(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "recipes.csv", recipesCSV)
	cfg := writeFile(t, dir, "job.yaml", `
input: `+input+`
seed: 11
preprocess:
  enabled: true
output:
  store: local
  path: `+filepath.Join(dir, "runs")+`
  compression: lz4
log:
  level: error
`)

	out, err := execute(t, "run", "--config", cfg, "--json")
	require.NoError(t, err)

	var manifest struct {
		RunID   string `json:"run_id"`
		Records int    `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &manifest))
	assert.NotEmpty(t, manifest.RunID)
	assert.Equal(t, 16, manifest.Records)

	out, err = execute(t, "neighbors", "--config", cfg, "--id", "1", "-k", "1", "--json")
	require.NoError(t, err)

	var res neighborsResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, manifest.RunID, res.RunID)
	require.Len(t, res.Neighbors, 1)
	assert.Equal(t, "2", res.Neighbors[0].Target)
	assert.InDelta(t, 1.0, res.Neighbors[0].Similarity, 1e-12)
}

func TestRun_NumericWithArtifacts(t *testing.T) {
	unsetEnv(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "features.csv", numericCSV)
	csvOut := filepath.Join(dir, "ranked.csv")
	metrics := filepath.Join(dir, "metrics.prom")
	cfg := writeFile(t, dir, "job.yaml", `
input: `+input+`
metric: euclidean
distance_aware_order: true
output:
  path: `+filepath.Join(dir, "runs")+`
  csv: `+csvOut+`
log:
  level: error
`)

	out, err := execute(t, "run", "--config", cfg, "--metrics-file", metrics)
	require.NoError(t, err)
	runID := strings.TrimSpace(out)
	assert.NotEmpty(t, runID)

	data, err := os.ReadFile(csvOut)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "recipe_id_1,recipe_id_2,similarity,rank", lines[0])
	assert.Len(t, lines, 17)
	// Ascending distance puts the self-pair first.
	assert.Equal(t, "1,1,0,1", lines[1])

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "vecsim_export_bytes_total")

	out, err = execute(t, "neighbors", "--config", cfg, "--id", "3", "-k", "2", "--run", runID)
	require.NoError(t, err)
	assert.Contains(t, out, "RANK")
	assert.Equal(t, 3, len(strings.Split(strings.TrimSpace(out), "\n")))
}

func TestCommands_Errors(t *testing.T) {
	unsetEnv(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "features.csv", numericCSV)
	cfg := writeFile(t, dir, "job.yaml", "input: "+input+"\noutput:\n  path: "+filepath.Join(dir, "runs")+"\n")

	_, err := execute(t, "run", "--config", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = execute(t, "neighbors", "--config", cfg, "--id", "1")
	assert.Error(t, err, "no run exported yet")

	_, err = execute(t, "run", "--config", cfg)
	require.NoError(t, err)

	_, err = execute(t, "neighbors", "--config", cfg)
	assert.ErrorContains(t, err, "--id")

	_, err = execute(t, "neighbors", "--config", cfg, "--id", "99")
	assert.ErrorContains(t, err, "not found")

	_, err = execute(t, "neighbors", "--config", cfg, "--id", "1", "-k", "0")
	assert.Error(t, err)
}
