// Package manifest records exported runs and the CURRENT pointer to the
// latest one.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hupe1980/vecsim/blobstore"
)

const (
	FileName        = "manifest.json"
	CurrentFileName = "CURRENT"
	RunsPrefix      = "runs/"
	CurrentVersion  = 1
)

// ErrNoRuns is returned by Load before the first run is committed.
var ErrNoRuns = errors.New("manifest: no runs committed")

// Manifest describes one exported run.
type Manifest struct {
	Version     int       `json:"version"`
	RunID       string    `json:"run_id"`
	CreatedAt   time.Time `json:"created_at"`
	IDColumn    string    `json:"id_column"`
	Metric      string    `json:"metric,omitempty"`
	Order       string    `json:"order,omitempty"`
	Entities    int       `json:"entities"`
	Records     int       `json:"records"`
	Compression string    `json:"compression"`
	Blob        string    `json:"blob"` // Relative to the store root
	Bytes       int64     `json:"bytes"`
}

// RunDir returns the blob prefix of a run, "runs/<id>/".
func RunDir(runID string) string { return RunsPrefix + runID + "/" }

// Path returns the manifest blob name of a run.
func Path(runID string) string { return path.Join(RunsPrefix, runID, FileName) }

// Store reads and commits manifests in a blob store.
type Store struct {
	blobs blobstore.BlobStore
}

// NewStore creates a manifest store.
func NewStore(blobs blobstore.BlobStore) *Store {
	return &Store{blobs: blobs}
}

// Load returns the manifest CURRENT points to.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	content, err := blobstore.ReadAll(ctx, s.blobs, CurrentFileName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, strings.TrimSpace(string(content)))
}

// Get returns the manifest of a run.
func (s *Store) Get(ctx context.Context, runID string) (*Manifest, error) {
	if runID == "" || strings.ContainsAny(runID, "/\\") {
		return nil, fmt.Errorf("manifest: invalid run id %q", runID)
	}
	data, err := blobstore.ReadAll(ctx, s.blobs, Path(runID))
	if err != nil {
		return nil, fmt.Errorf("manifest: run %q: %w", runID, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: run %q: %w", runID, err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported manifest version: %d (expected %d)", m.Version, CurrentVersion)
	}
	return &m, nil
}

// Save writes the run manifest and then moves CURRENT to it. The run's data
// blob must already be stored.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	m.Version = CurrentVersion

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, Path(m.RunID), data); err != nil {
		return err
	}
	return s.blobs.Put(ctx, CurrentFileName, []byte(m.RunID))
}

// Runs lists the ids of all runs with a manifest, sorted.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	names, err := s.blobs.List(ctx, RunsPrefix)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, name := range names {
		rest := strings.TrimPrefix(name, RunsPrefix)
		id, file, ok := strings.Cut(rest, "/")
		if ok && file == FileName {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
