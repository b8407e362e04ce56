package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/vecsim/blobstore"
	"github.com/hupe1980/vecsim/manifest"
	"github.com/hupe1980/vecsim/rank"
	"github.com/hupe1980/vecsim/resource"
)

// DataFileName is the name of the ranked frame inside a run directory.
const DataFileName = "ranked.bin"

// ErrRecordCount is returned when a decoded frame disagrees with its manifest.
var ErrRecordCount = errors.New("export: record count does not match manifest")

type options struct {
	compression Compression
	rc          *resource.Controller
	logger      *slog.Logger
	newRunID    func() string
}

// Option configures a Writer.
type Option func(*options)

// WithCompression sets the frame compression (default zstd).
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithResourceController throttles uploads through rc's IO limiter.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// WithLogger sets the logger (default discards).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRunIDs replaces the run id generator (default random UUIDs).
func WithRunIDs(fn func() string) Option {
	return func(o *options) { o.newRunID = fn }
}

// RunInfo carries run attributes the ranked table does not know about.
type RunInfo struct {
	Metric string
	Order  string
}

// Writer stores ranked tables as runs in a blob store.
type Writer struct {
	store     blobstore.BlobStore
	manifests *manifest.Store
	opts      options
}

// NewWriter creates a Writer on store.
func NewWriter(store blobstore.BlobStore, optFns ...Option) *Writer {
	o := options{
		compression: CompressionZSTD,
		logger:      slog.New(slog.DiscardHandler),
		newRunID:    uuid.NewString,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return &Writer{store: store, manifests: manifest.NewStore(store), opts: o}
}

// Write stores ranked as runs/<id>/ranked.bin, writes its manifest and moves
// CURRENT to the new run. A failed write or commit deletes the data blob and
// leaves CURRENT untouched.
func (w *Writer) Write(ctx context.Context, ranked *rank.Table, info RunInfo) (*manifest.Manifest, error) {
	if ranked == nil {
		return nil, fmt.Errorf("%w: nil table", ErrInvalidFrame)
	}
	runID := w.opts.newRunID()
	blob := path.Join(manifest.RunsPrefix, runID, DataFileName)
	start := time.Now()

	n, err := w.writeBlob(ctx, blob, ranked)
	if err != nil {
		_ = w.store.Delete(context.WithoutCancel(ctx), blob)
		return nil, fmt.Errorf("export: write %s: %w", blob, err)
	}

	m := &manifest.Manifest{
		RunID:       runID,
		CreatedAt:   time.Now().UTC(),
		IDColumn:    ranked.IDColumn(),
		Metric:      info.Metric,
		Order:       info.Order,
		Entities:    len(ranked.Sources()),
		Records:     ranked.Len(),
		Compression: w.opts.compression.String(),
		Blob:        blob,
		Bytes:       n,
	}
	if err := w.manifests.Save(ctx, m); err != nil {
		_ = w.store.Delete(context.WithoutCancel(ctx), blob)
		return nil, fmt.Errorf("export: commit run %s: %w", runID, err)
	}

	w.opts.logger.DebugContext(ctx, "run exported",
		"run_id", runID,
		"blob", blob,
		"bytes", n,
		"compression", m.Compression,
		"duration", time.Since(start),
	)
	return m, nil
}

func (w *Writer) writeBlob(ctx context.Context, blob string, ranked *rank.Table) (int64, error) {
	wb, err := w.store.Create(ctx, blob)
	if err != nil {
		return 0, err
	}
	n, err := Encode(resource.NewRateLimitedWriter(ctx, wb, w.opts.rc), ranked, w.opts.compression)
	if err == nil {
		err = wb.Sync()
	}
	if cerr := wb.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Reader loads exported runs.
type Reader struct {
	store     blobstore.BlobStore
	manifests *manifest.Store
}

// NewReader creates a Reader on store.
func NewReader(store blobstore.BlobStore) *Reader {
	return &Reader{store: store, manifests: manifest.NewStore(store)}
}

// Latest loads the run CURRENT points to. Before the first export it fails
// with manifest.ErrNoRuns.
func (r *Reader) Latest(ctx context.Context) (*manifest.Manifest, *rank.Table, error) {
	m, err := r.manifests.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	t, err := r.load(ctx, m)
	return m, t, err
}

// Read loads a specific run.
func (r *Reader) Read(ctx context.Context, runID string) (*manifest.Manifest, *rank.Table, error) {
	m, err := r.manifests.Get(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	t, err := r.load(ctx, m)
	return m, t, err
}

// Runs lists the ids of all exported runs.
func (r *Reader) Runs(ctx context.Context) ([]string, error) {
	return r.manifests.Runs(ctx)
}

func (r *Reader) load(ctx context.Context, m *manifest.Manifest) (*rank.Table, error) {
	data, err := blobstore.ReadAll(ctx, r.store, m.Blob)
	if err != nil {
		return nil, fmt.Errorf("export: read %s: %w", m.Blob, err)
	}
	t, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("export: decode %s: %w", m.Blob, err)
	}
	if t.Len() != m.Records {
		return nil, fmt.Errorf("%w: %d records, manifest says %d", ErrRecordCount, t.Len(), m.Records)
	}
	return t, nil
}
