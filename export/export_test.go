package export

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsim/blobstore"
	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/edges"
	"github.com/hupe1980/vecsim/manifest"
	"github.com/hupe1980/vecsim/rank"
	"github.com/hupe1980/vecsim/resource"
	"github.com/hupe1980/vecsim/similarity"
	"github.com/hupe1980/vecsim/table"
	"github.com/hupe1980/vecsim/testutil"
)

var compressions = []Compression{CompressionNone, CompressionLZ4, CompressionZSTD}

func rankedFrom(t *testing.T, tbl *table.Table) *rank.Table {
	t.Helper()
	eng, err := similarity.New(tbl, similarity.WithIDColumn("recipe_id"), similarity.WithMetric(distance.MetricCosine))
	require.NoError(t, err)
	res, err := eng.Generate(context.Background())
	require.NoError(t, err)
	long, err := edges.Convert(res.Labeled, "recipe_id")
	require.NoError(t, err)
	ranked, err := rank.AddRankColumn(long, rank.WithRand(rand.New(rand.NewPCG(1, 1))))
	require.NoError(t, err)
	return ranked
}

func TestEncodeDecode(t *testing.T) {
	rng := testutil.NewRNG(99)

	for _, n := range []int{1, 12, 100} {
		ranked := rankedFrom(t, rng.FloatTable("recipe_id", n, 4))
		for _, c := range compressions {
			t.Run(fmt.Sprintf("%s/n=%d", c, n), func(t *testing.T) {
				var buf bytes.Buffer
				written, err := Encode(&buf, ranked, c)
				require.NoError(t, err)
				assert.Equal(t, int64(buf.Len()), written)

				back, err := Decode(buf.Bytes())
				require.NoError(t, err)
				assert.Equal(t, "recipe_id", back.IDColumn())
				assert.Equal(t, ranked.Rows(), back.Rows())
				assert.Equal(t, ranked.Sources(), back.Sources())
			})
		}
	}
}

func TestEncodeDecode_SpecialScores(t *testing.T) {
	scores := []float64{math.Inf(1), math.Copysign(0, -1), math.SmallestNonzeroFloat64, math.Inf(-1)}
	rows := make([]rank.RankedEdge, len(scores))
	for i, s := range scores {
		rows[i] = rank.RankedEdge{Edge: edges.Edge{Source: "a", Target: fmt.Sprint(i), Score: s}, Rank: i + 1}
	}
	tbl, err := rank.NewTable("id", rows)
	require.NoError(t, err)

	for _, c := range compressions {
		var buf bytes.Buffer
		_, err := Encode(&buf, tbl, c)
		require.NoError(t, err)
		back, err := Decode(buf.Bytes())
		require.NoError(t, err)
		for i := range scores {
			assert.Equal(t, math.Float64bits(scores[i]), math.Float64bits(back.At(i).Score), "%s record %d", c, i)
		}
	}
}

func TestEncodeDecode_Empty(t *testing.T) {
	tbl, err := rank.NewTable("id", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = Encode(&buf, tbl, CompressionZSTD)
	require.NoError(t, err)
	back, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 0, back.Len())
	assert.Equal(t, "id", back.IDColumn())
}

func TestEncode_Compresses(t *testing.T) {
	ranked := rankedFrom(t, testutil.NewRNG(5).OneHotTable("recipe_id", 40, 8))

	sizes := map[Compression]int{}
	for _, c := range compressions {
		var buf bytes.Buffer
		_, err := Encode(&buf, ranked, c)
		require.NoError(t, err)
		sizes[c] = buf.Len()
	}
	assert.Less(t, sizes[CompressionZSTD], sizes[CompressionNone])
	assert.LessOrEqual(t, sizes[CompressionLZ4], sizes[CompressionNone])
}

func TestEncode_Invalid(t *testing.T) {
	_, err := Encode(&bytes.Buffer{}, nil, CompressionNone)
	assert.ErrorIs(t, err, ErrInvalidFrame)

	tbl, err := rank.NewTable("id", nil)
	require.NoError(t, err)
	_, err = Encode(&bytes.Buffer{}, tbl, Compression(9))
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

func TestDecode_Corrupt(t *testing.T) {
	tbl, err := rank.NewTable("id", []rank.RankedEdge{
		{Edge: edges.Edge{Source: "a", Target: "a", Score: 1}, Rank: 1},
		{Edge: edges.Edge{Source: "a", Target: "b", Score: 0.5}, Rank: 2},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = Encode(&buf, tbl, CompressionNone)
	require.NoError(t, err)
	good := buf.Bytes()

	// magic(4) version(1) compression(1) idLen(2) "id"(2) records(8)
	const payloadStart = 18 + blockHeaderSize

	mutate := func(fn func([]byte) []byte) []byte {
		return fn(bytes.Clone(good))
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"Empty", nil, ErrInvalidFrame},
		{"BadMagic", mutate(func(b []byte) []byte { b[0] = 'X'; return b }), ErrInvalidFrame},
		{"Version", mutate(func(b []byte) []byte { b[4] = 9; return b }), ErrUnsupportedVersion},
		{"Compression", mutate(func(b []byte) []byte { b[5] = 7; return b }), ErrUnknownCompression},
		{"PayloadFlip", mutate(func(b []byte) []byte { b[payloadStart+1] ^= 0xff; return b }), ErrChecksumMismatch},
		{"MissingChecksum", good[:len(good)-4], ErrInvalidFrame},
		{"TruncatedBlock", good[:payloadStart+3], ErrInvalidFrame},
		{"TrailingBytes", append(bytes.Clone(good), 0), ErrInvalidFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in   string
		want Compression
	}{
		{"none", CompressionNone},
		{"LZ4", CompressionLZ4},
		{" zstd ", CompressionZSTD},
		{"", CompressionZSTD},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		if tt.in != "" {
			assert.Equal(t, got, must(ParseCompression(got.String())))
		}
	}

	_, err := ParseCompression("gzip")
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func TestCSV(t *testing.T) {
	tbl, err := rank.NewTable("recipe_id", []rank.RankedEdge{
		{Edge: edges.Edge{Source: "1", Target: "1", Score: 1}, Rank: 1},
		{Edge: edges.Edge{Source: "1", Target: "2", Score: 0.1}, Rank: 2},
		{Edge: edges.Edge{Source: "a b", Target: "x,y", Score: -0.25}, Rank: 1},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, tbl))
	assert.Equal(t, "recipe_id_1,recipe_id_2,similarity,rank\n"+
		"1,1,1,1\n"+
		"1,2,0.1,2\n"+
		"a b,\"x,y\",-0.25,1\n", buf.String())
}

func sequentialIDs(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i]
		i++
		return id
	}
}

func TestWriterReader(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(7)

	stores := map[string]blobstore.BlobStore{
		"Memory": blobstore.NewMemoryStore(),
		"Local":  blobstore.NewLocalStore(t.TempDir()),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 30})
			w := NewWriter(store,
				WithCompression(CompressionLZ4),
				WithResourceController(rc),
				WithRunIDs(sequentialIDs("run-1", "run-2")),
			)
			r := NewReader(store)

			_, _, err := r.Latest(ctx)
			assert.ErrorIs(t, err, manifest.ErrNoRuns)

			first := rankedFrom(t, rng.FloatTable("recipe_id", 5, 3))
			m1, err := w.Write(ctx, first, RunInfo{Metric: "cosine", Order: "descending"})
			require.NoError(t, err)
			assert.Equal(t, "run-1", m1.RunID)
			assert.Equal(t, "runs/run-1/ranked.bin", m1.Blob)
			assert.Equal(t, 25, m1.Records)
			assert.Equal(t, 5, m1.Entities)
			assert.Equal(t, "lz4", m1.Compression)
			assert.Positive(t, m1.Bytes)

			second := rankedFrom(t, rng.FloatTable("recipe_id", 3, 3))
			m2, err := w.Write(ctx, second, RunInfo{Metric: "cosine"})
			require.NoError(t, err)

			latest, tbl, err := r.Latest(ctx)
			require.NoError(t, err)
			assert.Equal(t, m2.RunID, latest.RunID)
			assert.Equal(t, "cosine", latest.Metric)
			assert.Equal(t, second.Rows(), tbl.Rows())

			old, tbl, err := r.Read(ctx, "run-1")
			require.NoError(t, err)
			assert.Equal(t, "descending", old.Order)
			assert.Equal(t, first.Rows(), tbl.Rows())

			runs, err := r.Runs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"run-1", "run-2"}, runs)

			_, _, err = r.Read(ctx, "missing")
			assert.ErrorIs(t, err, blobstore.ErrNotFound)
			_, _, err = r.Read(ctx, "../escape")
			assert.Error(t, err)
		})
	}
}

var errBroken = errors.New("broken pipe")

// brokenStore fails every streaming write.
type brokenStore struct {
	*blobstore.MemoryStore
}

type brokenBlob struct{}

func (brokenBlob) Write([]byte) (int, error) { return 0, errBroken }
func (brokenBlob) Close() error              { return nil }
func (brokenBlob) Sync() error               { return nil }

func (brokenStore) Create(context.Context, string) (blobstore.WritableBlob, error) {
	return brokenBlob{}, nil
}

func TestWriter_FailureKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	ranked := rankedFrom(t, testutil.NewRNG(3).FloatTable("recipe_id", 4, 2))

	_, err := NewWriter(mem, WithRunIDs(sequentialIDs("good"))).Write(ctx, ranked, RunInfo{})
	require.NoError(t, err)

	_, err = NewWriter(brokenStore{mem}, WithRunIDs(sequentialIDs("bad"))).Write(ctx, ranked, RunInfo{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBroken)

	m, _, err := NewReader(mem).Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "good", m.RunID)

	names, err := mem.List(ctx, "runs/bad/")
	require.NoError(t, err)
	assert.Empty(t, names)
}

// rejectingStore stores data blobs but refuses every manifest commit.
type rejectingStore struct {
	*blobstore.MemoryStore
}

func (rejectingStore) Put(context.Context, string, []byte) error { return errBroken }

func TestWriter_CommitFailureRemovesBlob(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	ranked := rankedFrom(t, testutil.NewRNG(3).FloatTable("recipe_id", 4, 2))

	_, err := NewWriter(rejectingStore{mem}, WithRunIDs(sequentialIDs("orphan"))).Write(ctx, ranked, RunInfo{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBroken)

	names, err := mem.List(ctx, "runs/")
	require.NoError(t, err)
	assert.Empty(t, names)

	_, _, err = NewReader(mem).Latest(ctx)
	assert.ErrorIs(t, err, manifest.ErrNoRuns)
}

func TestReadBlock_Oversized(t *testing.T) {
	tests := []struct {
		name                     string
		uncompressed, compressed uint32
	}{
		{"Uncompressed", 0xFFFFFFFF, 1},
		{"Compressed", 16, blockSize + 1},
		{"Stored", blockSize + 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, blockHeaderSize+1)
			binary.LittleEndian.PutUint32(data[0:], tt.uncompressed)
			binary.LittleEndian.PutUint32(data[4:], tt.compressed)

			_, _, _, err := readBlock(data, CompressionLZ4)
			assert.ErrorIs(t, err, ErrInvalidFrame)
			assert.ErrorContains(t, err, "exceeds")
		})
	}
}

func TestReader_RecordCountMismatch(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	ranked := rankedFrom(t, testutil.NewRNG(3).FloatTable("recipe_id", 3, 2))

	m, err := NewWriter(mem).Write(ctx, ranked, RunInfo{})
	require.NoError(t, err)

	m.Records++
	require.NoError(t, manifest.NewStore(mem).Save(ctx, m))

	_, _, err = NewReader(mem).Latest(ctx)
	assert.ErrorIs(t, err, ErrRecordCount)
}
