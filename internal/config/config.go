// Package config loads vecsim job configuration.
// It uses koanf to read a YAML job file and applies VECSIM_* environment
// overrides on top.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/export"
)

// Store kinds.
const (
	StoreLocal = "local"
	StoreMinio = "minio"
	StoreS3    = "s3"
)

// Job is a complete similarity job.
type Job struct {
	// Input is the path of the raw feature CSV.
	Input string `koanf:"input"`
	// IDColumn names the entity identifier column.
	IDColumn string `koanf:"id_column"`
	// Metric is "cosine" or "euclidean".
	Metric string `koanf:"metric"`
	// Features restricts the feature columns when preprocessing is off.
	Features []string `koanf:"features"`
	// Workers bounds matrix and rank parallelism. 0 uses GOMAXPROCS.
	Workers int `koanf:"workers"`
	// DistanceAwareOrder ranks distance metrics ascending.
	DistanceAwareOrder bool `koanf:"distance_aware_order"`
	// Seed makes dedupe and tie-breaking reproducible. 0 draws a fresh seed.
	Seed uint64 `koanf:"seed"`

	Preprocess Preprocess `koanf:"preprocess"`
	Output     Output     `koanf:"output"`
	Limits     Limits     `koanf:"limits"`
	Log        Log        `koanf:"log"`
}

// Preprocess configures the cleaning stages.
type Preprocess struct {
	Enabled bool `koanf:"enabled"`
	// Columns are the attribute columns to keep. Empty keeps all.
	Columns []string `koanf:"columns"`
}

// Output configures where runs are exported.
type Output struct {
	Store       string `koanf:"store"`
	Path        string `koanf:"path"`
	Compression string `koanf:"compression"`
	// CSV optionally also writes the ranked table as CSV to this path.
	CSV   string `koanf:"csv"`
	Minio Minio  `koanf:"minio"`
	S3    S3     `koanf:"s3"`
}

// Minio holds MinIO connection settings.
type Minio struct {
	Endpoint     string `koanf:"endpoint"`
	AccessKey    string `koanf:"access_key"`
	SecretKey    string `koanf:"secret_key"`
	Bucket       string `koanf:"bucket"`
	Prefix       string `koanf:"prefix"`
	Region       string `koanf:"region"`
	Secure       bool   `koanf:"secure"`
	CreateBucket bool   `koanf:"create_bucket"`
}

// S3 holds AWS S3 settings. A non-empty CommitTable publishes CURRENT
// through DynamoDB.
type S3 struct {
	Bucket      string `koanf:"bucket"`
	Prefix      string `koanf:"prefix"`
	Region      string `koanf:"region"`
	Endpoint    string `koanf:"endpoint"`
	CommitTable string `koanf:"commit_table"`
}

// Limits map to resource.Config.
type Limits struct {
	MemoryBytes       int64 `koanf:"memory_bytes"`
	MaxConcurrentJobs int64 `koanf:"max_concurrent_jobs"`
	IOBytesPerSec     int64 `koanf:"io_bytes_per_sec"`
}

// Log configures the CLI logger.
type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Configuration validation errors.
var (
	ErrMissingInput       = errors.New("VECSIM_INPUT is required")
	ErrUnsupportedStore   = errors.New("output store must be local, minio or s3")
	ErrMissingPath        = errors.New("output path is required for the local store")
	ErrMissingBucket      = errors.New("bucket is required for object stores")
	ErrMissingEndpoint    = errors.New("minio endpoint is required")
	ErrInvalidLogLevel    = errors.New("log level must be debug, info, warn or error")
	ErrInvalidLogFormat   = errors.New("log format must be text or json")
	ErrInvalidInteger     = errors.New("must be a valid integer")
	ErrNegativeLimit      = errors.New("limits must not be negative")
	ErrMissingIDColumn    = errors.New("id column must not be empty")
	ErrInvalidMetric      = errors.New("unsupported metric")
	ErrInvalidCompression = errors.New("unsupported compression")
)

// Default values.
const (
	DefaultIDColumn    = "recipe_id"
	DefaultMetric      = "cosine"
	DefaultStore       = StoreLocal
	DefaultPath        = "vecsim-runs"
	DefaultCompression = "zstd"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Load reads the job file at path (optional) and applies environment
// overrides. Environment variables take precedence over file values.
// Returns the loaded job and a slice of validation errors (empty if valid).
// If the file cannot be loaded, only that error is returned.
func Load(path string) (*Job, []error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", path, err)}
		}
	}

	job := &Job{}
	if err := k.Unmarshal("", job); err != nil {
		return nil, []error{fmt.Errorf("failed to decode config file %s: %w", path, err)}
	}

	errs := job.applyEnv()
	job.applyDefaults()
	return job, append(errs, job.Validate()...)
}

func (j *Job) applyEnv() []error {
	var errs []error

	envString("VECSIM_INPUT", &j.Input)
	envString("VECSIM_ID_COLUMN", &j.IDColumn)
	envString("VECSIM_METRIC", &j.Metric)
	envString("VECSIM_STORE", &j.Output.Store)
	envString("VECSIM_OUTPUT_PATH", &j.Output.Path)
	envString("VECSIM_COMPRESSION", &j.Output.Compression)
	envString("VECSIM_CSV", &j.Output.CSV)
	envString("VECSIM_MINIO_ENDPOINT", &j.Output.Minio.Endpoint)
	envString("VECSIM_MINIO_ACCESS_KEY", &j.Output.Minio.AccessKey)
	envString("VECSIM_MINIO_SECRET_KEY", &j.Output.Minio.SecretKey)
	envString("VECSIM_MINIO_BUCKET", &j.Output.Minio.Bucket)
	envString("VECSIM_S3_BUCKET", &j.Output.S3.Bucket)
	envString("VECSIM_S3_REGION", &j.Output.S3.Region)
	envString("VECSIM_S3_COMMIT_TABLE", &j.Output.S3.CommitTable)
	envString("VECSIM_LOG_LEVEL", &j.Log.Level)
	envString("VECSIM_LOG_FORMAT", &j.Log.Format)

	if err := envInt("VECSIM_WORKERS", &j.Workers); err != nil {
		errs = append(errs, err)
	}
	if err := envInt("VECSIM_MEMORY_LIMIT_BYTES", &j.Limits.MemoryBytes); err != nil {
		errs = append(errs, err)
	}
	if err := envInt("VECSIM_IO_BYTES_PER_SEC", &j.Limits.IOBytesPerSec); err != nil {
		errs = append(errs, err)
	}
	if err := envInt("VECSIM_SEED", &j.Seed); err != nil {
		errs = append(errs, err)
	}
	if val := os.Getenv("VECSIM_PREPROCESS"); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			j.Preprocess.Enabled = true
		case "false", "0", "no", "off":
			j.Preprocess.Enabled = false
		}
	}
	return errs
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envInt[T int | int64 | uint64](key string, dst *T) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fmt.Errorf("%s %w", key, ErrInvalidInteger)
	}
	*dst = T(n)
	return nil
}

func (j *Job) applyDefaults() {
	if j.IDColumn == "" {
		j.IDColumn = DefaultIDColumn
	}
	if j.Metric == "" {
		j.Metric = DefaultMetric
	}
	if j.Output.Store == "" {
		j.Output.Store = DefaultStore
	}
	if j.Output.Store == StoreLocal && j.Output.Path == "" {
		j.Output.Path = DefaultPath
	}
	if j.Output.Compression == "" {
		j.Output.Compression = DefaultCompression
	}
	if j.Log.Level == "" {
		j.Log.Level = DefaultLogLevel
	}
	if j.Log.Format == "" {
		j.Log.Format = DefaultLogFormat
	}
}

// Validate checks the job for missing or invalid values.
// Returns a slice of validation errors (empty if valid).
func (j *Job) Validate() []error {
	var errs []error

	if j.Input == "" {
		errs = append(errs, ErrMissingInput)
	}
	if j.IDColumn == "" {
		errs = append(errs, ErrMissingIDColumn)
	}
	if _, err := distance.Provider(distance.Metric(j.Metric)); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidMetric, j.Metric))
	}
	if _, err := export.ParseCompression(j.Output.Compression); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidCompression, j.Output.Compression))
	}

	switch j.Output.Store {
	case StoreLocal:
		if j.Output.Path == "" {
			errs = append(errs, ErrMissingPath)
		}
	case StoreMinio:
		if j.Output.Minio.Endpoint == "" {
			errs = append(errs, ErrMissingEndpoint)
		}
		if j.Output.Minio.Bucket == "" {
			errs = append(errs, ErrMissingBucket)
		}
	case StoreS3:
		if j.Output.S3.Bucket == "" {
			errs = append(errs, ErrMissingBucket)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnsupportedStore, j.Output.Store))
	}

	if j.Limits.MemoryBytes < 0 || j.Limits.MaxConcurrentJobs < 0 || j.Limits.IOBytesPerSec < 0 {
		errs = append(errs, ErrNegativeLimit)
	}
	if _, err := j.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if j.Log.Format != "text" && j.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogFormat, j.Log.Format))
	}
	return errs
}

// LogLevel parses Log.Level.
func (j *Job) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(j.Log.Level)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, j.Log.Level)
	}
	return lvl, nil
}

// Compression parses Output.Compression.
func (j *Job) Compression() (export.Compression, error) {
	return export.ParseCompression(j.Output.Compression)
}
