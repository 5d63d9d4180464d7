// Package config provides the unified configuration for an extraction
// run. A single Config structure covers the whole pipeline, organized
// into logical sections:
//   - Inputs: dataset, files and their vintage years
//   - Aggregation: chunking, grouping granularity, worker fan-out
//   - Filter: which row subpopulation to keep
//   - Output: destination directory, formats, column selection
//   - Logging: level and encoding for the structured logger
//
// Configuration is loaded from a YAML file via viper, with every knob
// overridable through flags bound by the CLI.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/edusurvey/microagg/pkg/errors"
	"github.com/edusurvey/microagg/pkg/sniff"
)

// DefaultChunkSize is the number of rows read per chunk. Large enough
// to amortize per-chunk overhead, small enough to keep a chunk of wide
// survey rows in memory.
const DefaultChunkSize = 500000

// Config is the top-level configuration for one extraction run.
type Config struct {
	Inputs      InputsConfig      `yaml:"inputs" json:"inputs" mapstructure:"inputs"`
	Aggregation AggregationConfig `yaml:"aggregation" json:"aggregation" mapstructure:"aggregation"`
	Filter      FilterConfig      `yaml:"filter" json:"filter" mapstructure:"filter"`
	Output      OutputConfig      `yaml:"output" json:"output" mapstructure:"output"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging" mapstructure:"logging"`
}

// InputsConfig names the dataset and the files to process.
type InputsConfig struct {
	// Dataset selects a builtin field catalog ("enem" or "saeb") unless
	// CatalogPath points at a custom one.
	Dataset string `yaml:"dataset" json:"dataset" mapstructure:"dataset"`
	// CatalogPath optionally loads a JSON field catalog from disk,
	// overriding Dataset's builtin.
	CatalogPath string `yaml:"catalog_path" json:"catalog_path" mapstructure:"catalog_path"`
	// Encoding forces the input character encoding ("latin1" or "utf-8")
	// instead of trusting detection. Empty means detect.
	Encoding string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	// Files are the input paths, one per survey edition. Zip archives,
	// gzip files and plain CSVs are all accepted.
	Files []FileInput `yaml:"files" json:"files" mapstructure:"files"`
}

// FileInput is one input file with its vintage year.
type FileInput struct {
	Path string `yaml:"path" json:"path" mapstructure:"path"`
	Year int    `yaml:"year" json:"year" mapstructure:"year"`
}

// AggregationConfig controls chunked reading and grouping.
type AggregationConfig struct {
	// ChunkSize is the number of rows folded per chunk.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size" mapstructure:"chunk_size"`
	// Granularity is "state" or "region".
	Granularity string `yaml:"granularity" json:"granularity" mapstructure:"granularity"`
	// Workers bounds concurrent file processing.
	Workers int `yaml:"workers" json:"workers" mapstructure:"workers"`
	// WithStdDev adds a standard deviation column per measure.
	WithStdDev bool `yaml:"with_std_dev" json:"with_std_dev" mapstructure:"with_std_dev"`
	// Combine merges all files into one table instead of one per file.
	Combine bool `yaml:"combine" json:"combine" mapstructure:"combine"`
}

// FilterConfig selects the row subpopulation.
type FilterConfig struct {
	// Mode is one of "all", "strict", "proxy", "public", "private".
	Mode string `yaml:"mode" json:"mode" mapstructure:"mode"`
}

// OutputConfig controls the written tables.
type OutputConfig struct {
	// Dir receives one table file per (input, filter) pair.
	Dir string `yaml:"dir" json:"dir" mapstructure:"dir"`
	// Formats lists output encodings: "csv" and/or "xlsx".
	Formats []string `yaml:"formats" json:"formats" mapstructure:"formats"`
	// Delimiter for CSV outputs.
	Delimiter string `yaml:"delimiter" json:"delimiter" mapstructure:"delimiter"`
	// Columns optionally restricts and orders the emitted columns.
	Columns []string `yaml:"columns" json:"columns" mapstructure:"columns"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level" mapstructure:"level"`
	Development bool   `yaml:"development" json:"development" mapstructure:"development"`
	Encoding    string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
}

// New returns a Config populated with sensible defaults.
func New() *Config {
	return &Config{
		Inputs: InputsConfig{
			Dataset: "enem",
		},
		Aggregation: AggregationConfig{
			ChunkSize:   DefaultChunkSize,
			Granularity: "state",
			Workers:     runtime.NumCPU(),
		},
		Filter: FilterConfig{
			Mode: "all",
		},
		Output: OutputConfig{
			Dir:       ".",
			Formats:   []string{"csv"},
			Delimiter: ";",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Load reads a YAML config file into a defaulted Config. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := New()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MICROAGG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", path)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file").
			WithDetail("path", path)
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Inputs.Dataset == "" && c.Inputs.CatalogPath == "" {
		return errors.New(errors.ErrorTypeConfig, "either inputs.dataset or inputs.catalog_path must be set")
	}
	if len(c.Inputs.Files) == 0 {
		return errors.New(errors.ErrorTypeConfig, "at least one input file is required")
	}
	for i, f := range c.Inputs.Files {
		if f.Path == "" {
			return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("inputs.files[%d].path is empty", i))
		}
	}
	if c.Inputs.Encoding != "" {
		if _, ok := sniff.ForName(c.Inputs.Encoding); !ok {
			return errors.New(errors.ErrorTypeConfig, "unknown inputs.encoding").
				WithDetail("encoding", c.Inputs.Encoding)
		}
	}
	if c.Aggregation.ChunkSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "aggregation.chunk_size must be positive").
			WithDetail("chunk_size", c.Aggregation.ChunkSize)
	}
	if c.Aggregation.Workers <= 0 {
		return errors.New(errors.ErrorTypeConfig, "aggregation.workers must be positive").
			WithDetail("workers", c.Aggregation.Workers)
	}
	switch c.Aggregation.Granularity {
	case "state", "region":
	default:
		return errors.New(errors.ErrorTypeConfig, "aggregation.granularity must be state or region").
			WithDetail("granularity", c.Aggregation.Granularity)
	}
	switch strings.ToLower(c.Filter.Mode) {
	case "all", "strict", "proxy", "public", "private":
	default:
		return errors.New(errors.ErrorTypeConfig, "unknown filter.mode").
			WithDetail("mode", c.Filter.Mode)
	}
	if len(c.Output.Formats) == 0 {
		return errors.New(errors.ErrorTypeConfig, "output.formats must name at least one format")
	}
	for _, f := range c.Output.Formats {
		switch strings.ToLower(f) {
		case "csv", "xlsx":
		default:
			return errors.New(errors.ErrorTypeConfig, "unknown output format").
				WithDetail("format", f)
		}
	}
	if len(c.Output.Delimiter) != 1 {
		return errors.New(errors.ErrorTypeConfig, "output.delimiter must be a single character").
			WithDetail("delimiter", c.Output.Delimiter)
	}
	return nil
}

// DelimiterRune returns the configured CSV output delimiter.
func (c *Config) DelimiterRune() rune {
	return rune(c.Output.Delimiter[0])
}
