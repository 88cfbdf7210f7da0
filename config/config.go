// Package config provides configuration loading and management for aces.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete aces configuration
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Paper   PaperConfig   `yaml:"paper"`
	NATS    NATSConfig    `yaml:"nats"`
	Watch   WatchConfig   `yaml:"watch"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DataConfig configures the TFRecord dataset layout
type DataConfig struct {
	// TrainingDir holds the training split shards
	TrainingDir string `yaml:"training_dir"`
	// TestingDir holds the testing split shards
	TestingDir string `yaml:"testing_dir"`
	// ValidationDir holds the validation split shards
	ValidationDir string `yaml:"validation_dir"`
	// OutputDir receives stacked and fetched shards
	OutputDir string `yaml:"output_dir"`
	// Features are the input band names in channel order
	Features []string `yaml:"features"`
	// Labels are the label band names (first is the class band)
	Labels []string `yaml:"labels"`
	// PatchSize is the square patch side length in pixels (0 = scalar)
	PatchSize int `yaml:"patch_size"`
	// OutClassNum is the segmentation class count
	OutClassNum int `yaml:"out_class_num"`
	// BatchSize is the batch size the prepared shards are consumed with
	BatchSize int `yaml:"batch_size"`
	// Compress gzips written shards, matching the Earth Engine export default
	Compress bool `yaml:"compress"`
	// ShardPattern matches shard filenames inside the split directories
	ShardPattern string `yaml:"shard_pattern"`
}

// PaperConfig configures manuscript validation
type PaperConfig struct {
	// SubmissionsDir is watched for incoming JATS manuscripts
	SubmissionsDir string `yaml:"submissions_dir"`
	// DTDVersion is the expected dtd-version attribute (default: "1.2")
	DTDVersion string `yaml:"dtd_version"`
	// RequireORCID fails contributors without an ORCID
	RequireORCID bool `yaml:"require_orcid"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
}

// WatchConfig configures the serve-mode file watcher
type WatchConfig struct {
	// Enabled turns directory watching on
	Enabled bool `yaml:"enabled"`
	// Debounce is the quiet period before an event is delivered
	Debounce time.Duration `yaml:"debounce"`
	// PaperExtensions are the file extensions watched in the submissions dir
	PaperExtensions []string `yaml:"paper_extensions"`
	// DataExtensions are the file extensions watched in the split dirs
	DataExtensions []string `yaml:"data_extensions"`
	// ExcludeDirs are directory names skipped while watching
	ExcludeDirs []string `yaml:"exclude_dirs"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for the /metrics endpoint
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			TrainingDir:   "data/training",
			TestingDir:    "data/testing",
			ValidationDir: "data/validation",
			OutputDir:     "data/output",
			Features: []string{
				"red_before", "green_before", "blue_before", "nir_before",
				"red_during", "green_during", "blue_during", "nir_during",
			},
			Labels:       []string{"class"},
			PatchSize:    256,
			OutClassNum:  2,
			BatchSize:    64,
			Compress:     true,
			ShardPattern: "*.tfrecord.gz",
		},
		Paper: PaperConfig{
			SubmissionsDir: "submissions",
			DTDVersion:     "1.2",
			RequireORCID:   false,
		},
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
		},
		Watch: WatchConfig{
			Enabled:         true,
			Debounce:        500 * time.Millisecond,
			PaperExtensions: []string{".xml"},
			DataExtensions:  []string{".tfrecord", ".gz"},
			ExcludeDirs:     []string{".git", "node_modules"},
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if len(c.Data.Features) == 0 {
		return fmt.Errorf("data.features is required")
	}
	if len(c.Data.Labels) == 0 {
		return fmt.Errorf("data.labels is required")
	}
	if c.Data.PatchSize < 0 {
		return fmt.Errorf("data.patch_size must not be negative")
	}
	if c.Data.OutClassNum < 2 {
		return fmt.Errorf("data.out_class_num must be at least 2")
	}
	if c.Data.BatchSize < 0 {
		return fmt.Errorf("data.batch_size must not be negative")
	}
	if c.Data.ShardPattern == "" {
		return fmt.Errorf("data.shard_pattern is required")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

// SplitPattern returns the shard glob pattern for a split directory
func (c *DataConfig) SplitPattern(dir string) string {
	return filepath.Join(dir, "**", c.ShardPattern)
}

// LoadFromFile loads configuration from a YAML file. Shell-style
// ${VAR} references are expanded from the environment before parsing.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.Expand(string(data), func(name string) string {
		return os.Getenv(name)
	})

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Data
	if other.Data.TrainingDir != "" {
		c.Data.TrainingDir = other.Data.TrainingDir
	}
	if other.Data.TestingDir != "" {
		c.Data.TestingDir = other.Data.TestingDir
	}
	if other.Data.ValidationDir != "" {
		c.Data.ValidationDir = other.Data.ValidationDir
	}
	if other.Data.OutputDir != "" {
		c.Data.OutputDir = other.Data.OutputDir
	}
	if len(other.Data.Features) > 0 {
		c.Data.Features = other.Data.Features
	}
	if len(other.Data.Labels) > 0 {
		c.Data.Labels = other.Data.Labels
	}
	if other.Data.PatchSize != 0 {
		c.Data.PatchSize = other.Data.PatchSize
	}
	if other.Data.OutClassNum != 0 {
		c.Data.OutClassNum = other.Data.OutClassNum
	}
	if other.Data.BatchSize != 0 {
		c.Data.BatchSize = other.Data.BatchSize
	}
	if other.Data.Compress {
		c.Data.Compress = true
	}
	if other.Data.ShardPattern != "" {
		c.Data.ShardPattern = other.Data.ShardPattern
	}

	// Paper
	if other.Paper.SubmissionsDir != "" {
		c.Paper.SubmissionsDir = other.Paper.SubmissionsDir
	}
	if other.Paper.DTDVersion != "" {
		c.Paper.DTDVersion = other.Paper.DTDVersion
	}
	if other.Paper.RequireORCID {
		c.Paper.RequireORCID = true
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}

	// Watch
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if len(other.Watch.PaperExtensions) > 0 {
		c.Watch.PaperExtensions = other.Watch.PaperExtensions
	}
	if len(other.Watch.DataExtensions) > 0 {
		c.Watch.DataExtensions = other.Watch.DataExtensions
	}
	if len(other.Watch.ExcludeDirs) > 0 {
		c.Watch.ExcludeDirs = other.Watch.ExcludeDirs
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}
