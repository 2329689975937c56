// Package config holds the run configuration shared by every mcspy component.
//
// A Config is built once at startup and then passed by value; components never
// read process-wide state. Sources are applied in this order, later ones
// overriding earlier ones:
//  1. Default()
//  2. YAML file (LoadFile)
//  3. Environment variables (ApplyEnv), prefixed MCSPY_
//  4. Command-line flags (applied by cmd/mcspy)
//
// Example:
//
//	cfg := config.Default()
//	cfg, err := config.LoadFile(cfg, "mcspy.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err = config.ApplyEnv(cfg, os.Getenv)
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/mcspy/internal/cluster"
)

// Defaults applied by Default().
const (
	DefaultDumpFolder     = "/tmp/mcspy-dump"
	DefaultTimeout        = 2 * time.Second
	DefaultWorkers        = 4
	DefaultFrequencyLimit = 10
	DefaultPatternLimit   = 20
	DefaultMinPrefixCount = 5
)

// MatchAll is the key filter value that disables filtering.
const MatchAll = "."

// Environment variable names read by ApplyEnv.
const (
	EnvServers    = "MCSPY_SERVERS"
	EnvDumpFolder = "MCSPY_DUMP_FOLDER"
	EnvTimeout    = "MCSPY_TIMEOUT"
	EnvWorkers    = "MCSPY_WORKERS"
	EnvKeyFilter  = "MCSPY_KEY_FILTER"
	EnvConfig     = "MCSPY_CONFIG" // path of the YAML file, read by cmd/mcspy
)

var (
	// ErrNoServers is returned by Validate when the server list is empty.
	ErrNoServers = errors.New("no cache servers configured")
	// ErrInvalidConfig wraps every other validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the immutable run configuration.
// Treat values as read-only once Validate has passed.
type Config struct {
	Servers        []cluster.ServerInfo // Servers to scan, in report order
	DumpFolder     string               // Folder holding the raw and parsed snapshots
	Slab           int                  // Single slab to scan, 0 means the full range
	KeyFilter      string               // Substring a raw key must contain; "" or "." match all
	Refresh        bool                 // Rescan even if a snapshot exists
	Raw            bool                 // List raw records instead of parsed ones
	Timeout        time.Duration        // Connect and per-command deadline
	Workers        int                  // Servers scanned in parallel
	FrequencyLimit int                  // Rows in frequency tables
	PatternLimit   int                  // Rows in pattern tables
	MinPrefixCount int                  // Records a prefix needs for deep analysis
	AssumeYes      bool                 // Skip interactive confirmation
	Cleanup        bool                 // Remove snapshot files after a usage report
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Servers:        []cluster.ServerInfo{{Host: "localhost", Port: cluster.DefaultPort}},
		DumpFolder:     DefaultDumpFolder,
		Refresh:        true,
		Timeout:        DefaultTimeout,
		Workers:        DefaultWorkers,
		FrequencyLimit: DefaultFrequencyLimit,
		PatternLimit:   DefaultPatternLimit,
		MinPrefixCount: DefaultMinPrefixCount,
	}
}

// fileConfig mirrors Config for YAML decoding. Pointer fields distinguish
// "absent" from the zero value so a file only overrides what it names.
type fileConfig struct {
	Servers        []string       `yaml:"servers"`
	DumpFolder     *string        `yaml:"dump_folder"`
	Slab           *int           `yaml:"slab"`
	KeyFilter      *string        `yaml:"key_filter"`
	Refresh        *bool          `yaml:"refresh"`
	Timeout        *time.Duration `yaml:"timeout"`
	Workers        *int           `yaml:"workers"`
	FrequencyLimit *int           `yaml:"frequency_limit"`
	PatternLimit   *int           `yaml:"pattern_limit"`
	MinPrefixCount *int           `yaml:"min_prefix_count"`
	Cleanup        *bool          `yaml:"cleanup"`
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(cfg, data)
}

// Parse overlays YAML document data onto cfg.
func Parse(cfg Config, data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("%w: yaml: %v", ErrInvalidConfig, err)
	}

	if len(fc.Servers) > 0 {
		servers, err := cluster.ParseServerList(strings.Join(fc.Servers, ","))
		if err != nil {
			return cfg, err
		}
		cfg.Servers = servers
	}
	if fc.DumpFolder != nil {
		cfg.DumpFolder = *fc.DumpFolder
	}
	if fc.Slab != nil {
		cfg.Slab = *fc.Slab
	}
	if fc.KeyFilter != nil {
		cfg.KeyFilter = *fc.KeyFilter
	}
	if fc.Refresh != nil {
		cfg.Refresh = *fc.Refresh
	}
	if fc.Timeout != nil {
		cfg.Timeout = *fc.Timeout
	}
	if fc.Workers != nil {
		cfg.Workers = *fc.Workers
	}
	if fc.FrequencyLimit != nil {
		cfg.FrequencyLimit = *fc.FrequencyLimit
	}
	if fc.PatternLimit != nil {
		cfg.PatternLimit = *fc.PatternLimit
	}
	if fc.MinPrefixCount != nil {
		cfg.MinPrefixCount = *fc.MinPrefixCount
	}
	if fc.Cleanup != nil {
		cfg.Cleanup = *fc.Cleanup
	}

	return cfg, nil
}

// ApplyEnv overlays MCSPY_* variables read through getenv onto cfg.
// Unset or empty variables leave the current value alone.
func ApplyEnv(cfg Config, getenv func(string) string) (Config, error) {
	if v := getenv(EnvServers); v != "" {
		servers, err := cluster.SplitServerList(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvServers, err)
		}
		cfg.Servers = servers
	}
	if v := getenv(EnvDumpFolder); v != "" {
		cfg.DumpFolder = v
	}
	if v := getenv(EnvKeyFilter); v != "" {
		cfg.KeyFilter = v
	}
	if v := getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvTimeout, err)
		}
		cfg.Timeout = d
	}
	if v := getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvWorkers, err)
		}
		cfg.Workers = n
	}
	return cfg, nil
}

// Validate reports the first problem found in cfg.
func (c Config) Validate() error {
	if len(c.Servers) == 0 {
		return ErrNoServers
	}
	if c.DumpFolder == "" {
		return fmt.Errorf("%w: dump folder is empty", ErrInvalidConfig)
	}
	if c.Slab < 0 {
		return fmt.Errorf("%w: slab %d is negative", ErrInvalidConfig, c.Slab)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	}
	if c.FrequencyLimit < 1 || c.PatternLimit < 1 {
		return fmt.Errorf("%w: table limits must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// KeyMatches applies the key filter to a raw key.
func (c Config) KeyMatches(key string) bool {
	if c.KeyFilter == "" || c.KeyFilter == MatchAll {
		return true
	}
	return strings.Contains(key, c.KeyFilter)
}
