// Package config loads on-disk store configuration from YAML, with
// environment variable overrides, the way the broader retrieved package
// of example repos (e.g. viper/yaml-backed config loaders) configures
// long-lived services. trigo is an embedded library, so this is
// deliberately small: a handful of durability and resource-bound knobs
// rather than a general settings tree.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config controls durability cadence and resource bounds for a store.
type Config struct {
	// DataDir is the store directory holding wal.log, the checkpoint
	// marker file, atoms.snapshot, and the index/ and gate/ directories.
	DataDir string `yaml:"data_dir"`

	// CheckpointInterval is the maximum wall-clock time a caller
	// running a background checkpoint loop should wait between
	// checkpoints; the façade itself only checkpoints synchronously,
	// triggered by CheckpointWriteInterval or CheckpointWALThreshold.
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`

	// CheckpointWriteInterval triggers a checkpoint once this many
	// quad writes have accumulated since the last one.
	CheckpointWriteInterval int64 `yaml:"checkpoint_write_interval"`

	// CheckpointWALThreshold triggers an out-of-band checkpoint once
	// the WAL grows past this many bytes since the last checkpoint.
	CheckpointWALThreshold int64 `yaml:"checkpoint_wal_threshold_bytes"`

	// PoolMaxHandles bounds concurrent open store handles per dataset
	// (spec §4.G). Zero disables pooling.
	PoolMaxHandles int `yaml:"pool_max_handles"`

	// GateMaxSlots bounds concurrent open stores across processes on
	// this machine (spec §4.G cross-process gate).
	GateMaxSlots int `yaml:"gate_max_slots"`

	// GateTimeout bounds how long a store waits for a gate slot.
	GateTimeout time.Duration `yaml:"gate_timeout"`
}

// Default returns sensible defaults for a single-process embedded use.
func Default(dataDir string) Config {
	return Config{
		DataDir:                 dataDir,
		CheckpointInterval:      5 * time.Minute,
		CheckpointWriteInterval: 10000,
		CheckpointWALThreshold:  64 << 20, // 64MiB
		PoolMaxHandles:          8,
		GateMaxSlots:            32,
		GateTimeout:             30 * time.Second,
	}
}

// Load reads YAML configuration from path and applies TRIGO_*
// environment variable overrides on top of it.
func Load(path string) (Config, error) {
	cfg := Default("")

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRIGO_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TRIGO_CHECKPOINT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CheckpointInterval = d
		}
	}
	if v := os.Getenv("TRIGO_CHECKPOINT_WRITE_INTERVAL"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.CheckpointWriteInterval = n
		}
	}
	if v := os.Getenv("TRIGO_POOL_MAX_HANDLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolMaxHandles = n
		}
	}
	if v := os.Getenv("TRIGO_GATE_MAX_SLOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GateMaxSlots = n
		}
	}
}
