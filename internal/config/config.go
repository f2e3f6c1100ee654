// Package config resolves the configuration record consumed by the core
// services, grounded in the teacher's internal/config/config.go and
// pkg/config/types.go (yaml-tagged struct, Default() constructor, env
// overrides layered on top). The core never reads files or the
// environment directly; callers (CLI, tests) hand it a *Config.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the resolved record described in spec.md §6.
type Config struct {
	DataDirectory     string `yaml:"data_directory"`
	DownloadDirectory string `yaml:"download_directory"`
	DefaultPort       int    `yaml:"default_port"`

	MaxConcurrentTransfers int `yaml:"max_concurrent_transfers"`
	ChunkSize              int `yaml:"chunk_size"`

	ConnectionTimeoutSeconds int `yaml:"connection_timeout_seconds"`
	KeepAliveIntervalSeconds int `yaml:"keep_alive_interval_seconds"`
	MaxConnections           int `yaml:"max_connections"`

	MaxFileSizeMB         int64    `yaml:"max_file_size_mb"`
	AllowedFileExtensions []string `yaml:"allowed_file_extensions"`

	RepoBackend string `yaml:"repo_backend"`
	DBPath      string `yaml:"db_path"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogRoll   string `yaml:"log_roll"`
}

// Default returns the baseline configuration the teacher's NodeConfig
// establishes before any file or environment override is applied.
func Default() *Config {
	return &Config{
		DataDirectory:            "data",
		DownloadDirectory:        "data/downloads",
		DefaultPort:              4001,
		MaxConcurrentTransfers:   16,
		ChunkSize:                1024 * 1024,
		ConnectionTimeoutSeconds: 30,
		KeepAliveIntervalSeconds: 15,
		MaxConnections:           200,
		MaxFileSizeMB:            1024,
		AllowedFileExtensions:    nil,
		RepoBackend:              "memory",
		DBPath:                   "cipherstream.db",
		LogLevel:                 "info",
		LogFormat:                "text",
		LogRoll:                  "daily",
	}
}

// MaxFileSizeBytes converts the MB-denominated config field to bytes for
// admission-policy consumption.
func (c *Config) MaxFileSizeBytes() uint64 {
	if c.MaxFileSizeMB <= 0 {
		return 0
	}
	return uint64(c.MaxFileSizeMB) * 1024 * 1024
}

// ApplyEnvOverrides layers the environment inputs named in spec.md §6 on
// top of an already-loaded Config, the same precedence order the
// teacher's config loader uses (file defaults, then environment).
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("REPO_BACKEND"); v != "" {
		c.RepoBackend = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("LOG_ROLL"); v != "" {
		c.LogRoll = v
	}
	if v := os.Getenv("CIPHERSTREAM_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid CIPHERSTREAM_PORT %q: %w", v, err)
		}
		c.DefaultPort = port
	}
	return nil
}
