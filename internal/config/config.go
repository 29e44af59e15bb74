// Package config loads the server configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Engine backend names accepted by the server.
const (
	EngineLog  = "log"
	EngineBolt = "bolt"
)

type Config struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	Engine              string `yaml:"engine"`
	Dir                 string `yaml:"dir"`
	SegmentSize         int64  `yaml:"segment_size"`
	CompactionThreshold int64  `yaml:"compaction_threshold"`
	Workers             int    `yaml:"workers"`
	HTTPAddr            string `yaml:"http_addr"`
	MetricsAddr         string `yaml:"metrics_addr"`
	LogLevel            string `yaml:"log_level"`
}

// Load reads configuration from a YAML file if path is non-empty, applies
// environment-variable overrides (LOGKV_* prefix), fills defaults and
// validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 4000
	}
	if cfg.Engine == "" {
		cfg.Engine = EngineLog
	}
	if cfg.Dir == "" {
		cfg.Dir = "./data"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func (cfg *Config) Validate() error {
	if cfg.Engine != EngineLog && cfg.Engine != EngineBolt {
		return fmt.Errorf("unknown engine %q (expected %q or %q)", cfg.Engine, EngineLog, EngineBolt)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.SegmentSize < 0 || cfg.CompactionThreshold < 0 {
		return fmt.Errorf("segment_size and compaction_threshold must be non-negative")
	}
	return nil
}

// Addr returns the host:port the TCP server binds.
func (cfg *Config) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOGKV_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("LOGKV_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("LOGKV_ENGINE"); v != "" {
		cfg.Engine = v
	}
	if v := os.Getenv("LOGKV_DIR"); v != "" {
		cfg.Dir = v
	}
	if v := os.Getenv("LOGKV_SEGMENT_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.SegmentSize = n
		}
	}
	if v := os.Getenv("LOGKV_COMPACTION_THRESHOLD"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.CompactionThreshold = n
		}
	}
	if v := os.Getenv("LOGKV_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("LOGKV_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("LOGKV_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("LOGKV_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
