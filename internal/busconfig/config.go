// Package busconfig holds the explicit Runtime configuration value that
// spec.md §9 calls for in place of the source's static globals
// (compression rules, default endianness): "Model these as an explicit
// Runtime value constructed at startup and passed into every component".
package busconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/allbus/corebus/internal/wire"
)

// DefaultSearchPaths returns the config file search order, following the
// convention of internal/config.DefaultSearchPaths in the teacher repo:
// busd.yaml in the working directory first, then well-known locations.
// An explicit path is handled by FindConfig, not listed here.
func DefaultSearchPaths() []string {
	paths := []string{"busd.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "busd", "busd.yaml"))
	}
	paths = append(paths, "/etc/busd/busd.yaml")
	return paths
}

// FindConfig locates a config file: explicit if given and present,
// otherwise the first of DefaultSearchPaths that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config is the on-disk shape of a bus attachment's ambient configuration.
type Config struct {
	Limits     LimitsConfig     `yaml:"limits"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Observer   ObserverConfig   `yaml:"observer"`
	LogLevel   string           `yaml:"log_level"`
}

// LimitsConfig mirrors spec.md §6 "Limits".
type LimitsConfig struct {
	MaxPacketBytes  int `yaml:"max_packet_bytes"`
	MaxHeaderBytes  int `yaml:"max_header_bytes"`
	MaxNameLength   int `yaml:"max_name_length"`
	MaxHandles      int `yaml:"max_handles"`
}

// DispatcherConfig controls the local endpoint's worker pool.
type DispatcherConfig struct {
	Workers        int           `yaml:"workers"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// ObserverConfig controls the discovery engine's keep-alive pinger.
type ObserverConfig struct {
	PingGroup    string        `yaml:"ping_group"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

// Default returns the baseline configuration matching spec.md's stated
// defaults: 128 KiB max packet, 64 KiB max header, 255-byte names, a
// 4-worker dispatcher pool, and a 30s/"OBSERVER" keep-alive pinger.
func Default() Config {
	return Config{
		Limits: LimitsConfig{
			MaxPacketBytes: wire.MaxPacketSize,
			MaxHeaderBytes: wire.MaxHeaderSize,
			MaxNameLength:  wire.MaxNameLength,
			MaxHandles:     16,
		},
		Dispatcher: DispatcherConfig{
			Workers:        4,
			DefaultTimeout: 25 * time.Second,
		},
		Observer: ObserverConfig{
			PingGroup:    "OBSERVER",
			PingInterval: 30 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load reads and parses the YAML config at path, filling any unset
// fields from Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Limits.MaxPacketBytes == 0 {
		cfg.Limits.MaxPacketBytes = wire.MaxPacketSize
	}
	if cfg.Limits.MaxHeaderBytes == 0 {
		cfg.Limits.MaxHeaderBytes = wire.MaxHeaderSize
	}
	if cfg.Dispatcher.Workers == 0 {
		cfg.Dispatcher.Workers = 4
	}
	if cfg.Observer.PingInterval == 0 {
		cfg.Observer.PingInterval = 30 * time.Second
	}
	if cfg.Observer.PingGroup == "" {
		cfg.Observer.PingGroup = "OBSERVER"
	}
	return cfg, nil
}
