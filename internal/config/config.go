// Package config loads localns's YAML configuration file and applies
// LOCALNS_<KEY> environment variable overrides on top of it.
//
// Grounded on the teacher's internal/config/config.go (a plain struct
// with a constructor supplying defaults), generalized to spec.md's
// nested YAML shape. The env overrides (prefix stripped, the rest
// lower-cased and matched against the snake_case yaml key of a top-level
// scalar field) are a reduced form of original_source/src/config/mod.rs's
// map_env: nested keys cannot be set from the environment. They are
// hand-written since no generic env/config-merging library is a direct
// dependency anywhere in the pack that expresses this rule without being
// entirely wrapped anyway (see DESIGN.md).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceKind identifies which Source implementation a configured source
// entry should be built with.
type SourceKind string

const (
	KindFile    SourceKind = "file"
	KindDhcp    SourceKind = "dhcp"
	KindDocker  SourceKind = "docker"
	KindTraefik SourceKind = "traefik"
	KindRemote  SourceKind = "remote"
)

// SourceConfig is one entry in the sources list. Only the fields
// relevant to Kind are populated; the rest are zero.
type SourceConfig struct {
	Kind SourceKind `yaml:"kind"`

	Path      string `yaml:"path,omitempty"`       // file
	LeaseFile string `yaml:"lease_file,omitempty"` // dhcp
	Domain    string `yaml:"domain,omitempty"`     // dhcp
	Host      string `yaml:"host,omitempty"`       // docker
	BaseURL   string `yaml:"base_url,omitempty"`   // traefik, remote
	Target    string `yaml:"target,omitempty"`     // traefik

	TTL  time.Duration `yaml:"ttl,omitempty"`
	Poll time.Duration `yaml:"poll,omitempty"`
}

// ZoneConfig is one entry in the zones map, keyed by its origin Fqdn.
// Fields left unset (nil pointer for ttl/authoritative, empty string for
// upstream) inherit from whatever ancestor zone or defaults block the
// query engine's overlay fold has already accumulated.
type ZoneConfig struct {
	Upstream      string         `yaml:"upstream,omitempty"`
	TTL           *time.Duration `yaml:"ttl,omitempty"`
	Authoritative *bool          `yaml:"authoritative,omitempty"`
}

// DefaultsConfig is the top-level defaults{upstream?,ttl?} block applied
// to every name before any zone-specific override.
type DefaultsConfig struct {
	Upstream string        `yaml:"upstream,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
}

// Config is localns's full configuration.
type Config struct {
	ListenAddr      string                `yaml:"listen_addr"`
	APIAddr         string                `yaml:"api_addr"`
	PIDFile         string                `yaml:"pid_file,omitempty"`
	LogLevel        string                `yaml:"log_level"`
	UpstreamTimeout time.Duration         `yaml:"upstream_timeout"`
	CacheSize       int                   `yaml:"cache_size"`
	Defaults        DefaultsConfig        `yaml:"defaults"`
	Zones           map[string]ZoneConfig `yaml:"zones"`
	Sources         []SourceConfig        `yaml:"sources"`
}

// Default returns a Config with the same defaults-first posture as the
// teacher's NewConfig, scaled to this server's fields.
func Default() *Config {
	return &Config{
		ListenAddr:      "0.0.0.0:53",
		APIAddr:         "0.0.0.0:8080",
		LogLevel:        "info",
		UpstreamTimeout: 5 * time.Second,
		CacheSize:       10000,
	}
}

// Load reads and parses the YAML config file at path, then applies any
// LOCALNS_<KEY> environment overrides found in os.Environ().
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg, os.Environ())
	return cfg, nil
}

// ResolveConfigPath implements spec.md's precedence for locating the
// config file: an explicit CLI argument, else LOCALNS_CONFIG, else
// ./config.yaml.
func ResolveConfigPath(arg string) string {
	if arg != "" {
		return arg
	}
	if env := os.Getenv("LOCALNS_CONFIG"); env != "" {
		return env
	}
	return "./config.yaml"
}

const envPrefix = "LOCALNS_"

// applyEnvOverrides applies LOCALNS_<KEY> variables: LOCALNS_LISTEN_ADDR
// overrides ListenAddr, LOCALNS_UPSTREAM_TIMEOUT overrides
// UpstreamTimeout, by stripping the prefix, lower-casing the rest, and
// matching it against the field's snake_case yaml key. Only the server's
// top-level scalar fields are overridable this way — zones/sources are
// configured exclusively via the YAML file.
func applyEnvOverrides(cfg *Config, environ []string) {
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, envPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(k, envPrefix))
		switch key {
		case "listen_addr":
			cfg.ListenAddr = v
		case "api_addr":
			cfg.APIAddr = v
		case "pid_file":
			cfg.PIDFile = v
		case "log_level":
			cfg.LogLevel = v
		case "upstream_timeout":
			if d, err := time.ParseDuration(v); err == nil {
				cfg.UpstreamTimeout = d
			}
		case "cache_size":
			if n, err := strconv.Atoi(v); err == nil {
				cfg.CacheSize = n
			}
		}
	}
}
