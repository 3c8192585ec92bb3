package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/evsim/core/eventcache"
	"github.com/kilianp07/evsim/core/metrics"
	"github.com/kilianp07/evsim/core/synth"
	"github.com/kilianp07/evsim/infra/simulator"
)

// EnvPrefix marks environment overrides. Nested keys use "__", e.g.
// EVSIM_EVENT_CACHE__BACKEND=redis.
const EnvPrefix = "EVSIM_"

type Config struct {
	CacheDir   string           `json:"cache_dir"`
	ResultsDir string           `json:"results_dir"`
	Synthesis  synth.Options    `json:"synthesis"`
	EventCache EventCacheConfig `json:"event_cache"`
	Ledger     LedgerConfig     `json:"ledger"`
	Metrics    metrics.Config   `json:"metrics"`
	Sentry     SentryConfig     `json:"sentry"`
	Simulator  simulator.Config `json:"simulator"`
	Sessions   SessionsConfig   `json:"sessions"`
}

// SessionsConfig locates the raw session dumps.
type SessionsConfig struct {
	Path string `json:"path"`
}

// EventCacheConfig selects where built event queues are kept.
type EventCacheConfig struct {
	// Backend is "file" (under CacheDir) or "redis".
	Backend string                 `json:"backend"`
	Redis   eventcache.RedisConfig `json:"redis"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies sane defaults to every section.
func (c *Config) SetDefaults() {
	if c.CacheDir == "" {
		c.CacheDir = "data"
	}
	if c.ResultsDir == "" {
		c.ResultsDir = "results"
	}
	c.Synthesis.SetDefaults()
	if c.EventCache.Backend == "" {
		c.EventCache.Backend = "file"
	}
	if c.EventCache.Backend == "redis" {
		c.EventCache.Redis.SetDefaults()
	}
	c.Ledger.SetDefaults(c.ResultsDir)
}

// Validate checks the loaded configuration. All section errors are reported.
func (c Config) Validate() error {
	var errs []error
	if err := c.Synthesis.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("synthesis: %w", err))
	}
	switch c.EventCache.Backend {
	case "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("event_cache: unknown backend %q", c.EventCache.Backend))
	}
	if err := c.Ledger.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ledger: %w", err))
	}
	if c.Simulator.Command != "" {
		if err := c.Simulator.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("simulator: %w", err))
		}
	}
	return errors.Join(errs...)
}
