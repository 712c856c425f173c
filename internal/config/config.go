// Package config loads the YAML configuration file. String fields in
// provider and store blocks support ${ENV_VAR} expansion so secrets
// stay out of the file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/libreassistant/libreassistant/internal/auth"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Models       ModelsConfig       `yaml:"models"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Plugins      PluginsConfig      `yaml:"plugins"`
	Cache        CacheConfig        `yaml:"cache"`
	Store        StoreConfig        `yaml:"store"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Auth         AuthConfig         `yaml:"auth"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

type ModelsConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
	Primary   string                    `yaml:"primary"`
	Fallbacks []string                  `yaml:"fallbacks"`
}

type ProviderConfig struct {
	BaseURL string            `yaml:"base_url"`
	APIKey  string            `yaml:"api_key"`
	API     string            `yaml:"api"`
	Models  []ModelDefinition `yaml:"models"`
}

type ModelDefinition struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	ContextWindow int    `yaml:"context_window"`
	MaxTokens     int    `yaml:"max_tokens"`
}

type OrchestratorConfig struct {
	MaxIterations   int    `yaml:"max_iterations"`
	ParseRetryLimit int    `yaml:"parse_retry_limit"`
	PluginTimeout   string `yaml:"plugin_timeout"`
	ContextBudget   int    `yaml:"context_budget"`
}

// PluginTimeoutDuration parses the default per-plugin timeout; zero
// means use the executor's built-in default.
func (o OrchestratorConfig) PluginTimeoutDuration() (time.Duration, error) {
	return parseDuration(o.PluginTimeout)
}

type PluginsConfig struct {
	External []ExternalPlugin `yaml:"external"`
	Lua      []LuaPlugin      `yaml:"lua"`
	HTTP     []string         `yaml:"http_packages"`
	FileIO   FileIOConfig     `yaml:"fileio"`
}

// ExternalPlugin is a subprocess or remote plugin endpoint.
type ExternalPlugin struct {
	Name    string `yaml:"name"`
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
	Timeout string `yaml:"timeout"`
}

func (p ExternalPlugin) TimeoutDuration() (time.Duration, error) {
	return parseDuration(p.Timeout)
}

type LuaPlugin struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Script      string `yaml:"script"`
}

type FileIOConfig struct {
	Enabled bool   `yaml:"enabled"`
	Root    string `yaml:"root"`
}

type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	TTL     string `yaml:"ttl"`
}

func (c CacheConfig) TTLDuration() (time.Duration, error) {
	return parseDuration(c.TTL)
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

type SchedulerConfig struct {
	Jobs []JobConfig `yaml:"jobs"`
}

type JobConfig struct {
	Name     string         `yaml:"name"`
	Schedule string         `yaml:"schedule"`
	Plugin   string         `yaml:"plugin"`
	Input    map[string]any `yaml:"input"`
}

type AuthConfig struct {
	Profiles  []auth.ProfileSpec `yaml:"profiles"`
	Cooldowns CooldownConfig     `yaml:"cooldowns"`
}

type CooldownConfig struct {
	Initial    string `yaml:"initial"`
	Max        string `yaml:"max"`
	Multiplier int    `yaml:"multiplier"`
}

// Tracker builds the runtime cooldown settings, falling back to the
// defaults for unset fields.
func (c CooldownConfig) Tracker() (auth.CooldownConfig, error) {
	cfg := auth.DefaultCooldownConfig()
	if c.Initial != "" {
		d, err := time.ParseDuration(c.Initial)
		if err != nil {
			return cfg, fmt.Errorf("cooldowns.initial: %w", err)
		}
		cfg.Initial = d
	}
	if c.Max != "" {
		d, err := time.ParseDuration(c.Max)
		if err != nil {
			return cfg, fmt.Errorf("cooldowns.max: %w", err)
		}
		cfg.Max = d
	}
	if c.Multiplier > 0 {
		cfg.Multiplier = c.Multiplier
	}
	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)}`)

func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func expandSecrets(cfg *Config) {
	for name, p := range cfg.Models.Providers {
		p.BaseURL = expandEnv(p.BaseURL)
		p.APIKey = expandEnv(p.APIKey)
		cfg.Models.Providers[name] = p
	}
	cfg.Store.DSN = expandEnv(cfg.Store.DSN)
	cfg.Cache.Addr = expandEnv(cfg.Cache.Addr)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	expandSecrets(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8321"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.DSN == "" {
		cfg.Store.DSN = "libreassistant.db"
	}
}

func validate(cfg *Config) error {
	if cfg.Models.Primary == "" {
		return fmt.Errorf("models.primary is required")
	}
	switch cfg.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", cfg.Store.Driver)
	}
	for _, job := range cfg.Scheduler.Jobs {
		if job.Schedule == "" || job.Plugin == "" {
			return fmt.Errorf("scheduler job %q needs schedule and plugin", job.Name)
		}
	}
	return nil
}
