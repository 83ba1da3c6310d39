package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models dailyvision.yml.
type Config struct {
	Timezone  string    `yaml:"timezone"`
	Budget    Budget    `yaml:"budget"`
	Generator Generator `yaml:"generator"`
	Backend   Backend   `yaml:"backend"`
	Webhooks  []Webhook `yaml:"webhooks"`
}

type Budget struct {
	DefaultTotalMinutes int `yaml:"default_total_minutes"`
	MaxTotalMinutes     int `yaml:"max_total_minutes"`
}

type Generator struct {
	MaxActions       int `yaml:"max_actions"`
	MinActionMinutes int `yaml:"min_action_minutes"`
	MaxActionMinutes int `yaml:"max_action_minutes"`
	TimeoutSeconds   int `yaml:"timeout_seconds"`
	RateLimit        struct {
		Requests      int `yaml:"requests"`
		WindowSeconds int `yaml:"window_seconds"`
	} `yaml:"rate_limit"`
	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds"`
		Size       int `yaml:"size"`
	} `yaml:"cache"`
}

type Backend struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
}

// APIKeyEnvOrDefault names the environment variable holding the provider key.
func (b Backend) APIKeyEnvOrDefault() string {
	if b.APIKeyEnv != "" {
		return b.APIKeyEnv
	}
	return "OPENAI_API_KEY"
}

type Webhook struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

func (w Webhook) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with dv config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Timezone != "" && !strings.EqualFold(c.Timezone, "local") {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("config.timezone: %w", err)
		}
	}
	if c.Budget.MaxTotalMinutes < 0 || c.Budget.MaxTotalMinutes > 1440 {
		return fmt.Errorf("config.budget.max_total_minutes must be between 0 and 1440")
	}
	if c.Budget.DefaultTotalMinutes < 0 || c.Budget.DefaultTotalMinutes > c.Budget.MaxTotalMinutes {
		return fmt.Errorf("config.budget.default_total_minutes must be between 0 and max_total_minutes")
	}
	g := c.Generator
	if g.MaxActions <= 0 {
		return fmt.Errorf("config.generator.max_actions must be positive")
	}
	if g.MinActionMinutes < 5 || g.MaxActionMinutes > 60 || g.MinActionMinutes > g.MaxActionMinutes {
		return fmt.Errorf("config.generator action minutes must satisfy 5 <= min <= max <= 60")
	}
	if g.TimeoutSeconds <= 0 {
		return fmt.Errorf("config.generator.timeout_seconds must be positive")
	}
	if g.RateLimit.Requests <= 0 || g.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("config.generator.rate_limit requires positive requests and window_seconds")
	}
	if g.Cache.TTLSeconds <= 0 || g.Cache.Size <= 0 {
		return fmt.Errorf("config.generator.cache requires positive ttl_seconds and size")
	}
	switch c.Backend.Provider {
	case "", "none", "openai", "ollama":
	default:
		return fmt.Errorf("config.backend.provider must be one of none, openai, ollama")
	}
	if c.Backend.Temperature < 0 || c.Backend.Temperature > 2 {
		return fmt.Errorf("config.backend.temperature must be between 0 and 2")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		for _, ev := range hook.Events {
			if ev == "" {
				return fmt.Errorf("config.webhooks[%d] has empty event type", i)
			}
		}
	}
	return nil
}

// locations memoizes resolved zones by name.
var locations sync.Map

// Location resolves the configured time zone; empty or "local" means
// time.Local. Each zone name is loaded once per process.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	if loc, ok := locations.Load(c.Timezone); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	actual, _ := locations.LoadOrStore(c.Timezone, loc)
	return actual.(*time.Location)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "dailyvision.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Sections missing
// from data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `timezone: local

budget:
  default_total_minutes: 60
  max_total_minutes: 1440

generator:
  max_actions: 2
  min_action_minutes: 5
  max_action_minutes: 25
  timeout_seconds: 20
  # rate_limit and cache are held in process memory: they span requests
  # under dv serve, while each one-shot dv command starts fresh.
  rate_limit:
    requests: 10
    window_seconds: 60
  cache:
    ttl_seconds: 300
    size: 1024

backend:
  provider: none
  model: ""
  api_key_env: OPENAI_API_KEY
  temperature: 0.7

webhooks: []
`
