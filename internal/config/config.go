package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the YAML configuration.
type Config struct {
	Version     int                 `yaml:"version"`
	Global      GlobalConfig        `yaml:"global"`
	Explorers   map[string]Explorer `yaml:"explorers"`
	Collections []Collection        `yaml:"collections"`
	Notify      *Notify             `yaml:"notify,omitempty"`
}

type GlobalConfig struct {
	DataDir         string `yaml:"data_dir"`
	CacheDir        string `yaml:"cache_dir"`
	DBPath          string `yaml:"db_path"`
	Workers         int    `yaml:"workers"`
	RequestInterval string `yaml:"request_interval"`
	RetryDelay      string `yaml:"retry_delay"`

	requestInterval time.Duration
	retryDelay      time.Duration
}

// RequestIntervalDuration is the minimum delay between explorer requests.
func (g GlobalConfig) RequestIntervalDuration() time.Duration { return g.requestInterval }

// RetryDelayDuration is the base backoff delay after a retryable failure.
func (g GlobalConfig) RetryDelayDuration() time.Duration { return g.retryDelay }

// Explorer configures one chain's explorer endpoint, keyed by chain id
// (bitcoin, litecoin, decred, ethereum).
type Explorer struct {
	Type    string `yaml:"type"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	ChainID uint64 `yaml:"chain_id"`
}

// Collection names one puzzle collection document under data_dir.
type Collection struct {
	ID   string `yaml:"id"`
	File string `yaml:"file"`
}

// Notify configures the optional webhook fired when a puzzle's history gains
// a terminal event.
type Notify struct {
	Type       string `yaml:"type"`
	WebhookURL string `yaml:"webhook_url"`
	Template   string `yaml:"template"`
	Method     string `yaml:"method"`
}

var envPattern = regexp.MustCompile(`\${([A-Za-z_][A-Za-z0-9_]*)}`)

// Load reads, interpolates env vars, parses YAML, applies defaults, and
// validates.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func interpolateEnv(input string) (string, error) {
	missing := []string{}
	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(dedup(missing), ", "))
	}
	return out, nil
}

func (c *Config) applyDefaults() error {
	if c.Global.DataDir == "" {
		c.Global.DataDir = "data"
	}
	if c.Global.CacheDir == "" {
		c.Global.CacheDir = filepath.Join(c.Global.DataDir, "cache")
	}
	if c.Global.DBPath == "" {
		c.Global.DBPath = "fundtrace.db"
	}
	if c.Global.Workers <= 0 {
		c.Global.Workers = 1
	}

	var err error
	if c.Global.requestInterval, err = parseDuration(c.Global.RequestInterval, 3*time.Second); err != nil {
		return fmt.Errorf("request_interval: %w", err)
	}
	if c.Global.retryDelay, err = parseDuration(c.Global.RetryDelay, time.Minute); err != nil {
		return fmt.Errorf("retry_delay: %w", err)
	}
	return nil
}

func parseDuration(v string, fallback time.Duration) (time.Duration, error) {
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return fallback, nil
	}
	return d, nil
}

// Validate performs small, direct schema checks.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return errors.New("version is required")
	}
	if len(c.Explorers) == 0 {
		return errors.New("at least one explorer is required")
	}
	if len(c.Collections) == 0 {
		return errors.New("at least one collection is required")
	}

	for chain, e := range c.Explorers {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("explorer %s: %w", chain, err)
		}
	}

	ids := map[string]struct{}{}
	for _, col := range c.Collections {
		if col.ID == "" {
			return errors.New("collection id is required")
		}
		if _, exists := ids[col.ID]; exists {
			return fmt.Errorf("duplicate collection id: %s", col.ID)
		}
		ids[col.ID] = struct{}{}
		if col.File == "" {
			return fmt.Errorf("collection %s: file is required", col.ID)
		}
	}

	if c.Notify != nil {
		if err := c.Notify.Validate(); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
	}

	return nil
}

func (e Explorer) Validate() error {
	if e.BaseURL == "" {
		return errors.New("base_url is required")
	}
	switch strings.ToLower(e.Type) {
	case "esplora", "dcrdata":
	case "etherscan":
		if e.APIKey == "" {
			return errors.New("api_key is required for etherscan explorers")
		}
	default:
		return fmt.Errorf("unsupported explorer type: %s", e.Type)
	}
	return nil
}

func (n *Notify) Validate() error {
	switch strings.ToLower(n.Type) {
	case "slack", "webhook":
	default:
		return fmt.Errorf("unsupported notify type: %s", n.Type)
	}
	if n.WebhookURL == "" {
		return errors.New("webhook_url is required")
	}
	return nil
}

// CollectionPath resolves a collection document path under data_dir.
func (c *Config) CollectionPath(col Collection) string {
	if filepath.IsAbs(col.File) {
		return col.File
	}
	return filepath.Join(c.Global.DataDir, col.File)
}

func dedup(in []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
