package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the caresearch configuration.
type Config struct {
	Env     string        `yaml:"env"`
	Logging LoggingConfig `yaml:"logging"`
	Records RecordsConfig `yaml:"records"`
	Index   IndexConfig   `yaml:"index"`
	Search  SearchConfig  `yaml:"search"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// RecordsConfig selects the record store.
type RecordsConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres (default: sqlite)
	Path   string `yaml:"path"`   // sqlite file, ":memory:" for a throwaway store
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// IndexConfig holds full-text index settings.
type IndexConfig struct {
	Dir            string `yaml:"dir"` // empty keeps the indexes in memory
	RebuildOnStart bool   `yaml:"rebuild_on_start"`
}

// SearchConfig holds pagination and cache settings.
type SearchConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
	CacheSize       int `yaml:"cache_size"`    // 0 disables the result cache
	CacheTTLSec     int `yaml:"cache_ttl_sec"` // 0 = no expiry beyond index writes
}

// CacheTTL returns the cache TTL as a duration.
func (s SearchConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSec) * time.Second
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // e.g. ":9090"; empty disables the endpoint
}

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} references and
// applying defaults before validation.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file is given: an
// in-memory record store and in-memory indexes.
func Default() Config {
	cfg := Config{Records: RecordsConfig{Path: ":memory:"}}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = "local"
	}
	if c.Records.Driver == "" {
		c.Records.Driver = "sqlite"
	}
	if c.Records.Driver == "sqlite" && c.Records.Path == "" {
		c.Records.Path = "caresearch.db"
	}
	if c.Search.DefaultPageSize <= 0 {
		c.Search.DefaultPageSize = 20
	}
	if c.Search.MaxPageSize <= 0 {
		c.Search.MaxPageSize = 100
	}
	if c.Search.CacheSize < 0 {
		c.Search.CacheSize = 0
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Env {
	case "local", "dev", "test", "prod":
	default:
		return fmt.Errorf("env must be one of local, dev, test, prod, got %q", c.Env)
	}
	switch c.Records.Driver {
	case "sqlite":
		if c.Records.Path == "" {
			return fmt.Errorf("records.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Records.DSN == "" {
			return fmt.Errorf("records.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("records.driver must be \"sqlite\" or \"postgres\", got %q", c.Records.Driver)
	}
	if c.Search.DefaultPageSize > c.Search.MaxPageSize {
		return fmt.Errorf("search.default_page_size (%d) exceeds search.max_page_size (%d)",
			c.Search.DefaultPageSize, c.Search.MaxPageSize)
	}
	if c.Search.CacheTTLSec < 0 {
		return fmt.Errorf("search.cache_ttl_sec must be >= 0, got %d", c.Search.CacheTTLSec)
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
