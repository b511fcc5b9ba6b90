// Package config loads and edits the CLI's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/exchangerate-client/pkg/cache"
	"github.com/Sternrassler/exchangerate-client/pkg/client"
	"github.com/Sternrassler/exchangerate-client/pkg/format"
	"github.com/Sternrassler/exchangerate-client/pkg/logging"
)

const appName = "exchangerate"

// Cache backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// ErrUnknownKey is returned by Set for keys the file does not define.
var ErrUnknownKey = errors.New("unknown config key")

// Config is the user configuration stored at Path().
type Config struct {
	APIKey        string      `yaml:"api_key,omitempty"`
	AuthMethod    string      `yaml:"auth_method"`
	DefaultFormat string      `yaml:"default_format"`
	UseColor      bool        `yaml:"use_color"`
	UseCache      bool        `yaml:"use_cache"`
	LogLevel      string      `yaml:"log_level"`
	Cache         CacheConfig `yaml:"cache"`
}

// CacheConfig selects and tunes the response cache backend.
type CacheConfig struct {
	Backend   string        `yaml:"backend"`
	Path      string        `yaml:"path,omitempty"`
	RedisAddr string        `yaml:"redis_addr,omitempty"`
	RedisDB   int           `yaml:"redis_db,omitempty"`
	PairTTL   time.Duration `yaml:"pair_ttl"`
	CodesTTL  time.Duration `yaml:"codes_ttl"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		AuthMethod:    string(client.AuthBearer),
		DefaultFormat: string(format.Text),
		UseColor:      true,
		UseCache:      true,
		LogLevel:      string(logging.LevelWarn),
		Cache: CacheConfig{
			Backend:   BackendSQLite,
			RedisAddr: "localhost:6379",
			PairTTL:   cache.DefaultTTL,
			CodesTTL:  cache.CodesTTL,
		},
	}
}

// Path is the default config file location.
func Path() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// DBPath is the default SQLite cache location.
func DBPath() string {
	return filepath.Join(xdg.CacheHome, appName, "cache.db")
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment references like ${EXCHANGE_RATE_API_KEY} are expanded before parsing.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	// the file may hold an API key
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks every enumerated field and the TTLs.
func (c *Config) Validate() error {
	if _, err := client.ParseAuthMethod(c.AuthMethod); err != nil {
		return err
	}
	if _, err := format.ParseFormat(c.DefaultFormat); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := parseBackend(c.Cache.Backend); err != nil {
		return err
	}
	if c.Cache.RedisDB < 0 {
		return fmt.Errorf("cache.redis_db must be >= 0 (got %d)", c.Cache.RedisDB)
	}
	if c.Cache.PairTTL < 0 || c.Cache.CodesTTL < 0 {
		return errors.New("cache ttl must be >= 0")
	}
	return nil
}

// Keys lists every key accepted by Set.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(c *Config, v string) error{
	"api_key": func(c *Config, v string) error {
		c.APIKey = strings.TrimSpace(v)
		return nil
	},
	"auth_method": func(c *Config, v string) error {
		m, err := client.ParseAuthMethod(v)
		if err != nil {
			return err
		}
		c.AuthMethod = string(m)
		return nil
	},
	"default_format": func(c *Config, v string) error {
		f, err := format.ParseFormat(v)
		if err != nil {
			return err
		}
		c.DefaultFormat = string(f)
		return nil
	},
	"use_color": func(c *Config, v string) error {
		return setBool(&c.UseColor, v)
	},
	"use_cache": func(c *Config, v string) error {
		return setBool(&c.UseCache, v)
	},
	"log_level": func(c *Config, v string) error {
		l, err := logging.ParseLevel(v)
		if err != nil {
			return err
		}
		c.LogLevel = string(l)
		return nil
	},
	"cache.backend": func(c *Config, v string) error {
		b, err := parseBackend(v)
		if err != nil {
			return err
		}
		c.Cache.Backend = b
		return nil
	},
	"cache.path": func(c *Config, v string) error {
		c.Cache.Path = strings.TrimSpace(v)
		return nil
	},
	"cache.redis_addr": func(c *Config, v string) error {
		c.Cache.RedisAddr = strings.TrimSpace(v)
		return nil
	},
	"cache.redis_db": func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return fmt.Errorf("invalid redis db %q (expected a non-negative integer)", v)
		}
		c.Cache.RedisDB = n
		return nil
	},
	"cache.pair_ttl": func(c *Config, v string) error {
		return setTTL(&c.Cache.PairTTL, v)
	},
	"cache.codes_ttl": func(c *Config, v string) error {
		return setTTL(&c.Cache.CodesTTL, v)
	},
}

// Set assigns a single key from its string form, validating the value.
func (c *Config) Set(key, value string) error {
	set, ok := setters[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return fmt.Errorf("%w: %q (valid keys: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}
	return set(c, value)
}

// CachePath returns the configured SQLite path or the XDG default.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return DBPath()
}

// MaskedAPIKey shows enough of the key to recognize it.
func (c *Config) MaskedAPIKey() string {
	switch {
	case c.APIKey == "":
		return "(not set)"
	case len(c.APIKey) <= 8:
		return strings.Repeat("*", len(c.APIKey))
	default:
		return c.APIKey[:8] + "..."
	}
}

func setBool(dst *bool, v string) error {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "1":
		*dst = true
	case "false", "no", "0":
		*dst = false
	default:
		return fmt.Errorf("invalid boolean %q (expected true/false, yes/no or 1/0)", v)
	}
	return nil
}

func setTTL(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d < 0 {
		return fmt.Errorf("invalid ttl %q (expected a duration such as 1h or 30m)", v)
	}
	*dst = d
	return nil
}

func parseBackend(s string) (string, error) {
	switch b := strings.ToLower(strings.TrimSpace(s)); b {
	case BackendMemory, BackendSQLite, BackendRedis:
		return b, nil
	default:
		return "", fmt.Errorf("invalid cache backend %q (expected memory, sqlite or redis)", s)
	}
}
