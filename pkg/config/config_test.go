package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/exchangerate-client/pkg/client"
	"github.com/Sternrassler/exchangerate-client/pkg/format"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.AuthMethod != "bearer" {
		t.Errorf("expected bearer, got %s", cfg.AuthMethod)
	}
	if cfg.DefaultFormat != "text" {
		t.Errorf("expected text, got %s", cfg.DefaultFormat)
	}
	if !cfg.UseColor || !cfg.UseCache {
		t.Error("expected color and cache enabled by default")
	}
	if cfg.Cache.Backend != BackendSQLite {
		t.Errorf("expected sqlite backend, got %s", cfg.Cache.Backend)
	}
	if cfg.Cache.PairTTL != 24*time.Hour {
		t.Errorf("expected 24h pair TTL, got %v", cfg.Cache.PairTTL)
	}
	if cfg.Cache.CodesTTL != 7*24*time.Hour {
		t.Errorf("expected one week codes TTL, got %v", cfg.Cache.CodesTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_EXCHANGE_KEY", "abcdef0123456789")

	content := `
api_key: ${TEST_EXCHANGE_KEY}
auth_method: url
default_format: json
use_color: false
cache:
  backend: redis
  redis_addr: "redis:6379"
  redis_db: 2
  pair_ttl: 30m
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.APIKey != "abcdef0123456789" {
		t.Errorf("env var not expanded: got %s", cfg.APIKey)
	}
	if cfg.AuthMethod != "url" {
		t.Errorf("expected url auth, got %s", cfg.AuthMethod)
	}
	if cfg.DefaultFormat != "json" {
		t.Errorf("expected json, got %s", cfg.DefaultFormat)
	}
	if cfg.UseColor {
		t.Error("expected color disabled")
	}
	if !cfg.UseCache {
		t.Error("unset use_cache should keep the default")
	}
	if cfg.Cache.Backend != BackendRedis || cfg.Cache.RedisAddr != "redis:6379" || cfg.Cache.RedisDB != 2 {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Cache.PairTTL != 30*time.Minute {
		t.Errorf("expected 30m pair TTL, got %v", cfg.Cache.PairTTL)
	}
	if cfg.Cache.CodesTTL != 7*24*time.Hour {
		t.Errorf("unset codes_ttl should keep the default, got %v", cfg.Cache.CodesTTL)
	}
}

func TestLoadMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should yield defaults, got %v", err)
	}
	if cfg.AuthMethod != "bearer" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "api_key: [unterminated"},
		{"bad auth", "auth_method: header"},
		{"bad format", "default_format: xml"},
		{"bad level", "log_level: loud"},
		{"bad backend", "cache:\n  backend: memcached"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.APIKey = "key-123"
	cfg.Cache.PairTTL = 90 * time.Minute
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.APIKey != "key-123" {
		t.Errorf("api key not persisted: %s", loaded.APIKey)
	}
	if loaded.Cache.PairTTL != 90*time.Minute {
		t.Errorf("pair ttl not persisted: %v", loaded.Cache.PairTTL)
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		key, value string
		check      func(*Config) bool
	}{
		{"api_key", " k1 ", func(c *Config) bool { return c.APIKey == "k1" }},
		{"auth_method", "URL", func(c *Config) bool { return c.AuthMethod == "url" }},
		{"default_format", "csv", func(c *Config) bool { return c.DefaultFormat == "csv" }},
		{"use_color", "no", func(c *Config) bool { return !c.UseColor }},
		{"use_cache", "0", func(c *Config) bool { return !c.UseCache }},
		{"log_level", "debug", func(c *Config) bool { return c.LogLevel == "debug" }},
		{"cache.backend", "memory", func(c *Config) bool { return c.Cache.Backend == BackendMemory }},
		{"cache.path", "/tmp/x.db", func(c *Config) bool { return c.Cache.Path == "/tmp/x.db" }},
		{"cache.redis_addr", "cache:6380", func(c *Config) bool { return c.Cache.RedisAddr == "cache:6380" }},
		{"cache.redis_db", "3", func(c *Config) bool { return c.Cache.RedisDB == 3 }},
		{"cache.pair_ttl", "2h", func(c *Config) bool { return c.Cache.PairTTL == 2*time.Hour }},
		{"cache.codes_ttl", "48h", func(c *Config) bool { return c.Cache.CodesTTL == 48*time.Hour }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := Default()
			if err := cfg.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set(%q, %q) error = %v", tt.key, tt.value, err)
			}
			if !tt.check(cfg) {
				t.Errorf("Set(%q, %q) not applied: %+v", tt.key, tt.value, cfg)
			}
		})
	}
}

func TestSetInvalid(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("colour", "true"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
	if err := cfg.Set("auth_method", "header"); !errors.Is(err, client.ErrInvalidAuthMethod) {
		t.Errorf("expected ErrInvalidAuthMethod, got %v", err)
	}
	if err := cfg.Set("default_format", "xml"); !errors.Is(err, format.ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
	for _, kv := range [][2]string{
		{"use_color", "maybe"},
		{"log_level", "loud"},
		{"cache.backend", "memcached"},
		{"cache.redis_db", "-1"},
		{"cache.pair_ttl", "soon"},
	} {
		if err := cfg.Set(kv[0], kv[1]); err == nil {
			t.Errorf("Set(%q, %q) expected error", kv[0], kv[1])
		}
	}

	if *cfg != *Default() {
		t.Errorf("failed Set calls modified config: %+v", cfg)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != 12 {
		t.Errorf("expected 12 keys, got %d: %v", len(keys), keys)
	}
	if keys[0] != "api_key" {
		t.Errorf("expected sorted keys, got %v", keys)
	}
}

func TestMaskedAPIKey(t *testing.T) {
	tests := []struct{ key, want string }{
		{"", "(not set)"},
		{"short", "*****"},
		{"abcdef0123456789", "abcdef01..."},
	}
	for _, tt := range tests {
		cfg := &Config{APIKey: tt.key}
		if got := cfg.MaskedAPIKey(); got != tt.want {
			t.Errorf("MaskedAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestPaths(t *testing.T) {
	if !strings.HasSuffix(Path(), filepath.Join("exchangerate", "config.yaml")) {
		t.Errorf("unexpected config path %s", Path())
	}
	cfg := Default()
	if cfg.CachePath() != DBPath() {
		t.Errorf("expected XDG cache path, got %s", cfg.CachePath())
	}
	cfg.Cache.Path = "/tmp/rates.db"
	if cfg.CachePath() != "/tmp/rates.db" {
		t.Errorf("expected override, got %s", cfg.CachePath())
	}
}
