package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Sternrassler/exchangerate-client/pkg/cache"
	"github.com/Sternrassler/exchangerate-client/pkg/cache/redis"
	"github.com/Sternrassler/exchangerate-client/pkg/cache/sqlite"
	"github.com/Sternrassler/exchangerate-client/pkg/client"
	"github.com/Sternrassler/exchangerate-client/pkg/config"
	"github.com/Sternrassler/exchangerate-client/pkg/format"
	"github.com/Sternrassler/exchangerate-client/pkg/logging"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	apiKey       string
	authMethod   string
	format       string
	noColor      bool
	noCache      bool
	verbose      bool
	configPath   string
	cacheBackend string
	baseURL      string
}

func (o *options) configFile() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.Path()
}

// load reads the config file and applies flag overrides on top of it.
func (o *options) load(stderr io.Writer) (*config.Config, error) {
	cfg, err := config.Load(o.configFile())
	if err != nil {
		return nil, err
	}

	overrides := map[string]string{
		"auth_method":    o.authMethod,
		"default_format": o.format,
		"cache.backend":  o.cacheBackend,
	}
	for key, value := range overrides {
		if value == "" {
			continue
		}
		if err := cfg.Set(key, value); err != nil {
			return nil, err
		}
	}
	if o.noColor {
		cfg.UseColor = false
	}
	if o.noCache {
		cfg.UseCache = false
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	if o.verbose {
		level = logging.LevelDebug
	}
	logging.Setup(logging.Config{Level: level, Pretty: true, Output: stderr})

	return cfg, nil
}

// resolveAPIKey applies flag, environment, config file precedence.
func (o *options) resolveAPIKey(cfg *config.Config) string {
	if k := strings.TrimSpace(o.apiKey); k != "" {
		return k
	}
	if k := strings.TrimSpace(os.Getenv(apiKeyEnv)); k != "" {
		return k
	}
	return cfg.APIKey
}

func (o *options) printer(w io.Writer, cfg *config.Config) *format.Printer {
	f, _ := format.ParseFormat(cfg.DefaultFormat)
	return format.NewPrinter(w, f, cfg.UseColor)
}

// newClient builds an API client backed by the configured cache.
// Closing the client closes the backend.
func (o *options) newClient(ctx context.Context, cfg *config.Config) (*client.Client, error) {
	apiKey := o.resolveAPIKey(cfg)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: pass --api-key, set %s, or run 'exchangerate config set api_key KEY'",
			client.ErrMissingAPIKey, apiKeyEnv)
	}

	ccfg := client.DefaultConfig(apiKey)
	ccfg.AuthMethod = client.AuthMethod(cfg.AuthMethod)
	if o.baseURL != "" {
		ccfg.BaseURL = o.baseURL
	}
	ccfg.Cache.Enabled = cfg.UseCache
	ccfg.Cache.PairTTL = cfg.Cache.PairTTL
	ccfg.Cache.CodesTTL = cfg.Cache.CodesTTL

	if cfg.UseCache {
		backend, err := openBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		ccfg.Backend = backend
	}

	c, err := client.New(ccfg)
	if err != nil {
		if ccfg.Backend != nil {
			_ = ccfg.Backend.Close()
		}
		return nil, err
	}
	return c, nil
}

// openBackend opens the cache backend named in cfg.
func openBackend(ctx context.Context, cfg *config.Config) (cache.Backend, error) {
	switch cfg.Cache.Backend {
	case config.BackendMemory:
		return cache.NewMemoryBackend(), nil

	case config.BackendRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
		b, err := redis.New(rdb, redis.DefaultConfig())
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		if err := b.Ping(ctx); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Cache.RedisAddr, err)
		}
		return b, nil

	default:
		b, err := sqlite.New(cfg.CachePath())
		if err != nil {
			return nil, fmt.Errorf("open cache %s: %w", cfg.CachePath(), err)
		}
		return b, nil
	}
}
