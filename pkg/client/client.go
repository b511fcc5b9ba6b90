// Package client provides the exchange rate API client with a pluggable
// response cache.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/exchangerate-client/pkg/cache"
	"github.com/Sternrassler/exchangerate-client/pkg/rates"
)

// Prometheus metrics for upstream API operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchangerate_requests_total",
		Help: "Total exchange rate API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exchangerate_request_duration_seconds",
		Help:    "Exchange rate API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})
)

// Endpoints of the exchange rate API; also used as cache key prefixes.
const (
	EndpointLatest = "latest"
	EndpointPair   = "pair"
	EndpointCodes  = "codes"
)

// DefaultBaseURL is the v6 API root.
const DefaultBaseURL = "https://v6.exchangerate-api.com/v6"

// maxBodySize caps how much of an upstream response is read.
const maxBodySize = 4 << 20

// AuthMethod selects how the API key is sent.
type AuthMethod string

const (
	// AuthBearer sends "Authorization: Bearer <key>".
	AuthBearer AuthMethod = "bearer"

	// AuthURL embeds the key as the first path segment.
	AuthURL AuthMethod = "url"
)

// ParseAuthMethod validates s as an AuthMethod.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch m := AuthMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case AuthBearer, AuthURL:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (want bearer or url)", ErrInvalidAuthMethod, s)
	}
}

// CacheConfig controls response caching.
type CacheConfig struct {
	// Enabled turns caching on
	Enabled bool

	// DefaultTTL applies to rate tables without an upstream next-update time
	DefaultTTL time.Duration

	// PairTTL applies to pair conversion results (default: DefaultTTL)
	PairTTL time.Duration

	// CodesTTL applies to the supported codes list (default: one week)
	CodesTTL time.Duration
}

// Config holds the client configuration.
type Config struct {
	// APIKey authenticates against the API (REQUIRED)
	APIKey string

	// BaseURL of the API (default: DefaultBaseURL)
	BaseURL string

	// AuthMethod is AuthBearer (default) or AuthURL
	AuthMethod AuthMethod

	// Timeout for a single upstream request
	Timeout time.Duration

	// HTTPClient overrides the default pooled client; Timeout is ignored when set
	HTTPClient *http.Client

	// Caching
	Cache CacheConfig

	// Backend stores cached responses. When nil and caching is enabled,
	// New creates an in-memory backend for this client.
	Backend cache.Backend

	// Logger overrides the component logger
	Logger *zerolog.Logger

	// Now stamps new cache entries (default: time.Now)
	Now func() time.Time
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:     apiKey,
		BaseURL:    DefaultBaseURL,
		AuthMethod: AuthBearer,
		Timeout:    30 * time.Second,
		Cache: CacheConfig{
			Enabled:    true,
			DefaultTTL: cache.DefaultTTL,
			PairTTL:    cache.DefaultTTL,
			CodesTTL:   cache.CodesTTL,
		},
	}
}

// Client is the exchange rate API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	auth       AuthMethod
	cacheCfg   CacheConfig
	backend    cache.Backend
	logger     zerolog.Logger
	now        func() time.Time
}

// New creates a new exchange rate client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	auth := cfg.AuthMethod
	if auth == "" {
		auth = AuthBearer
	}
	if _, err := ParseAuthMethod(string(auth)); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}
	if cfg.Cache.DefaultTTL < 0 || cfg.Cache.PairTTL < 0 || cfg.Cache.CodesTTL < 0 {
		return nil, fmt.Errorf("cache ttl must be >= 0")
	}

	cacheCfg := cfg.Cache
	if cacheCfg.DefaultTTL == 0 {
		cacheCfg.DefaultTTL = cache.DefaultTTL
	}
	if cacheCfg.PairTTL == 0 {
		cacheCfg.PairTTL = cacheCfg.DefaultTTL
	}
	if cacheCfg.CodesTTL == 0 {
		cacheCfg.CodesTTL = cache.CodesTTL
	}

	logger := log.With().Str("component", "exchangerate-client").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = cfg.Timeout
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	var backend cache.Backend
	if cacheCfg.Enabled {
		backend = cfg.Backend
		if backend == nil {
			backend = cache.NewMemoryBackend()
		}
		logger.Debug().Str("backend", backend.Name()).Msg("Response cache enabled")
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		auth:       auth,
		cacheCfg:   cacheCfg,
		backend:    backend,
		logger:     logger,
		now:        now,
	}, nil
}

// LatestRates returns the rate table for base. Tables are cached until the
// API's declared next update.
func (c *Client) LatestRates(ctx context.Context, base string) (*rates.LatestResponse, error) {
	base, err := normalizeCode(base)
	if err != nil {
		return nil, err
	}
	key := cache.NewKey(EndpointLatest, base).String()

	if c.backend != nil {
		entry, err := cache.GetTyped[rates.LatestResponse](ctx, c.backend, key)
		if err == nil {
			c.logger.Debug().Str("key", key).Time("expires_at", entry.ExpiresAt).Msg("Cache hit")
			return &entry.Value, nil
		}
		c.logCacheReadError(key, err)
	}

	var resp rates.LatestResponse
	if err := c.fetch(ctx, EndpointLatest, &resp, base); err != nil {
		return nil, err
	}

	if c.backend != nil {
		entry := cache.NewEntryWithSourceExpiration(resp, resp.TimeNextUpdateUnix, c.now())
		if err := cache.SetTyped(ctx, c.backend, key, entry); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache response")
		} else {
			c.logger.Debug().Str("key", key).Time("expires_at", entry.ExpiresAt).Msg("Cached response")
		}
	}

	return &resp, nil
}

// Convert converts amount from one currency to another using the latest
// rate table of from.
func (c *Client) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	from, err := normalizeCode(from)
	if err != nil {
		return 0, err
	}
	to, err = normalizeCode(to)
	if err != nil {
		return 0, err
	}

	table, err := c.LatestRates(ctx, from)
	if err != nil {
		return 0, err
	}

	result, ok := table.Convert(amount, from, to)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCode, to)
	}
	return result, nil
}

// pairPayload is the cached form of a pair conversion.
type pairPayload struct {
	ConversionRate float64 `json:"conversion_rate"`
}

// PairRate returns the direct conversion rate between two currencies.
func (c *Client) PairRate(ctx context.Context, from, to string) (float64, error) {
	from, err := normalizeCode(from)
	if err != nil {
		return 0, err
	}
	to, err = normalizeCode(to)
	if err != nil {
		return 0, err
	}
	key := cache.NewKey(EndpointPair, from, to).String()

	var cached pairPayload
	if c.getRaw(ctx, key, &cached) {
		return cached.ConversionRate, nil
	}

	var resp rates.PairResponse
	if err := c.fetch(ctx, EndpointPair, &resp, from, to); err != nil {
		return 0, err
	}

	c.setRaw(ctx, key, pairPayload{ConversionRate: resp.ConversionRate}, c.cacheCfg.PairTTL)
	return resp.ConversionRate, nil
}

// SupportedCodes returns every currency the API supports.
func (c *Client) SupportedCodes(ctx context.Context) ([]rates.Currency, error) {
	key := cache.NewKey(EndpointCodes).String()

	var cached rates.CodesResponse
	if c.getRaw(ctx, key, &cached) {
		return cached.Currencies(), nil
	}

	var resp rates.CodesResponse
	if err := c.fetch(ctx, EndpointCodes, &resp); err != nil {
		return nil, err
	}

	c.setRaw(ctx, key, rates.CodesResponse{SupportedCodes: resp.SupportedCodes}, c.cacheCfg.CodesTTL)
	return resp.Currencies(), nil
}

// getRaw decodes a cached raw payload into out. Any failure counts as a miss.
func (c *Client) getRaw(ctx context.Context, key string, out any) bool {
	if c.backend == nil {
		return false
	}

	entry, err := cache.GetRaw(ctx, c.backend, key)
	if err != nil {
		c.logCacheReadError(key, err)
		return false
	}

	if err := json.Unmarshal([]byte(entry.Value), out); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to parse cached response")
		return false
	}

	c.logger.Debug().Str("key", key).Time("expires_at", entry.ExpiresAt).Msg("Cache hit")
	return true
}

// setRaw caches v as JSON for ttl. Failures are logged only.
func (c *Client) setRaw(ctx context.Context, key string, v any, ttl time.Duration) {
	if c.backend == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to serialize response")
		return
	}

	now := c.now()
	if err := cache.SetRaw(ctx, c.backend, key, string(data), now, now.Add(ttl)); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache response")
		return
	}
	c.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("Cached response")
}

func (c *Client) logCacheReadError(key string, err error) {
	if cache.IsMiss(err) {
		c.logger.Debug().Str("key", key).Bool("expired", errors.Is(err, cache.ErrExpired)).Msg("Cache miss")
		return
	}
	c.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed, fetching from API")
}

// buildURL returns the request URL for endpoint and params under the configured auth method.
func (c *Client) buildURL(endpoint string, params ...string) string {
	segments := make([]string, 0, len(params)+2)
	if c.auth == AuthURL {
		segments = append(segments, url.PathEscape(c.apiKey))
	}
	segments = append(segments, endpoint)
	for _, p := range params {
		segments = append(segments, url.PathEscape(p))
	}
	return c.baseURL + "/" + strings.Join(segments, "/")
}

// fetch performs a GET request and decodes a successful body into out.
func (c *Client) fetch(ctx context.Context, endpoint string, out any, params ...string) error {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(endpoint, params...), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.auth == AuthBearer {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug().Str("endpoint", endpoint).Strs("params", params).Msg("Executing API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}

	var apiErr rates.ErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || apiErr.IsError() {
		err := &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			ErrorType:  apiErr.ErrorType,
			Message:    resp.Status,
		}
		c.logger.Error().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_type", apiErr.ErrorType).
			Msg("API request error")
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// InvalidateLatest drops the cached rate table for base.
func (c *Client) InvalidateLatest(ctx context.Context, base string) error {
	base, err := normalizeCode(base)
	if err != nil {
		return err
	}
	return c.invalidate(ctx, cache.NewKey(EndpointLatest, base))
}

// InvalidatePair drops the cached pair rate for from/to.
func (c *Client) InvalidatePair(ctx context.Context, from, to string) error {
	from, err := normalizeCode(from)
	if err != nil {
		return err
	}
	to, err = normalizeCode(to)
	if err != nil {
		return err
	}
	return c.invalidate(ctx, cache.NewKey(EndpointPair, from, to))
}

// InvalidateCodes drops the cached supported codes list.
func (c *Client) InvalidateCodes(ctx context.Context) error {
	return c.invalidate(ctx, cache.NewKey(EndpointCodes))
}

func (c *Client) invalidate(ctx context.Context, key cache.Key) error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Invalidate(ctx, key.String())
}

// ClearCache removes every cached response.
func (c *Client) ClearCache(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Clear(ctx)
}

// Backend returns the cache backend, or nil when caching is disabled.
func (c *Client) Backend() cache.Backend {
	return c.backend
}

// Close closes the cache backend.
func (c *Client) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

func normalizeCode(code string) (string, error) {
	code = rates.NormalizeCode(code)
	if err := rates.ValidateCode(code); err != nil {
		return "", err
	}
	return code, nil
}
