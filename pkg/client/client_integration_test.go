//go:build integration

package client

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/exchangerate-client/internal/testutil"
	"github.com/Sternrassler/exchangerate-client/pkg/cache/redis"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return host + ":" + port.Port()
}

func newRedisClient(t *testing.T, addr string, mock *testutil.MockAPI) *Client {
	t.Helper()

	backend, err := redis.New(goredis.NewClient(&goredis.Options{Addr: addr}), redis.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create redis backend: %v", err)
	}

	cfg := DefaultConfig(testAPIKey)
	cfg.BaseURL = mock.URL()
	cfg.Backend = backend
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// TestRedisSharedAcrossClients checks that two processes sharing one Redis
// fetch each rate only once.
func TestRedisSharedAcrossClients(t *testing.T) {
	addr := setupRedis(t)

	mock := testutil.NewMockAPI(testAPIKey)
	defer mock.Close()
	mock.SetLatest("USD", time.Now().Add(time.Hour), map[string]float64{"EUR": 0.9})
	mock.SetPair("USD", "EUR", 0.85)
	mock.SetCodes([][]string{{"USD", "United States Dollar"}})

	ctx := context.Background()
	first := newRedisClient(t, addr, mock)
	second := newRedisClient(t, addr, mock)

	if _, err := first.LatestRates(ctx, "USD"); err != nil {
		t.Fatalf("LatestRates() error = %v", err)
	}
	table, err := second.LatestRates(ctx, "USD")
	if err != nil {
		t.Fatalf("LatestRates() error = %v", err)
	}
	if table.ConversionRates["EUR"] != 0.9 {
		t.Errorf("EUR rate = %v, want 0.9", table.ConversionRates["EUR"])
	}

	if _, err := first.PairRate(ctx, "USD", "EUR"); err != nil {
		t.Fatalf("PairRate() error = %v", err)
	}
	rate, err := second.PairRate(ctx, "USD", "EUR")
	if err != nil {
		t.Fatalf("PairRate() error = %v", err)
	}
	if rate != 0.85 {
		t.Errorf("pair rate = %v, want 0.85", rate)
	}

	if _, err := first.SupportedCodes(ctx); err != nil {
		t.Fatalf("SupportedCodes() error = %v", err)
	}
	if _, err := second.SupportedCodes(ctx); err != nil {
		t.Fatalf("SupportedCodes() error = %v", err)
	}

	if got := mock.GetRequestCount(); got != 3 {
		t.Errorf("upstream requests = %d, want 3", got)
	}

	if err := first.InvalidatePair(ctx, "USD", "EUR"); err != nil {
		t.Fatalf("InvalidatePair() error = %v", err)
	}
	if _, err := second.PairRate(ctx, "USD", "EUR"); err != nil {
		t.Fatalf("PairRate() error = %v", err)
	}
	if got := mock.GetPathCount("/pair/USD/EUR"); got != 2 {
		t.Errorf("pair requests = %d, want 2", got)
	}
}
