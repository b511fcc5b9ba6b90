package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/exchangerate-client/internal/cachetest"
	"github.com/Sternrassler/exchangerate-client/pkg/cache"
)

func newTestBackend(t *testing.T, now func() time.Time) *Backend {
	t.Helper()
	b, err := New(filepath.Join(t.TempDir(), "cache.db"), cache.WithClock(now))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBackend_Suite(t *testing.T) {
	cachetest.Run(t, func(t *testing.T, now func() time.Time) cache.Backend {
		return newTestBackend(t, now)
	})
}

func TestBackend_PersistsAcrossReopen(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	start := cachetest.Start
	now := func() time.Time { return start.Add(time.Minute) }

	b, err := New(path, cache.WithClock(now))
	require.NoError(err)
	require.NoError(cache.SetRaw(ctx, b, "pair:USD:EUR", `{"conversion_rate":0.85}`, start, start.Add(time.Hour)))
	require.NoError(b.Close())

	b, err = New(path, cache.WithClock(now))
	require.NoError(err)
	defer b.Close()

	got, err := cache.GetRaw(ctx, b, "pair:USD:EUR")
	require.NoError(err)
	require.Equal(`{"conversion_rate":0.85}`, got.Value)
	require.True(got.CachedAt.Equal(start), "cached_at = %v", got.CachedAt)
	require.True(got.ExpiresAt.Equal(start.Add(time.Hour)), "expires_at = %v", got.ExpiresAt)
}

func TestBackend_ExpiredRowsKept(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	start := cachetest.Start
	clock := start
	b := newTestBackend(t, func() time.Time { return clock })

	require.NoError(cache.SetRaw(ctx, b, "pair:USD:EUR", "{}", start, start.Add(time.Hour)))
	require.NoError(cache.SetTyped(ctx, b, "latest:USD", cache.NewEntryWithTTL(map[string]float64{"EUR": 0.9}, start, 3*time.Hour)))

	clock = start.Add(2 * time.Hour)
	_, err := cache.GetRaw(ctx, b, "pair:USD:EUR")
	require.ErrorIs(err, cache.ErrExpired)

	// A second read still sees the row: expiry never deletes implicitly.
	_, err = cache.GetRaw(ctx, b, "pair:USD:EUR")
	require.ErrorIs(err, cache.ErrExpired)

	s, err := b.Stats(ctx)
	require.NoError(err)
	require.Equal(cache.Stats{Backend: "sqlite", Entries: 2, Typed: 1, Raw: 1, Expired: 1}, s)

	n, err := b.PurgeExpired(ctx)
	require.NoError(err)
	require.EqualValues(1, n)

	_, err = cache.GetRaw(ctx, b, "pair:USD:EUR")
	require.ErrorIs(err, cache.ErrNotFound)
	_, err = cache.GetTyped[map[string]float64](ctx, b, "latest:USD")
	require.NoError(err)
}

func TestBackend_Closed(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	b := newTestBackend(t, time.Now)

	require.NoError(b.Close())
	require.NoError(b.Close())

	_, err := b.Get(ctx, "k")
	require.ErrorIs(err, cache.ErrClosed)

	var berr *cache.BackendError
	require.ErrorAs(cache.SetRaw(ctx, b, "k", "{}", time.Now(), time.Now()), &berr)
	require.Equal("sqlite", berr.Backend)
	require.Equal("set", berr.Op)
}

func newMockBackend(t *testing.T) (*Backend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS exchange_rate_cache").WillReturnResult(sqlmock.NewResult(0, 0))

	b, err := NewFromDB(db, cache.WithClock(func() time.Time { return cachetest.Start }))
	require.NoError(t, err)
	return b, mock
}

func TestBackend_QueryFailureIsBackendError(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	b, mock := newMockBackend(t)

	mock.ExpectQuery("SELECT response, cached_at, expires_at, response_type FROM exchange_rate_cache").
		WithArgs("latest:USD").
		WillReturnError(errors.New("database is locked"))

	_, err := b.Get(ctx, "latest:USD")
	var berr *cache.BackendError
	require.ErrorAs(err, &berr)
	require.Equal("get", berr.Op)
	require.False(cache.IsMiss(err))
	require.NoError(mock.ExpectationsWereMet())
}

func TestBackend_WriteFailureIsBackendError(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	b, mock := newMockBackend(t)

	mock.ExpectExec("INSERT OR REPLACE INTO exchange_rate_cache").
		WithArgs("pair:USD:EUR", "{}", sqlmock.AnyArg(), sqlmock.AnyArg(), "raw").
		WillReturnError(errors.New("disk I/O error"))

	err := cache.SetRaw(ctx, b, "pair:USD:EUR", "{}", cachetest.Start, cachetest.Start.Add(time.Hour))
	var berr *cache.BackendError
	require.ErrorAs(err, &berr)
	require.Equal("set", berr.Op)
	require.NoError(mock.ExpectationsWereMet())
}

func TestBackend_CorruptTimestamp(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	b, mock := newMockBackend(t)

	rows := sqlmock.NewRows([]string{"response", "cached_at", "expires_at", "response_type"}).
		AddRow("{}", "yesterday", "2025-05-14T13:00:00.000000000Z", "raw")
	mock.ExpectQuery("SELECT response, cached_at, expires_at, response_type FROM exchange_rate_cache").
		WithArgs("pair:USD:EUR").
		WillReturnRows(rows)

	_, err := b.Get(ctx, "pair:USD:EUR")
	var serr *cache.SerializationError
	require.ErrorAs(err, &serr)
	require.Equal("pair:USD:EUR", serr.Key)
	require.NoError(mock.ExpectationsWereMet())
}

func TestBackend_MigrationFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS exchange_rate_cache").WillReturnError(errors.New("read-only file system"))

	_, err = NewFromDB(db)
	var berr *cache.BackendError
	require.ErrorAs(t, err, &berr)
	require.Equal(t, "migrate", berr.Op)
}

func TestBackend_FarFutureExpiry(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	b := newTestBackend(t, func() time.Time { return cachetest.Start })

	// one second past the largest four digit year
	entry := cache.NewEntryWithSourceExpiration(map[string]float64{"EUR": 0.9}, 253402300800, cachetest.Start)
	require.NoError(cache.SetTyped(ctx, b, "latest:USD", entry))

	got, err := cache.GetTyped[map[string]float64](ctx, b, "latest:USD")
	require.NoError(err)
	require.Equal(0.9, got.Value["EUR"])
	require.True(got.ExpiresAt.Equal(maxStoredTime), "expires_at = %v", got.ExpiresAt)
}

func TestTimeFormat_SortsLexically(t *testing.T) {
	a := time.Date(2025, 5, 14, 12, 0, 0, 5, time.UTC)
	b := time.Date(2025, 5, 14, 12, 0, 0, 40, time.UTC)
	c := time.Date(2025, 5, 14, 14, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	if !(formatTime(a) < formatTime(b)) {
		t.Errorf("%s !< %s", formatTime(a), formatTime(b))
	}
	if formatTime(c) != "2025-05-14T12:00:00.000000000Z" {
		t.Errorf("formatTime(c) = %s, want UTC normalization", formatTime(c))
	}

	if got := formatTime(time.Date(12000, 1, 1, 0, 0, 0, 0, time.UTC)); got != "9999-12-31T23:59:59.999999999Z" {
		t.Errorf("formatTime(year 12000) = %s, want clamp to year 9999", got)
	}
	if got := formatTime(time.Date(-5, 1, 1, 0, 0, 0, 0, time.UTC)); got != "0000-01-01T00:00:00.000000000Z" {
		t.Errorf("formatTime(year -5) = %s, want clamp to year 0", got)
	}

	parsed, err := parseTime("k", formatTime(b))
	if err != nil || !parsed.Equal(b) {
		t.Errorf("parseTime() = %v, %v; want %v", parsed, err, b)
	}
}
