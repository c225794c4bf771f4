package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/cache"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/gateway"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/gateway/providers"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/config"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// memCache is an in-memory Cache for tests. TTLs are recorded so tests
// can assert on the data class a write was cached under.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (m *memCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memCache) SetJSON(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memCache) ttl(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

type fakeHistory struct {
	name   gateway.Provider
	prices []models.PricePoint
	err    error
	calls  int
}

func (f *fakeHistory) Name() gateway.Provider { return f.name }

func (f *fakeHistory) PriceHistory(_ context.Context, _ string, _ int) ([]models.PricePoint, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.prices, nil
}

type fakeOHLC struct {
	hasKey   bool
	daily    *providers.AggsResponse
	dailyErr error
	page     *providers.AggsResponse
	pageErr  error

	dailyCalls int
	pageCalls  int
	gotTicker  string
	gotFrom    string
	gotTo      string
	gotCursor  string
}

func (f *fakeOHLC) Name() gateway.Provider { return gateway.ProviderMassive }
func (f *fakeOHLC) HasAPIKey() bool        { return f.hasKey }

func (f *fakeOHLC) DailyBars(_ context.Context, ticker, from, to string) (*providers.AggsResponse, error) {
	f.dailyCalls++
	f.gotTicker, f.gotFrom, f.gotTo = ticker, from, to
	return f.daily, f.dailyErr
}

func (f *fakeOHLC) PageByCursor(_ context.Context, ticker, from, to, cursor string) (*providers.AggsResponse, error) {
	f.pageCalls++
	f.gotTicker, f.gotFrom, f.gotTo, f.gotCursor = ticker, from, to, cursor
	return f.page, f.pageErr
}

// fakeBarWriter signals on a channel so tests can wait for the
// asynchronous persistence goroutine.
type fakeBarWriter struct {
	written chan int
}

func newFakeBarWriter() *fakeBarWriter {
	return &fakeBarWriter{written: make(chan int, 1)}
}

func (f *fakeBarWriter) WriteCandles(_ context.Context, _, _ string, candles []models.Candle) error {
	f.written <- len(candles)
	return nil
}

func testChartConfig() *config.GatewayConfig {
	return &config.GatewayConfig{
		MaxRetries:        3,
		RetryBaseDelay:    time.Millisecond,
		FallbackChartBars: 120,
	}
}

func newTestChartService(cache Cache, history []HistoryProvider, ohlc OHLCProvider, bars BarWriter) *ChartService {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewChartService(cache, history, ohlc, bars, testChartConfig(), logger)
}

func TestFetchChartData_FallsBackToNextProvider(t *testing.T) {
	broken := &fakeHistory{name: gateway.ProviderCoinGecko, err: fmt.Errorf("upstream exploded")}
	healthy := &fakeHistory{
		name:   gateway.ProviderCoinMarketCap,
		prices: []models.PricePoint{{1700000000000, 42000}, {1700086400000, 42500}},
	}
	svc := newTestChartService(newMemCache(), []HistoryProvider{broken, healthy}, &fakeOHLC{}, nil)

	result := svc.FetchChartData(context.Background(), "bitcoin", 7)

	require.True(t, result.Success)
	assert.Equal(t, "coinmarketcap", result.Provider)
	assert.Len(t, result.Prices, 2)
	assert.Equal(t, 3, broken.calls, "transient failures should be retried before falling back")
	assert.Equal(t, 1, healthy.calls)
}

func TestFetchChartData_SuccessIsCached(t *testing.T) {
	provider := &fakeHistory{
		name:   gateway.ProviderCoinGecko,
		prices: []models.PricePoint{{1700000000000, 42000}},
	}
	store := newMemCache()
	svc := newTestChartService(store, []HistoryProvider{provider}, &fakeOHLC{}, nil)

	first := svc.FetchChartData(context.Background(), "bitcoin", 7)
	second := svc.FetchChartData(context.Background(), "bitcoin", 7)

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.Equal(t, 1, provider.calls, "second fetch should be served from cache")
	assert.Equal(t, cache.TTLChart, store.ttl("chart:price:bitcoin:7"))
}

func TestFetchChartData_AllProvidersFail(t *testing.T) {
	first := &fakeHistory{name: gateway.ProviderCoinGecko, err: fmt.Errorf("boom")}
	second := &fakeHistory{name: gateway.ProviderCoinPaprika, err: fmt.Errorf("boom")}
	svc := newTestChartService(newMemCache(), []HistoryProvider{first, second}, &fakeOHLC{}, nil)

	result := svc.FetchChartData(context.Background(), "bitcoin", 7)

	require.False(t, result.Success)
	assert.Equal(t, "All API providers failed", result.Error)
	assert.Empty(t, result.Prices)

	// Failures must not be cached; the next request walks the chain again.
	svc.FetchChartData(context.Background(), "bitcoin", 7)
	assert.Equal(t, 6, first.calls)
	assert.Equal(t, 6, second.calls)
}

func TestFetchChartData_TerminalErrorsSkipRetries(t *testing.T) {
	unavailable := &fakeHistory{
		name: gateway.ProviderCoinGecko,
		err:  fmt.Errorf("%w: coingecko", gateway.ErrProviderUnavailable),
	}
	healthy := &fakeHistory{
		name:   gateway.ProviderCoinPaprika,
		prices: []models.PricePoint{{1700000000000, 42000}},
	}
	svc := newTestChartService(newMemCache(), []HistoryProvider{unavailable, healthy}, &fakeOHLC{}, nil)

	result := svc.FetchChartData(context.Background(), "bitcoin", 7)

	require.True(t, result.Success)
	assert.Equal(t, 1, unavailable.calls, "open circuit should advance immediately")
}

func TestFetchChartData_IgnoresCachedFailure(t *testing.T) {
	store := newMemCache()
	err := store.SetJSON(context.Background(), "chart:price:bitcoin:7", &models.ChartData{Success: false, Error: "stale"}, cache.TTLChart)
	require.NoError(t, err)

	provider := &fakeHistory{
		name:   gateway.ProviderCoinGecko,
		prices: []models.PricePoint{{1700000000000, 42000}},
	}
	svc := newTestChartService(store, []HistoryProvider{provider}, &fakeOHLC{}, nil)

	result := svc.FetchChartData(context.Background(), "bitcoin", 7)

	require.True(t, result.Success)
	assert.Equal(t, 1, provider.calls)
}

func TestFetchTradeChartData_InvalidCategory(t *testing.T) {
	svc := newTestChartService(newMemCache(), nil, &fakeOHLC{}, nil)

	_, err := svc.FetchTradeChartData(context.Background(), "btc", "bonds")

	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrInvalidCategory))
}

func TestFetchTradeChartData_UnknownPairUsesSynthetic(t *testing.T) {
	ohlc := &fakeOHLC{hasKey: true}
	store := newMemCache()
	svc := newTestChartService(store, nil, ohlc, nil)

	chart, err := svc.FetchTradeChartData(context.Background(), "notacoin", CategoryCrypto)

	require.NoError(t, err)
	assert.True(t, chart.IsFallback)
	assert.Equal(t, "1D", chart.Timeframe)
	assert.Len(t, chart.Candles, 120)
	assert.Equal(t, 0, ohlc.dailyCalls, "unmapped pairs should never reach the provider")
	assert.Equal(t, cache.TTLSynthetic, store.ttl("chart:trade:crypto:notacoin"))
}

func TestFetchTradeChartData_MissingAPIKeyUsesSynthetic(t *testing.T) {
	ohlc := &fakeOHLC{hasKey: false}
	svc := newTestChartService(newMemCache(), nil, ohlc, nil)

	chart, err := svc.FetchTradeChartData(context.Background(), "btc", CategoryCrypto)

	require.NoError(t, err)
	assert.True(t, chart.IsFallback)
	assert.Equal(t, 0, ohlc.dailyCalls)
}

func TestFetchTradeChartData_ProviderErrorUsesSynthetic(t *testing.T) {
	ohlc := &fakeOHLC{hasKey: true, dailyErr: fmt.Errorf("upstream down")}
	svc := newTestChartService(newMemCache(), nil, ohlc, nil)

	chart, err := svc.FetchTradeChartData(context.Background(), "btc", CategoryCrypto)

	require.NoError(t, err)
	assert.True(t, chart.IsFallback)
	assert.NotEmpty(t, chart.Candles)
}

func TestFetchTradeChartData_EmptyResultsUsesSynthetic(t *testing.T) {
	ohlc := &fakeOHLC{hasKey: true, daily: &providers.AggsResponse{Ticker: "X:BTCUSD"}}
	svc := newTestChartService(newMemCache(), nil, ohlc, nil)

	chart, err := svc.FetchTradeChartData(context.Background(), "btc", CategoryCrypto)

	require.NoError(t, err)
	assert.True(t, chart.IsFallback)
}

func TestFetchTradeChartData_RealBars(t *testing.T) {
	ohlc := &fakeOHLC{
		hasKey: true,
		daily: &providers.AggsResponse{
			Ticker: "X:BTCUSD",
			Results: []providers.AggBar{
				{T: 1700086400000, O: 42500, H: 43000, L: 42000, C: 42800, V: 1200},
				{T: 1700000000000, O: 42000, H: 42600, L: 41800, C: 42500, V: 900},
			},
			NextURL: "https://api.massive.example/v2/aggs/ticker/X:BTCUSD/range/1/day/2020-06-01/2025-06-01?cursor=abc123&apiKey=secret",
		},
	}
	bars := newFakeBarWriter()
	store := newMemCache()
	svc := newTestChartService(store, nil, ohlc, bars)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	chart, err := svc.FetchTradeChartData(context.Background(), "btc", CategoryCrypto)

	require.NoError(t, err)
	assert.False(t, chart.IsFallback)
	assert.Equal(t, "massive", chart.Provider)
	assert.Equal(t, "X:BTCUSD", ohlc.gotTicker)
	assert.Equal(t, "2020-06-01", ohlc.gotFrom)
	assert.Equal(t, "2025-06-01", ohlc.gotTo)

	// Bars arrive newest-first and must come out chronological, with
	// millisecond timestamps converted to seconds.
	require.Len(t, chart.Candles, 2)
	assert.Equal(t, int64(1700000000), chart.Candles[0].Time)
	assert.Equal(t, int64(1700086400), chart.Candles[1].Time)
	assert.Equal(t, 42000.0, chart.Candles[0].Open)

	// The upstream continuation URL is rewritten onto our own endpoint.
	assert.Contains(t, chart.NextPageURL, "/api/v1/charts/paginated?")
	assert.Contains(t, chart.NextPageURL, "cursor=abc123")
	assert.Contains(t, chart.NextPageURL, "symbol=btc")
	assert.NotContains(t, chart.NextPageURL, "apiKey")

	assert.Equal(t, cache.TTLChart, store.ttl("chart:trade:crypto:btc"))

	select {
	case n := <-bars.written:
		assert.Equal(t, 2, n)
	case <-time.After(2 * time.Second):
		t.Fatal("bars were never persisted")
	}
}

func TestFetchTradeChartData_ServedFromCache(t *testing.T) {
	ohlc := &fakeOHLC{
		hasKey: true,
		daily: &providers.AggsResponse{
			Results: []providers.AggBar{{T: 1700000000000, O: 1, H: 2, L: 0.5, C: 1.5, V: 10}},
		},
	}
	svc := newTestChartService(newMemCache(), nil, ohlc, nil)

	_, err := svc.FetchTradeChartData(context.Background(), "btc", CategoryCrypto)
	require.NoError(t, err)
	_, err = svc.FetchTradeChartData(context.Background(), "btc", CategoryCrypto)
	require.NoError(t, err)

	assert.Equal(t, 1, ohlc.dailyCalls)
}

func TestFetchPaginatedChartData_UnknownPair(t *testing.T) {
	svc := newTestChartService(newMemCache(), nil, &fakeOHLC{hasKey: true}, nil)

	_, err := svc.FetchPaginatedChartData(context.Background(), "notacoin", CategoryCrypto, "abc", "2020-06-01", "2025-06-01")

	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrPairNotFound))
}

func TestFetchPaginatedChartData_ProviderErrorPropagates(t *testing.T) {
	ohlc := &fakeOHLC{hasKey: true, pageErr: fmt.Errorf("%w: massive", gateway.ErrRateLimitExceeded)}
	svc := newTestChartService(newMemCache(), nil, ohlc, nil)

	_, err := svc.FetchPaginatedChartData(context.Background(), "btc", CategoryCrypto, "abc", "2020-06-01", "2025-06-01")

	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrRateLimitExceeded))
}

func TestFetchPaginatedChartData_Success(t *testing.T) {
	ohlc := &fakeOHLC{
		hasKey: true,
		page: &providers.AggsResponse{
			Results: []providers.AggBar{{T: 1700000000000, O: 1, H: 2, L: 0.5, C: 1.5, V: 10}},
		},
	}
	svc := newTestChartService(newMemCache(), nil, ohlc, nil)

	chart, err := svc.FetchPaginatedChartData(context.Background(), "btc", CategoryCrypto, "abc", "2020-06-01", "2025-06-01")

	require.NoError(t, err)
	assert.Equal(t, "X:BTCUSD", ohlc.gotTicker)
	assert.Equal(t, "abc", ohlc.gotCursor)
	require.Len(t, chart.Candles, 1)
	assert.Empty(t, chart.NextPageURL, "final page carries no continuation")

	// Pages are cached per cursor.
	_, err = svc.FetchPaginatedChartData(context.Background(), "btc", CategoryCrypto, "abc", "2020-06-01", "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 1, ohlc.pageCalls)
}
