package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ken-de-nigerian/incrypto-sub000/pkg/config"
)

func testGatewayConfig() *config.GatewayConfig {
	return &config.GatewayConfig{
		MaxRetries:          3,
		RetryBaseDelay:      time.Millisecond,
		RateLimitMaxRetries: 2,
		RateLimitRetryDelay: time.Millisecond,
		QueueCheckInterval:  time.Millisecond,
		RequestTimeout:      time.Second,
		FailureThreshold:    5,
		BreakerTimeout:      time.Minute,
		MaxTokens:           100,
		RefillPerMinute:     100,
	}
}

func newTestClient(store StateStore, cfg *config.GatewayConfig, providers *config.ProvidersConfig) *Client {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	if providers == nil {
		providers = &config.ProvidersConfig{}
	}
	return NewClient(store, cfg, providers, logger)
}

func TestClient_SuccessfulRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := newTestClient(newMemStore(), testGatewayConfig(), nil)

	body, err := c.Get(context.Background(), ProviderCoinGecko, server.URL, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := newTestClient(newMemStore(), testGatewayConfig(), nil)

	body, err := c.Get(context.Background(), ProviderCoinGecko, server.URL, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_ExhaustedRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(newMemStore(), testGatewayConfig(), nil)

	_, err := c.Get(context.Background(), ProviderCoinGecko, server.URL, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_RateLimitBudgetIsSeparate(t *testing.T) {
	// Two 429s then success must succeed even with a single retry
	// attempt, because 429 handling has its own budget.
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	cfg := testGatewayConfig()
	cfg.MaxRetries = 1
	c := newTestClient(newMemStore(), cfg, nil)

	body, err := c.Get(context.Background(), ProviderCoinGecko, server.URL, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_RateLimitExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := newTestClient(newMemStore(), testGatewayConfig(), nil)

	_, err := c.Get(context.Background(), ProviderCoinGecko, server.URL, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimitExceeded))
	// Initial call plus RateLimitMaxRetries.
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_OpenCircuitRejectsWithoutCalling(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	store := newMemStore()
	c := newTestClient(store, testGatewayConfig(), nil)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Breaker().RecordFailure(ctx, ProviderCoinGecko))
	}

	_, err := c.Get(ctx, ProviderCoinGecko, server.URL, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestClient_FailuresOpenCircuit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testGatewayConfig()
	cfg.FailureThreshold = 3
	c := newTestClient(newMemStore(), cfg, nil)

	ctx := context.Background()
	_, err := c.Get(ctx, ProviderCoinGecko, server.URL, nil)
	require.Error(t, err)

	open, err := c.Breaker().IsOpen(ctx, ProviderCoinGecko)
	require.NoError(t, err)
	assert.True(t, open, "three failed attempts should open the circuit at threshold 3")
}

func TestClient_RequestsConsumeTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := testGatewayConfig()
	cfg.MaxTokens = 10
	cfg.RefillPerMinute = 10
	c := newTestClient(newMemStore(), cfg, nil)

	ctx := context.Background()
	_, err := c.Get(ctx, ProviderCoinGecko, server.URL, nil)
	require.NoError(t, err)

	tokens, err := c.Limiter().Tokens(ctx, ProviderCoinGecko)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, tokens, 0.2)
}

func TestClient_CoinGeckoKeyInjectedAsQueryParam(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("x_cg_demo_api_key")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	providers := &config.ProvidersConfig{CoinGeckoKey: "demo-key"}
	c := newTestClient(newMemStore(), testGatewayConfig(), providers)

	params := url.Values{"days": {"7"}}
	_, err := c.Get(context.Background(), ProviderCoinGecko, server.URL, params)
	require.NoError(t, err)
	assert.Equal(t, "demo-key", gotKey)
}

func TestClient_CoinMarketCapKeyInjectedAsHeader(t *testing.T) {
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-CMC_PRO_API_KEY")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	providers := &config.ProvidersConfig{CoinMarketCapKey: "cmc-key"}
	c := newTestClient(newMemStore(), testGatewayConfig(), providers)

	_, err := c.Get(context.Background(), ProviderCoinMarketCap, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "cmc-key", gotHeader)
}

func TestClient_WaitsForTokenWithoutBurningAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := testGatewayConfig()
	cfg.MaxTokens = 1
	// Fast virtual refill: one token roughly every 600us of wall time.
	cfg.RefillPerMinute = 100000
	c := newTestClient(newMemStore(), cfg, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := c.Get(ctx, ProviderCoinGecko, server.URL, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

// fakeErrorReporter collects reported failures on a channel so tests can
// wait out the asynchronous publish.
type fakeErrorReporter struct {
	reported chan string
}

func newFakeErrorReporter() *fakeErrorReporter {
	return &fakeErrorReporter{reported: make(chan string, 4)}
}

func (f *fakeErrorReporter) PublishGatewayError(provider string, err error) error {
	f.reported <- provider
	return nil
}

func (f *fakeErrorReporter) wait(t *testing.T) string {
	t.Helper()
	select {
	case provider := <-f.reported:
		return provider
	case <-time.After(2 * time.Second):
		t.Fatal("no gateway error was reported")
		return ""
	}
}

func TestClient_ReportsExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	reporter := newFakeErrorReporter()
	c := newTestClient(newMemStore(), testGatewayConfig(), nil)
	c.SetErrorReporter(reporter)

	_, err := c.Get(context.Background(), ProviderCoinGecko, server.URL, nil)
	require.Error(t, err)
	assert.Equal(t, string(ProviderCoinGecko), reporter.wait(t))
}

func TestClient_ReportsOpenCircuitRejection(t *testing.T) {
	store := newMemStore()
	cfg := testGatewayConfig()

	reporter := newFakeErrorReporter()
	c := newTestClient(store, cfg, nil)
	c.SetErrorReporter(reporter)

	ctx := context.Background()
	for i := 0; i < cfg.FailureThreshold; i++ {
		require.NoError(t, c.Breaker().RecordFailure(ctx, ProviderCoinPaprika))
	}

	_, err := c.Get(ctx, ProviderCoinPaprika, "http://unreachable.invalid", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	assert.Equal(t, string(ProviderCoinPaprika), reporter.wait(t))
}

func TestClient_NoReporterIsFine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(newMemStore(), testGatewayConfig(), nil)

	_, err := c.Get(context.Background(), ProviderCoinGecko, server.URL, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
}
