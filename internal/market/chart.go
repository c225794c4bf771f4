package market

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/cache"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/gateway"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/gateway/providers"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/config"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// Cache is the cache-store surface the chart layer needs.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// HistoryProvider serves daily price history for the fallback chain.
type HistoryProvider interface {
	Name() gateway.Provider
	PriceHistory(ctx context.Context, symbol string, days int) ([]models.PricePoint, error)
}

// OHLCProvider serves daily aggregate bars with cursor pagination.
type OHLCProvider interface {
	Name() gateway.Provider
	HasAPIKey() bool
	DailyBars(ctx context.Context, ticker, from, to string) (*providers.AggsResponse, error)
	PageByCursor(ctx context.Context, ticker, from, to, cursor string) (*providers.AggsResponse, error)
}

// BarWriter persists real provider bars; writes are best-effort.
type BarWriter interface {
	WriteCandles(ctx context.Context, symbol, category string, candles []models.Candle) error
}

// ohlcLookbackYears is how far back the trade chart reaches.
const ohlcLookbackYears = 5

// ChartService orchestrates chart requests across the provider fallback
// chain, caching results and falling back to synthetic candles on the
// OHLC path when no provider is reachable.
type ChartService struct {
	cache     Cache
	history   []HistoryProvider
	ohlc      OHLCProvider
	bars      BarWriter
	generator *SyntheticGenerator
	cfg       *config.GatewayConfig
	logger    *logrus.Entry

	now func() time.Time
}

// NewChartService creates a chart service. history is the provider
// priority order; bars may be nil to disable persistence.
func NewChartService(
	cache Cache,
	history []HistoryProvider,
	ohlc OHLCProvider,
	bars BarWriter,
	cfg *config.GatewayConfig,
	logger *logrus.Logger,
) *ChartService {
	return &ChartService{
		cache:     cache,
		history:   history,
		ohlc:      ohlc,
		bars:      bars,
		generator: NewSyntheticGenerator(cfg.FallbackChartBars),
		cfg:       cfg,
		logger:    logger.WithField("component", "charts"),
		now:       time.Now,
	}
}

// FetchChartData fetches a normalized price history for the symbol,
// walking providers in priority order. Every provider failure advances
// the chain; when all providers are exhausted the result carries
// Success=false with no synthetic fallback.
func (s *ChartService) FetchChartData(ctx context.Context, symbol string, days int) *models.ChartData {
	cacheKey := fmt.Sprintf("chart:price:%s:%d", symbol, days)

	var cached models.ChartData
	if found, err := s.cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		s.logger.WithError(err).Warn("Chart cache read failed")
	} else if found && cached.Success {
		return &cached
	}

	for _, provider := range s.history {
		prices, err := s.fetchWithRetry(ctx, provider, symbol, days)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"provider": provider.Name(),
				"symbol":   symbol,
			}).WithError(err).Warn("Provider failed, trying next")
			continue
		}

		result := &models.ChartData{
			Success:  true,
			Prices:   prices,
			Provider: provider.Name().String(),
		}
		if err := s.cache.SetJSON(ctx, cacheKey, result, cache.TTLChart); err != nil {
			s.logger.WithError(err).Warn("Chart cache write failed")
		}
		return result
	}

	return &models.ChartData{
		Success: false,
		Error:   "All API providers failed",
	}
}

// fetchWithRetry is the outer retry layer wrapping the already-resilient
// per-request call. Terminal conditions (no mapping, open circuit,
// exhausted rate limit) advance to the next provider immediately.
func (s *ChartService) fetchWithRetry(ctx context.Context, provider HistoryProvider, symbol string, days int) ([]models.PricePoint, error) {
	var lastErr error

	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		prices, err := provider.PriceHistory(ctx, symbol, days)
		if err == nil {
			return prices, nil
		}
		lastErr = err

		if errors.Is(err, gateway.ErrPairNotFound) ||
			errors.Is(err, gateway.ErrMissingAPIKey) ||
			errors.Is(err, gateway.ErrProviderUnavailable) ||
			errors.Is(err, gateway.ErrRateLimitExceeded) {
			return nil, err
		}

		if attempt < s.cfg.MaxRetries-1 {
			backoff := s.cfg.RetryBaseDelay * time.Duration(1<<attempt)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return nil, lastErr
}

// FetchTradeChartData fetches the OHLC chart for the trade screen. Any
// failure to obtain real bars falls back to synthetic data; no error is
// returned except for an invalid category.
func (s *ChartService) FetchTradeChartData(ctx context.Context, symbol, category string) (*models.TradeChart, error) {
	if !ValidCategory(category) {
		return nil, fmt.Errorf("%w: %s", gateway.ErrInvalidCategory, category)
	}

	cacheKey := fmt.Sprintf("chart:trade:%s:%s", category, symbol)
	var cached models.TradeChart
	if found, err := s.cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		s.logger.WithError(err).Warn("Trade chart cache read failed")
	} else if found {
		return &cached, nil
	}

	pair, ok := LookupPair(category, symbol)
	if !ok || !s.ohlc.HasAPIKey() {
		return s.syntheticChart(ctx, symbol, category, cacheKey), nil
	}

	now := s.now()
	from := now.AddDate(-ohlcLookbackYears, 0, 0).Format("2006-01-02")
	to := now.Format("2006-01-02")

	resp, err := s.ohlc.DailyBars(ctx, pair.Ticker, from, to)
	if err != nil || len(resp.Results) == 0 {
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"symbol": symbol,
				"ticker": pair.Ticker,
			}).WithError(err).Warn("OHLC provider failed, using synthetic data")
		}
		return s.syntheticChart(ctx, symbol, category, cacheKey), nil
	}

	chart := s.buildTradeChart(symbol, category, resp)
	if err := s.cache.SetJSON(ctx, cacheKey, chart, cache.TTLChart); err != nil {
		s.logger.WithError(err).Warn("Trade chart cache write failed")
	}
	s.persistBars(symbol, category, chart.Candles)

	return chart, nil
}

// FetchPaginatedChartData follows a continuation cursor previously
// rewritten into this service's own pagination endpoint.
func (s *ChartService) FetchPaginatedChartData(ctx context.Context, symbol, category, cursor, from, to string) (*models.TradeChart, error) {
	if !ValidCategory(category) {
		return nil, fmt.Errorf("%w: %s", gateway.ErrInvalidCategory, category)
	}

	pair, ok := LookupPair(category, symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", gateway.ErrPairNotFound, category, symbol)
	}

	cacheKey := fmt.Sprintf("chart:trade:%s:%s:page:%s", category, symbol, cursor)
	var cached models.TradeChart
	if found, err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && found {
		return &cached, nil
	}

	resp, err := s.ohlc.PageByCursor(ctx, pair.Ticker, from, to, cursor)
	if err != nil {
		return nil, err
	}

	chart := s.buildTradeChart(symbol, category, resp)
	if err := s.cache.SetJSON(ctx, cacheKey, chart, cache.TTLChart); err != nil {
		s.logger.WithError(err).Warn("Trade chart cache write failed")
	}

	return chart, nil
}

// buildTradeChart converts raw provider bars to chronological candles
// and rewrites the upstream continuation URL into this service's own
// paginated endpoint so callers never see the provider URL.
func (s *ChartService) buildTradeChart(symbol, category string, resp *providers.AggsResponse) *models.TradeChart {
	candles := make([]models.Candle, 0, len(resp.Results))
	for _, bar := range resp.Results {
		candles = append(candles, models.Candle{
			Time:   bar.T / 1000,
			Open:   bar.O,
			High:   bar.H,
			Low:    bar.L,
			Close:  bar.C,
			Volume: int64(bar.V),
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })

	chart := &models.TradeChart{
		Symbol:    symbol,
		Category:  category,
		Timeframe: "1D",
		Candles:   candles,
		Provider:  s.ohlc.Name().String(),
	}

	if resp.NextURL != "" {
		cursor, from, to, err := providers.CursorFromNextURL(resp.NextURL)
		if err != nil || cursor == "" {
			s.logger.WithError(err).Warn("Failed to extract pagination cursor")
		} else {
			query := url.Values{}
			query.Set("symbol", symbol)
			query.Set("category", category)
			query.Set("cursor", cursor)
			query.Set("from", from)
			query.Set("to", to)
			chart.NextPageURL = "/api/v1/charts/paginated?" + query.Encode()
		}
	}

	return chart
}

func (s *ChartService) syntheticChart(ctx context.Context, symbol, category, cacheKey string) *models.TradeChart {
	referencePrice := ReferencePrice(symbol, category, 0)
	candles := s.generator.Generate(symbol, category, referencePrice)

	chart := &models.TradeChart{
		Symbol:     symbol,
		Category:   category,
		Timeframe:  "1D",
		Candles:    candles,
		IsFallback: true,
	}

	if err := s.cache.SetJSON(ctx, cacheKey, chart, cache.TTLSynthetic); err != nil {
		s.logger.WithError(err).Warn("Synthetic chart cache write failed")
	}

	return chart
}

// persistBars writes real bars to the time-series store without blocking
// the request path.
func (s *ChartService) persistBars(symbol, category string, candles []models.Candle) {
	if s.bars == nil || len(candles) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.bars.WriteCandles(ctx, symbol, category, candles); err != nil {
			s.logger.WithFields(logrus.Fields{
				"symbol": symbol,
				"bars":   len(candles),
			}).WithError(err).Warn("Failed to persist chart bars")
		}
	}()
}
