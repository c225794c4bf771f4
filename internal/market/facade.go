package market

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/cache"
	"github.com/ken-de-nigerian/incrypto-sub000/internal/gateway/providers"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// MarketsProvider serves the coin-id-keyed market snapshot.
type MarketsProvider interface {
	Markets(ctx context.Context, ids []string) (map[string]models.MarketQuote, error)
}

// QuotePublisher pushes fresh quotes to live subscribers. Cache hits are
// not republished; only a provider fetch produces new data.
type QuotePublisher interface {
	PublishQuote(quote *models.MarketQuote) error
}

// Static image fallbacks for symbols the provider snapshot misses.
var defaultImages = map[string]string{
	"btc": "https://assets.coingecko.com/coins/images/1/large/bitcoin.png",
	"eth": "https://assets.coingecko.com/coins/images/279/large/ethereum.png",
	"ltc": "https://assets.coingecko.com/coins/images/2/large/litecoin.png",
}

// Facade aggregates gateway outputs into the symbol-keyed market map
// consumed by the wallet and trade services.
type Facade struct {
	cache   Cache
	markets MarketsProvider
	quotes  QuotePublisher
	logger  *logrus.Entry
}

// NewFacade creates a market-data facade. quotes may be nil to disable
// live quote publishing.
func NewFacade(cache Cache, markets MarketsProvider, quotes QuotePublisher, logger *logrus.Logger) *Facade {
	return &Facade{
		cache:   cache,
		markets: markets,
		quotes:  quotes,
		logger:  logger.WithField("component", "market-facade"),
	}
}

// GetMarketData returns the market snapshot keyed by the requested
// platform symbols. Symbols with no provider mapping or missing from the
// snapshot are omitted.
func (f *Facade) GetMarketData(ctx context.Context, symbols []string) (map[string]models.MarketQuote, error) {
	idBySymbol := make(map[string]string, len(symbols))
	ids := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		id, ok := providers.CoinGeckoID(symbol)
		if !ok {
			f.logger.WithField("symbol", symbol).Debug("No provider mapping for symbol")
			continue
		}
		idBySymbol[symbol] = id
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return map[string]models.MarketQuote{}, nil
	}

	cacheKey := marketCacheKey(ids)
	cached := make(map[string]models.MarketQuote)
	if found, err := f.cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		f.logger.WithError(err).Warn("Market cache read failed")
	} else if found {
		return f.remap(idBySymbol, cached), nil
	}

	quotes, err := f.markets.Markets(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market data: %w", err)
	}

	if err := f.cache.SetJSON(ctx, cacheKey, quotes, cache.TTLPrice); err != nil {
		f.logger.WithError(err).Warn("Market cache write failed")
	}

	result := f.remap(idBySymbol, quotes)
	f.publishQuotes(result)
	return result, nil
}

// publishQuotes fans fresh quotes out over the price stream without
// blocking the request path.
func (f *Facade) publishQuotes(quotes map[string]models.MarketQuote) {
	if f.quotes == nil {
		return
	}

	go func() {
		for _, quote := range quotes {
			q := quote
			if err := f.quotes.PublishQuote(&q); err != nil {
				f.logger.WithError(err).WithField("symbol", q.Symbol).Warn("Failed to publish quote")
			}
		}
	}()
}

// GetPrice returns the current USD price for a single symbol, or 0 when
// no quote is available.
func (f *Facade) GetPrice(ctx context.Context, symbol string) (float64, error) {
	data, err := f.GetMarketData(ctx, []string{symbol})
	if err != nil {
		return 0, err
	}
	quote, ok := data[symbol]
	if !ok {
		return 0, nil
	}
	return quote.CurrentPrice, nil
}

func (f *Facade) remap(idBySymbol map[string]string, quotes map[string]models.MarketQuote) map[string]models.MarketQuote {
	result := make(map[string]models.MarketQuote, len(idBySymbol))
	for symbol, id := range idBySymbol {
		quote, ok := quotes[id]
		if !ok {
			continue
		}
		quote.Symbol = symbol
		if quote.Image == "" {
			quote.Image = defaultImages[strings.ToLower(symbol)]
		}
		result[symbol] = quote
	}
	return result
}

func marketCacheKey(ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	return "markets:" + strings.Join(sorted, ",")
}
