package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/gateway"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// CoinGecko adapts the CoinGecko REST API.
type CoinGecko struct {
	client  *gateway.Client
	baseURL string
	logger  *logrus.Entry
}

// NewCoinGecko creates a CoinGecko adapter.
func NewCoinGecko(client *gateway.Client, baseURL string, logger *logrus.Logger) *CoinGecko {
	return &CoinGecko{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.WithField("component", "coingecko"),
	}
}

// Name returns the provider identity.
func (c *CoinGecko) Name() gateway.Provider { return gateway.ProviderCoinGecko }

// PriceHistory fetches daily price history for a symbol via
// /coins/{id}/market_chart.
func (c *CoinGecko) PriceHistory(ctx context.Context, symbol string, days int) ([]models.PricePoint, error) {
	coinID, ok := CoinGeckoID(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no coingecko id", gateway.ErrPairNotFound, symbol)
	}

	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("days", strconv.Itoa(days))

	body, err := c.client.Get(ctx, c.Name(), fmt.Sprintf("%s/coins/%s/market_chart", c.baseURL, coinID), params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Prices []models.PricePoint `json:"prices"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: coingecko market_chart: %v", gateway.ErrInvalidResponseShape, err)
	}
	if len(payload.Prices) == 0 {
		return nil, fmt.Errorf("%w: coingecko returned no prices for %s", gateway.ErrInvalidResponseShape, symbol)
	}

	return payload.Prices, nil
}

// Markets fetches the market snapshot for a set of coin ids via
// /coins/markets. The result is keyed by coin id.
func (c *CoinGecko) Markets(ctx context.Context, ids []string) (map[string]models.MarketQuote, error) {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("ids", strings.Join(ids, ","))

	body, err := c.client.Get(ctx, c.Name(), fmt.Sprintf("%s/coins/markets", c.baseURL), params)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID                       string  `json:"id"`
		Symbol                   string  `json:"symbol"`
		CurrentPrice             float64 `json:"current_price"`
		PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
		MarketCap                float64 `json:"market_cap"`
		TotalVolume              float64 `json:"total_volume"`
		Image                    string  `json:"image"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: coingecko markets: %v", gateway.ErrInvalidResponseShape, err)
	}

	quotes := make(map[string]models.MarketQuote, len(rows))
	for _, row := range rows {
		quotes[row.ID] = models.MarketQuote{
			Symbol:                   row.Symbol,
			CurrentPrice:             row.CurrentPrice,
			PriceChangePercentage24h: row.PriceChangePercentage24h,
			MarketCap:                row.MarketCap,
			TotalVolume:              row.TotalVolume,
			Image:                    row.Image,
		}
	}

	return quotes, nil
}
