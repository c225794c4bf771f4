package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/gateway"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// CoinMarketCap adapts the CoinMarketCap pro REST API. Authentication is
// injected by the gateway client as the X-CMC_PRO_API_KEY header.
type CoinMarketCap struct {
	client  *gateway.Client
	baseURL string
	logger  *logrus.Entry
}

// NewCoinMarketCap creates a CoinMarketCap adapter.
func NewCoinMarketCap(client *gateway.Client, baseURL string, logger *logrus.Logger) *CoinMarketCap {
	return &CoinMarketCap{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.WithField("component", "coinmarketcap"),
	}
}

// Name returns the provider identity.
func (c *CoinMarketCap) Name() gateway.Provider { return gateway.ProviderCoinMarketCap }

// PriceHistory fetches daily historical quotes via
// /v1/cryptocurrency/quotes/historical.
func (c *CoinMarketCap) PriceHistory(ctx context.Context, symbol string, days int) ([]models.PricePoint, error) {
	ticker, ok := CoinMarketCapSymbol(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no coinmarketcap ticker", gateway.ErrPairNotFound, symbol)
	}

	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("interval", "daily")
	params.Set("count", strconv.Itoa(days))
	params.Set("convert", "USD")

	body, err := c.client.Get(ctx, c.Name(), fmt.Sprintf("%s/v1/cryptocurrency/quotes/historical", c.baseURL), params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data struct {
			Quotes []struct {
				Timestamp time.Time `json:"timestamp"`
				Quote     struct {
					USD struct {
						Price float64 `json:"price"`
					} `json:"USD"`
				} `json:"quote"`
			} `json:"quotes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: coinmarketcap historical quotes: %v", gateway.ErrInvalidResponseShape, err)
	}
	if len(payload.Data.Quotes) == 0 {
		return nil, fmt.Errorf("%w: coinmarketcap returned no quotes for %s", gateway.ErrInvalidResponseShape, symbol)
	}

	prices := make([]models.PricePoint, 0, len(payload.Data.Quotes))
	for _, q := range payload.Data.Quotes {
		prices = append(prices, models.PricePoint{
			float64(q.Timestamp.UnixMilli()),
			q.Quote.USD.Price,
		})
	}

	return prices, nil
}
