package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ken-de-nigerian/incrypto-sub000/internal/gateway"
	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// CoinPaprika adapts the CoinPaprika REST API. The free tier needs no
// authentication.
type CoinPaprika struct {
	client  *gateway.Client
	baseURL string
	logger  *logrus.Entry

	now func() time.Time
}

// NewCoinPaprika creates a CoinPaprika adapter.
func NewCoinPaprika(client *gateway.Client, baseURL string, logger *logrus.Logger) *CoinPaprika {
	return &CoinPaprika{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.WithField("component", "coinpaprika"),
		now:     time.Now,
	}
}

// Name returns the provider identity.
func (c *CoinPaprika) Name() gateway.Provider { return gateway.ProviderCoinPaprika }

// PriceHistory fetches daily historical ticks via
// /v1/tickers/{id}/historical.
func (c *CoinPaprika) PriceHistory(ctx context.Context, symbol string, days int) ([]models.PricePoint, error) {
	tickerID, ok := CoinPaprikaID(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no coinpaprika id", gateway.ErrPairNotFound, symbol)
	}

	start := c.now().AddDate(0, 0, -days).Format("2006-01-02")
	params := url.Values{}
	params.Set("start", start)
	params.Set("interval", "1d")

	body, err := c.client.Get(ctx, c.Name(), fmt.Sprintf("%s/v1/tickers/%s/historical", c.baseURL, tickerID), params)
	if err != nil {
		return nil, err
	}

	var ticks []struct {
		Timestamp time.Time `json:"timestamp"`
		Price     float64   `json:"price"`
	}
	if err := json.Unmarshal(body, &ticks); err != nil {
		return nil, fmt.Errorf("%w: coinpaprika historical ticks: %v", gateway.ErrInvalidResponseShape, err)
	}
	if len(ticks) == 0 {
		return nil, fmt.Errorf("%w: coinpaprika returned no ticks for %s", gateway.ErrInvalidResponseShape, symbol)
	}

	prices := make([]models.PricePoint, 0, len(ticks))
	for _, tick := range ticks {
		prices = append(prices, models.PricePoint{
			float64(tick.Timestamp.UnixMilli()),
			tick.Price,
		})
	}

	return prices, nil
}
