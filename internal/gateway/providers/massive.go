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
)

// Massive adapts the Massive OHLC aggregator REST API. The API key is
// carried in the query string, so URLs built here are already keyed and
// the gateway client injects nothing.
type Massive struct {
	client  *gateway.Client
	baseURL string
	apiKey  string
	logger  *logrus.Entry
}

// AggBar is a raw aggregate bar as returned by Massive. T is unix
// milliseconds.
type AggBar struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

// AggsResponse is the aggregate-bars envelope. NextURL carries the
// upstream continuation cursor when more pages exist.
type AggsResponse struct {
	Ticker  string   `json:"ticker"`
	Results []AggBar `json:"results"`
	NextURL string   `json:"next_url"`
}

// NewMassive creates a Massive adapter.
func NewMassive(client *gateway.Client, baseURL, apiKey string, logger *logrus.Logger) *Massive {
	return &Massive{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger.WithField("component", "massive"),
	}
}

// Name returns the provider identity.
func (m *Massive) Name() gateway.Provider { return gateway.ProviderMassive }

// HasAPIKey reports whether the adapter is configured for real requests.
func (m *Massive) HasAPIKey() bool { return m.apiKey != "" }

// DailyBars fetches daily aggregate bars for the ticker between from and
// to (YYYY-MM-DD, inclusive).
func (m *Massive) DailyBars(ctx context.Context, ticker, from, to string) (*AggsResponse, error) {
	if m.apiKey == "" {
		return nil, fmt.Errorf("%w: massive", gateway.ErrMissingAPIKey)
	}

	params := url.Values{}
	params.Set("adjusted", "true")
	params.Set("sort", "desc")
	params.Set("limit", "5000")
	params.Set("apiKey", m.apiKey)

	reqURL := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s", m.baseURL, ticker, from, to)
	body, err := m.client.GetWithTimeout(ctx, m.Name(), reqURL, params, 30*time.Second)
	if err != nil {
		return nil, err
	}

	return m.decode(body, ticker)
}

// PageByCursor fetches a continuation page for the ticker and date range.
func (m *Massive) PageByCursor(ctx context.Context, ticker, from, to, cursor string) (*AggsResponse, error) {
	if m.apiKey == "" {
		return nil, fmt.Errorf("%w: massive", gateway.ErrMissingAPIKey)
	}

	params := url.Values{}
	params.Set("cursor", cursor)
	params.Set("apiKey", m.apiKey)

	reqURL := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s", m.baseURL, ticker, from, to)
	body, err := m.client.GetWithTimeout(ctx, m.Name(), reqURL, params, 30*time.Second)
	if err != nil {
		return nil, err
	}

	return m.decode(body, ticker)
}

func (m *Massive) decode(body []byte, ticker string) (*AggsResponse, error) {
	var resp AggsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: massive aggs for %s: %v", gateway.ErrInvalidResponseShape, ticker, err)
	}
	return &resp, nil
}

// CursorFromNextURL extracts the continuation cursor and date-range path
// segments from an upstream next_url so callers can rebuild the request
// through this service's own paginated endpoint.
func CursorFromNextURL(nextURL string) (cursor, from, to string, err error) {
	u, err := url.Parse(nextURL)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid next_url: %w", err)
	}

	cursor = u.Query().Get("cursor")

	// Path shape: /v2/aggs/ticker/{ticker}/range/1/day/{from}/{to}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) >= 2 {
		from = segments[len(segments)-2]
		to = segments[len(segments)-1]
	}

	return cursor, from, to, nil
}
