package models

// PricePoint is a [timestamp_ms, price] pair as served to charting clients.
type PricePoint [2]float64

// ChartData is the normalized price-history payload returned by the
// chart endpoints. Provider identifies which upstream produced the data.
type ChartData struct {
	Success  bool         `json:"success"`
	Prices   []PricePoint `json:"prices,omitempty"`
	Provider string       `json:"provider,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Candle represents a single OHLCV bar. Time is unix seconds.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// TradeChart is the OHLC chart payload for the trade screen. When no
// upstream provider could serve the request the candles are synthetic
// and IsFallback is set.
type TradeChart struct {
	Symbol      string   `json:"symbol"`
	Category    string   `json:"category"`
	Timeframe   string   `json:"timeframe"`
	Candles     []Candle `json:"candles"`
	IsFallback  bool     `json:"is_fallback"`
	NextPageURL string   `json:"next_page_url,omitempty"`
	Provider    string   `json:"provider,omitempty"`
}

// MarketQuote is the symbol-keyed market snapshot consumed by the
// wallet and trade services.
type MarketQuote struct {
	Symbol                   string  `json:"symbol"`
	CurrentPrice             float64 `json:"current_price"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	MarketCap                float64 `json:"market_cap"`
	TotalVolume              float64 `json:"total_volume"`
	Image                    string  `json:"image"`
}

// PairData is a static reference record mapping a platform symbol to the
// ticker code used by the OHLC provider.
type PairData struct {
	Symbol      string `json:"symbol"`
	Ticker      string `json:"ticker"`
	DisplayName string `json:"display_name"`
}
