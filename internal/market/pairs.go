// Package market holds the chart orchestration layer: provider fallback
// chains, the synthetic candle generator, and the market-data facade.
package market

import (
	"strings"

	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// Chart categories.
const (
	CategoryForex  = "forex"
	CategoryStock  = "stock"
	CategoryCrypto = "crypto"
)

// ValidCategory reports whether c is a supported chart category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryForex, CategoryStock, CategoryCrypto:
		return true
	}
	return false
}

// Static pair tables mapping platform symbols to the OHLC provider's
// ticker codes.

var forexPairs = map[string]models.PairData{
	"eurusd": {Symbol: "eurusd", Ticker: "C:EURUSD", DisplayName: "EUR/USD"},
	"gbpusd": {Symbol: "gbpusd", Ticker: "C:GBPUSD", DisplayName: "GBP/USD"},
	"usdjpy": {Symbol: "usdjpy", Ticker: "C:USDJPY", DisplayName: "USD/JPY"},
	"usdchf": {Symbol: "usdchf", Ticker: "C:USDCHF", DisplayName: "USD/CHF"},
	"audusd": {Symbol: "audusd", Ticker: "C:AUDUSD", DisplayName: "AUD/USD"},
	"usdcad": {Symbol: "usdcad", Ticker: "C:USDCAD", DisplayName: "USD/CAD"},
	"nzdusd": {Symbol: "nzdusd", Ticker: "C:NZDUSD", DisplayName: "NZD/USD"},
	"eurgbp": {Symbol: "eurgbp", Ticker: "C:EURGBP", DisplayName: "EUR/GBP"},
}

var stockPairs = map[string]models.PairData{
	"aapl":  {Symbol: "aapl", Ticker: "AAPL", DisplayName: "Apple Inc."},
	"msft":  {Symbol: "msft", Ticker: "MSFT", DisplayName: "Microsoft Corporation"},
	"googl": {Symbol: "googl", Ticker: "GOOGL", DisplayName: "Alphabet Inc."},
	"amzn":  {Symbol: "amzn", Ticker: "AMZN", DisplayName: "Amazon.com Inc."},
	"tsla":  {Symbol: "tsla", Ticker: "TSLA", DisplayName: "Tesla Inc."},
	"meta":  {Symbol: "meta", Ticker: "META", DisplayName: "Meta Platforms Inc."},
	"nvda":  {Symbol: "nvda", Ticker: "NVDA", DisplayName: "NVIDIA Corporation"},
}

var cryptoPairs = map[string]models.PairData{
	"btc":  {Symbol: "btc", Ticker: "X:BTCUSD", DisplayName: "Bitcoin"},
	"eth":  {Symbol: "eth", Ticker: "X:ETHUSD", DisplayName: "Ethereum"},
	"sol":  {Symbol: "sol", Ticker: "X:SOLUSD", DisplayName: "Solana"},
	"xrp":  {Symbol: "xrp", Ticker: "X:XRPUSD", DisplayName: "XRP"},
	"ada":  {Symbol: "ada", Ticker: "X:ADAUSD", DisplayName: "Cardano"},
	"doge": {Symbol: "doge", Ticker: "X:DOGEUSD", DisplayName: "Dogecoin"},
	"ltc":  {Symbol: "ltc", Ticker: "X:LTCUSD", DisplayName: "Litecoin"},
}

// LookupPair resolves the pair record for a symbol within a category.
func LookupPair(category, symbol string) (models.PairData, bool) {
	key := strings.ToLower(strings.TrimSpace(symbol))
	switch category {
	case CategoryForex:
		pair, ok := forexPairs[key]
		return pair, ok
	case CategoryStock:
		pair, ok := stockPairs[key]
		return pair, ok
	case CategoryCrypto:
		pair, ok := cryptoPairs[key]
		return pair, ok
	}
	return models.PairData{}, false
}

// defaultPrices provides reference prices for symbols with no live quote.
var defaultPrices = map[string]float64{
	"btc":    43000,
	"eth":    2500,
	"sol":    95,
	"xrp":    0.52,
	"ada":    0.45,
	"doge":   0.08,
	"ltc":    72,
	"eurusd": 1.0850,
	"gbpusd": 1.2650,
	"usdjpy": 149.50,
	"usdchf": 0.8750,
	"audusd": 0.6550,
	"usdcad": 1.3550,
	"nzdusd": 0.6120,
	"eurgbp": 0.8580,
	"aapl":   190,
	"msft":   370,
	"googl":  140,
	"amzn":   155,
	"tsla":   240,
	"meta":   350,
	"nvda":   480,
}

// categoryDefaultPrices cover symbols missing from the per-symbol table.
var categoryDefaultPrices = map[string]float64{
	CategoryForex:  1.0,
	CategoryStock:  100,
	CategoryCrypto: 100,
}

// ReferencePrice resolves the synthetic-series anchor price: the live
// price when known, else the per-symbol default, else the category
// default.
func ReferencePrice(symbol, category string, livePrice float64) float64 {
	if livePrice > 0 {
		return livePrice
	}
	if price, ok := defaultPrices[strings.ToLower(symbol)]; ok {
		return price
	}
	if price, ok := categoryDefaultPrices[category]; ok {
		return price
	}
	return 1.0
}
