// Package providers contains the per-provider request/response adapters
// built on the resilient gateway client.
package providers

import "strings"

// coinGeckoIDs maps platform symbols to CoinGecko coin ids.
var coinGeckoIDs = map[string]string{
	"btc":        "bitcoin",
	"eth":        "ethereum",
	"bnb":        "binancecoin",
	"xrp":        "ripple",
	"ada":        "cardano",
	"doge":       "dogecoin",
	"sol":        "solana",
	"dot":        "polkadot",
	"matic":      "matic-network",
	"shib":       "shiba-inu",
	"avax":       "avalanche-2",
	"link":       "chainlink",
	"ltc":        "litecoin",
	"uni":        "uniswap",
	"xlm":        "stellar",
	"trx":        "tron",
	"usdt":       "tether",
	"usdt_trc20": "tether",
	"usdt_erc20": "tether",
	"usdc":       "usd-coin",
}

// coinPaprikaIDs maps platform symbols to CoinPaprika ticker ids.
var coinPaprikaIDs = map[string]string{
	"btc":        "btc-bitcoin",
	"eth":        "eth-ethereum",
	"bnb":        "bnb-binance-coin",
	"xrp":        "xrp-xrp",
	"ada":        "ada-cardano",
	"doge":       "doge-dogecoin",
	"sol":        "sol-solana",
	"dot":        "dot-polkadot",
	"ltc":        "ltc-litecoin",
	"trx":        "trx-tron",
	"usdt":       "usdt-tether",
	"usdt_trc20": "usdt-tether",
	"usdt_erc20": "usdt-tether",
}

// normalizeSymbol lowercases and strips common quote-currency suffixes so
// pair-style symbols (btcusdt, ethusd) resolve to the base asset.
func normalizeSymbol(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if _, ok := coinGeckoIDs[s]; ok {
		return s
	}
	// Longer suffixes first so "busd" pairs do not lose a bare "usd".
	for _, suffix := range []string{"usdt", "busd", "usdc", "usd"} {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			return strings.TrimSuffix(s, suffix)
		}
	}
	return s
}

// CoinGeckoID resolves the CoinGecko coin id for a platform symbol.
func CoinGeckoID(symbol string) (string, bool) {
	id, ok := coinGeckoIDs[normalizeSymbol(symbol)]
	return id, ok
}

// CoinPaprikaID resolves the CoinPaprika ticker id for a platform symbol.
func CoinPaprikaID(symbol string) (string, bool) {
	id, ok := coinPaprikaIDs[normalizeSymbol(symbol)]
	return id, ok
}

// CoinMarketCapSymbol resolves the CoinMarketCap ticker for a platform
// symbol. CMC keys quotes by upper-case base asset symbol.
func CoinMarketCapSymbol(symbol string) (string, bool) {
	s := normalizeSymbol(symbol)
	if s == "" {
		return "", false
	}
	if strings.HasPrefix(s, "usdt_") {
		s = "usdt"
	}
	return strings.ToUpper(s), true
}
