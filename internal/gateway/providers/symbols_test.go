package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinGeckoID(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
		found  bool
	}{
		{"btc", "bitcoin", true},
		{"BTC", "bitcoin", true},
		{" eth ", "ethereum", true},
		{"btcusdt", "bitcoin", true},
		{"ethusd", "ethereum", true},
		{"usdt", "tether", true},
		{"usdt_trc20", "tether", true},
		{"usdt_erc20", "tether", true},
		{"notacoin", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			id, ok := CoinGeckoID(tt.symbol)
			require.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestCoinPaprikaID(t *testing.T) {
	id, ok := CoinPaprikaID("btc")
	require.True(t, ok)
	assert.Equal(t, "btc-bitcoin", id)

	id, ok = CoinPaprikaID("dogeusdt")
	require.True(t, ok)
	assert.Equal(t, "doge-dogecoin", id)

	_, ok = CoinPaprikaID("notacoin")
	assert.False(t, ok)
}

func TestCoinMarketCapSymbol(t *testing.T) {
	sym, ok := CoinMarketCapSymbol("btc")
	require.True(t, ok)
	assert.Equal(t, "BTC", sym)

	// Network-suffixed tether variants collapse to the base asset.
	sym, ok = CoinMarketCapSymbol("usdt_trc20")
	require.True(t, ok)
	assert.Equal(t, "USDT", sym)

	// CMC quotes are keyed by symbol, so unknown symbols pass through.
	sym, ok = CoinMarketCapSymbol("xmr")
	require.True(t, ok)
	assert.Equal(t, "XMR", sym)
}

func TestNormalizeSymbol(t *testing.T) {
	// Known symbols are never suffix-stripped even when they end in a
	// quote currency.
	assert.Equal(t, "usdt", normalizeSymbol("usdt"))
	assert.Equal(t, "usdc", normalizeSymbol("usdc"))

	assert.Equal(t, "btc", normalizeSymbol("BTCUSDT"))
	assert.Equal(t, "sol", normalizeSymbol("solusd"))
	assert.Equal(t, "ada", normalizeSymbol("adabusd"))
}
