package market

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSyntheticGenerator_BarCount(t *testing.T) {
	g := NewSyntheticGenerator(120)

	candles := g.Generate("btc", CategoryCrypto, 43000)
	assert.Len(t, candles, 120)
}

func TestSyntheticGenerator_FinalCloseIsReference(t *testing.T) {
	g := NewSyntheticGenerator(120)

	candles := g.Generate("btc", CategoryCrypto, 43000)
	require.NotEmpty(t, candles)
	assert.Equal(t, 43000.0, candles[len(candles)-1].Close)
}

func TestSyntheticGenerator_CandleInvariants(t *testing.T) {
	g := NewSyntheticGenerator(120)

	for _, tc := range []struct {
		symbol   string
		category string
		price    float64
	}{
		{"btc", CategoryCrypto, 43000},
		{"doge", CategoryCrypto, 0.08},
		{"eurusd", CategoryForex, 1.0850},
		{"aapl", CategoryStock, 190},
	} {
		candles := g.Generate(tc.symbol, tc.category, tc.price)
		require.Len(t, candles, 120, tc.symbol)

		for i, c := range candles {
			assert.GreaterOrEqual(t, c.High, math.Max(c.Open, c.Close), "%s bar %d high", tc.symbol, i)
			assert.LessOrEqual(t, c.Low, math.Min(c.Open, c.Close), "%s bar %d low", tc.symbol, i)
			assert.Greater(t, c.Open, 0.0, "%s bar %d open", tc.symbol, i)
			assert.Greater(t, c.Low, 0.0, "%s bar %d low positive", tc.symbol, i)
			assert.Greater(t, c.Volume, int64(0), "%s bar %d volume", tc.symbol, i)

			if i > 0 {
				assert.Greater(t, c.Time, candles[i-1].Time, "%s bar %d time order", tc.symbol, i)
			}
		}
	}
}

func TestSyntheticGenerator_DailyTimestamps(t *testing.T) {
	g := NewSyntheticGenerator(10)
	g.now = fixedClock(time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC))

	candles := g.Generate("btc", CategoryCrypto, 43000)
	require.Len(t, candles, 10)

	last := candles[len(candles)-1]
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC).Unix(), last.Time)

	for i := 1; i < len(candles); i++ {
		assert.Equal(t, int64(86400), candles[i].Time-candles[i-1].Time)
	}
}

func TestSyntheticGenerator_StableWithinDay(t *testing.T) {
	g1 := NewSyntheticGenerator(120)
	g2 := NewSyntheticGenerator(120)

	day := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	g1.now = fixedClock(day)
	g2.now = fixedClock(day.Add(8 * time.Hour))

	assert.Equal(t,
		g1.Generate("btc", CategoryCrypto, 43000),
		g2.Generate("btc", CategoryCrypto, 43000),
		"same calendar day must produce the same series")
}

func TestSyntheticGenerator_ChangesAcrossDays(t *testing.T) {
	g1 := NewSyntheticGenerator(120)
	g2 := NewSyntheticGenerator(120)

	g1.now = fixedClock(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	g2.now = fixedClock(time.Date(2025, 3, 16, 12, 0, 0, 0, time.UTC))

	assert.NotEqual(t,
		g1.Generate("btc", CategoryCrypto, 43000),
		g2.Generate("btc", CategoryCrypto, 43000))
}

func TestSyntheticGenerator_ForexSeriesIsCalmerThanCrypto(t *testing.T) {
	g := NewSyntheticGenerator(120)
	g.now = fixedClock(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))

	relRange := func(category string, price float64) float64 {
		candles := g.Generate("x", category, price)
		min, max := candles[0].Low, candles[0].High
		for _, c := range candles {
			min = math.Min(min, c.Low)
			max = math.Max(max, c.High)
		}
		return (max - min) / price
	}

	assert.Less(t, relRange(CategoryForex, 1.0850), relRange(CategoryCrypto, 43000))
}

func TestPricePrecision(t *testing.T) {
	assert.Equal(t, 5, pricePrecision(CategoryForex, 1.085))
	assert.Equal(t, 4, pricePrecision(CategoryStock, 4.5))
	assert.Equal(t, 2, pricePrecision(CategoryStock, 190))
	assert.Equal(t, 2, pricePrecision(CategoryCrypto, 43000))
	assert.Equal(t, 3, pricePrecision(CategoryCrypto, 2.5))
	assert.Equal(t, 5, pricePrecision(CategoryCrypto, 0.08))
}

func TestReferencePrice(t *testing.T) {
	assert.Equal(t, 99.5, ReferencePrice("btc", CategoryCrypto, 99.5), "live price wins")
	assert.Equal(t, 43000.0, ReferencePrice("btc", CategoryCrypto, 0), "per-symbol default")
	assert.Equal(t, 1.0, ReferencePrice("unknown", CategoryForex, 0), "category default")
	assert.Equal(t, 100.0, ReferencePrice("unknown", CategoryCrypto, 0))
}
